package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/httpclient"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// maxErrorBodyBytes bounds how much of an error response body is read for
// diagnostics.
const maxErrorBodyBytes = 4096

// detectRequest is the wire request to the detection service.
type detectRequest struct {
	ImageRef            string  `json:"image_ref"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	Annotate            bool    `json:"annotate"`
}

// detectResponse is the wire response from the detection service, one entry
// per raw model box.
type detectResponse struct {
	Detections []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
		BBox       struct {
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"bbox"`
	} `json:"detections"`
	TotalDefects   int    `json:"total_defects"`
	AnnotatedImage string `json:"annotated_image_path"`
	Model          string `json:"model"`
	Error          string `json:"error,omitempty"`
}

// HTTPClient calls a model-serving endpoint over HTTP and post-processes its
// raw boxes into canonical detections.
type HTTPClient struct {
	endpoint            string
	confidenceThreshold float64
	metersPerPixel      float64
	timeout             time.Duration
	http                *httpclient.Client
	logger              *slog.Logger
	metrics             *metrics.DetectorMetrics
	debug               bool
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithLogger overrides the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// WithMetrics attaches detector metrics.
func WithMetrics(m *metrics.DetectorMetrics) Option {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the transport client, for tests.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a detector client against the configured endpoint.
func NewHTTPClient(settings *conf.DetectorSettings, opts ...Option) (*HTTPClient, error) {
	if settings.Endpoint == "" {
		return nil, errors.Newf("detector endpoint is not configured").
			Component("detector").
			Category(errors.CategoryConfiguration).
			Context("setting", "detector.endpoint").
			Build()
	}
	if settings.MetersPerPixel <= 0 {
		return nil, errors.Newf("detector ground resolution must be positive").
			Component("detector").
			Category(errors.CategoryConfiguration).
			Context("setting", "detector.metersperpixel").
			Context("value", settings.MetersPerPixel).
			Build()
	}

	c := &HTTPClient{
		endpoint:            strings.TrimRight(settings.Endpoint, "/"),
		confidenceThreshold: settings.ConfidenceThreshold,
		metersPerPixel:      settings.MetersPerPixel,
		timeout:             settings.Timeout,
		debug:               settings.Debug,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Timeout})
	}
	if c.logger == nil {
		c.logger = logging.ForService("detector")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Detect runs defect detection on the referenced image, bounded by the
// configured timeout unless the caller's context is stricter.
func (c *HTTPClient) Detect(ctx context.Context, imageRef string) (*Result, error) {
	if imageRef == "" {
		return nil, errors.Newf("empty image reference").
			Component("detector").
			Category(errors.CategoryValidation).
			Build()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.call(ctx, imageRef)
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordRequest(duration.Seconds(), err)
	}
	if err != nil {
		c.logger.Error("detection request failed",
			"image_ref", imageRef, "duration", duration, "error", err)
		return nil, err
	}

	result := c.postProcess(raw)
	if c.metrics != nil {
		for i := range result.Detections {
			d := &result.Detections[i]
			c.metrics.RecordDetection(string(d.DefectType), string(d.Severity), d.Confidence)
		}
		c.metrics.RecordImageResult(len(result.Detections))
	}
	c.logger.Info("detection completed",
		"image_ref", imageRef,
		"raw_boxes", len(raw.Detections),
		"detections", len(result.Detections),
		"duration", duration)
	return result, nil
}

// call performs the HTTP exchange with the detection service.
func (c *HTTPClient) call(ctx context.Context, imageRef string) (*detectResponse, error) {
	req := detectRequest{
		ImageRef:            imageRef,
		ConfidenceThreshold: c.confidenceThreshold,
		Annotate:            true,
	}

	resp, err := c.http.Post(ctx, c.endpoint+"/detect", "application/json", req)
	if err != nil {
		return nil, detectionError(err, ctx, imageRef, c.endpoint)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, errors.Newf("detection service returned %s: %s",
			resp.Status, strings.TrimSpace(string(body))).
			Component("detector").
			Category(errors.CategoryImageDetection).
			Context("status_code", resp.StatusCode).
			Context("image_ref", imageRef).
			Build()
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.New(fmt.Errorf("decoding detection response: %w", err)).
			Component("detector").
			Category(errors.CategoryImageDetection).
			Context("image_ref", imageRef).
			Build()
	}
	if decoded.Error != "" {
		return nil, errors.Newf("detection service reported: %s", decoded.Error).
			Component("detector").
			Category(errors.CategoryImageDetection).
			Context("image_ref", imageRef).
			Build()
	}
	return &decoded, nil
}

// postProcess converts raw model boxes into canonical detections: the class
// label is mapped onto a defect type, severity is graded from box pixel area
// and extent is computed per defect type. Boxes below the confidence
// threshold or with unknown labels are dropped.
func (c *HTTPClient) postProcess(raw *detectResponse) *Result {
	result := &Result{
		AnnotatedImage: raw.AnnotatedImage,
		Model:          raw.Model,
		Detections:     make([]datastore.Detection, 0, len(raw.Detections)),
	}

	for i := range raw.Detections {
		box := &raw.Detections[i]
		if box.Confidence < c.confidenceThreshold {
			continue
		}
		defectType, known := mapClass(strings.ToLower(strings.TrimSpace(box.Class)))
		if !known {
			c.logger.Warn("dropping detection with unknown class label", "class", box.Class)
			continue
		}

		bbox := datastore.BBox{
			X:      box.BBox.X,
			Y:      box.BBox.Y,
			Width:  box.BBox.Width,
			Height: box.BBox.Height,
		}
		area := bbox.Area()
		result.Detections = append(result.Detections, datastore.Detection{
			DefectType: defectType,
			Severity:   severityFor(defectType, area),
			Confidence: box.Confidence,
			Extent:     extentFor(defectType, area, c.metersPerPixel),
			AreaPixels: area,
			BBox:       bbox,
		})
		if c.debug {
			c.logger.Debug("detection accepted",
				"class", box.Class,
				"defect_type", defectType,
				"confidence", box.Confidence,
				"area_pixels", area)
		}
	}
	return result
}

// detectionError maps transport failures onto the error taxonomy, keeping
// deadline and cancellation distinct from service faults.
func detectionError(err error, ctx context.Context, imageRef, endpoint string) error {
	category := errors.CategoryImageDetection
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(err).
		Component("detector").
		Category(category).
		Context("image_ref", imageRef).
		Context("endpoint", endpoint).
		Build()
}
