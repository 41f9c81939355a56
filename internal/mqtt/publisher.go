// publisher.go: assessment event publishing to the configured broker topic.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// AssessmentEvent is the payload published for each committed assessment.
// Field names are part of the MQTT contract and follow the API JSON casing,
// so downstream automations can share parsing with the REST responses.
type AssessmentEvent struct {
	ID              string           `json:"id"`
	Node            string           `json:"node,omitempty"`
	ImageRef        string           `json:"image_ref"`
	Location        string           `json:"location,omitempty"`
	Score           int              `json:"score"`
	Rating          string           `json:"rating"`
	MaxCDV          float64          `json:"max_cdv"`
	DefectCount     int              `json:"defect_count"`
	HighSeverity    int              `json:"high_severity"`
	DefectCounts    map[string]int   `json:"defect_counts,omitempty"`
	Detections      []DetectionEvent `json:"detections,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
	AnalysisSource  string           `json:"analysis_source,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

// DetectionEvent summarizes one detection in the event payload. Bounding
// boxes stay out; broker consumers work with counts and extents.
type DetectionEvent struct {
	DefectType string  `json:"defect_type"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	Extent     float64 `json:"extent"`
}

// NewAssessmentEvent builds the event payload for a committed assessment.
func NewAssessmentEvent(a *datastore.Assessment, node string) *AssessmentEvent {
	event := &AssessmentEvent{
		ID:              a.PublicID,
		Node:            node,
		ImageRef:        a.ImageRef,
		Location:        a.Location,
		Score:           a.Score,
		Rating:          a.Rating,
		MaxCDV:          a.MaxCDV,
		DefectCount:     len(a.Detections),
		Recommendations: a.Recommendations,
		AnalysisSource:  a.AnalysisSource,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}

	if len(a.Detections) > 0 {
		event.DefectCounts = make(map[string]int, 4)
		event.Detections = make([]DetectionEvent, 0, len(a.Detections))
		for i := range a.Detections {
			d := &a.Detections[i]
			event.DefectCounts[string(d.DefectType)]++
			if d.Severity == datastore.SeverityHigh {
				event.HighSeverity++
			}
			event.Detections = append(event.Detections, DetectionEvent{
				DefectType: string(d.DefectType),
				Severity:   string(d.Severity),
				Confidence: d.Confidence,
				Extent:     d.Extent,
			})
		}
	}

	return event
}

// Publisher sends committed assessments to the configured topic. It is the
// broker-backed implementation of the pipeline publisher seam.
type Publisher struct {
	client Client
	topic  string
	node   string
}

// NewPublisher builds a Publisher from the integration settings.
func NewPublisher(settings *conf.Settings, mqttMetrics *metrics.MQTTMetrics) (*Publisher, error) {
	topic := settings.Integrations.MQTT.Topic
	if topic == "" {
		return nil, errors.Newf("mqtt: publish topic not configured").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("operation", "new_publisher").
			Build()
	}

	client, err := NewClient(settings, mqttMetrics)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		client: client,
		topic:  topic,
		node:   settings.Main.Name,
	}, nil
}

// Publish sends the assessment event, connecting first when the broker link
// is down. The caller bounds the whole call with its context.
func (p *Publisher) Publish(ctx context.Context, assessment *datastore.Assessment) error {
	if assessment == nil {
		return errors.Newf("mqtt: nil assessment").
			Component("mqtt").
			Category(errors.CategoryValidation).
			Context("operation", "publish_assessment").
			Build()
	}

	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(NewAssessmentEvent(assessment, p.node))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("assessment", assessment.PublicID).
			Context("operation", "marshal_event").
			Build()
	}

	return p.client.Publish(ctx, p.topic, string(payload))
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
