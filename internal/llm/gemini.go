package llm

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// Gemini is the Provider implementation on the Google GenAI SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int32
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *metrics.LLMMetrics
}

// Option configures a provider.
type Option func(*Gemini)

// WithLogger overrides the provider's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gemini) {
		g.logger = logger
	}
}

// WithMetrics attaches language model metrics.
func WithMetrics(m *metrics.LLMMetrics) Option {
	return func(g *Gemini) {
		g.metrics = m
	}
}

// NewGemini creates a Gemini provider from the settings. The API key is
// required; everything else has configured defaults.
func NewGemini(ctx context.Context, settings *conf.LLMSettings, opts ...Option) (*Gemini, error) {
	if settings.APIKey == "" {
		return nil, errors.Newf("gemini api key is not configured").
			Component("llm").
			Category(errors.CategoryConfiguration).
			Context("setting", "llm.apikey").
			Build()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("llm").
			Category(errors.CategoryConfiguration).
			Context("provider", "gemini").
			Build()
	}

	g := &Gemini{
		client:      client,
		model:       settings.Model,
		temperature: float32(settings.Temperature),
		topP:        float32(settings.TopP),
		maxTokens:   int32(settings.MaxTokens),
		timeout:     settings.Timeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.ForService("llm")
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// Name identifies the provider.
func (g *Gemini) Name() string {
	return "gemini"
}

// Generate runs one generation request against the Gemini API, bounded by
// the configured timeout unless the caller's context is stricter.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		TopP:            genai.Ptr(g.topP),
		MaxOutputTokens: g.maxTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	duration := time.Since(start)

	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordRequest(g.Name(), req.Operation, duration.Seconds(), 0, err)
		}
		g.logger.Error("generation failed",
			"provider", g.Name(),
			"operation", req.Operation,
			"model", g.model,
			"duration", duration,
			"error", err)
		return "", generationError(err, ctx, req.Operation, g.model)
	}

	text := resp.Text()
	if text == "" {
		err := errors.Newf("model returned an empty response").
			Component("llm").
			Category(errors.CategoryGeneration).
			Context("operation", req.Operation).
			Context("model", g.model).
			Build()
		if g.metrics != nil {
			g.metrics.RecordRequest(g.Name(), req.Operation, duration.Seconds(), 0, err)
		}
		return "", err
	}

	if g.metrics != nil {
		g.metrics.RecordRequest(g.Name(), req.Operation, duration.Seconds(), len(text), nil)
	}
	g.logger.Debug("generation completed",
		"provider", g.Name(),
		"operation", req.Operation,
		"model", g.model,
		"duration", duration,
		"response_chars", len(text))
	return text, nil
}

// generationError maps a provider failure onto the error taxonomy: deadline
// and cancellation keep their own categories so stage policies can tell a
// slow model from a broken one.
func generationError(err error, ctx context.Context, operation, model string) error {
	category := errors.CategoryGeneration
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(err).
		Component("llm").
		Category(category).
		Context("operation", operation).
		Context("model", model).
		Build()
}
