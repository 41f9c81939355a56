// Package llm abstracts the language model collaborator. Providers turn a
// prompt into text; the output is treated as untrusted data and never
// executed. The pipeline package owns prompt construction, this package owns
// transport, timeouts and provider error mapping.
package llm

import (
	"context"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/errors"
)

// Operation labels identifying what the model is asked to do. They appear in
// logs and metrics, never in prompts.
const (
	OpAnalysis = "analysis"
	OpQuery    = "query"
	OpAnswer   = "answer"
)

// Request is one generation request.
type Request struct {
	// Operation labels the request for logs and metrics.
	Operation string
	// System is the system instruction, empty for none.
	System string
	// Prompt is the user prompt.
	Prompt string
}

// Provider generates text from prompts. Implementations are safe for
// concurrent use. Generation is non-deterministic; callers must not rely on
// identical responses for identical requests.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Generate produces text for the request. Failures and timeouts are
	// reported as errors; an empty response is a failure.
	Generate(ctx context.Context, req Request) (string, error)
}

// New builds the configured provider.
func New(ctx context.Context, settings *conf.LLMSettings, opts ...Option) (Provider, error) {
	switch strings.ToLower(settings.Provider) {
	case "gemini":
		return NewGemini(ctx, settings, opts...)
	default:
		return nil, errors.Newf("unknown llm provider %q", settings.Provider).
			Component("llm").
			Category(errors.CategoryConfiguration).
			Context("provider", settings.Provider).
			Build()
	}
}
