package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/detector"
	"github.com/pavewatch/pavewatch-go/internal/llm"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// Assessor owns the assessment graph: detect, score, analyze. Detection and
// scoring are fatal stages, analysis degrades to the deterministic narrative
// when the model is unavailable.
type Assessor struct {
	detector detector.Client
	scorer   *scoring.Engine
	provider llm.Provider
	logger   *slog.Logger
	graph    *workflow.Graph[*AssessmentState]
}

// NewAssessor builds and validates the assessment graph. A nil logger falls
// back to the pipeline service logger.
func NewAssessor(det detector.Client, scorer *scoring.Engine, provider llm.Provider, logger *slog.Logger) (*Assessor, error) {
	if logger == nil {
		logger = logging.ForService("pipeline")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Assessor{
		detector: det,
		scorer:   scorer,
		provider: provider,
		logger:   logger,
	}

	g := workflow.NewGraph[*AssessmentState]("assessment").
		AddNode(StageDetect, a.detect, workflow.WithFailurePolicy(workflow.PolicyFatal)).
		AddNode(StageScore, a.score, workflow.WithFailurePolicy(workflow.PolicyFatal)).
		AddNode(StageAnalyze, a.analyze).
		SetEntry(StageDetect).
		AddEdge(StageDetect, StageScore).
		AddEdge(StageScore, StageAnalyze).
		AddEdge(StageAnalyze, workflow.End)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	a.graph = g
	return a, nil
}

// Graph returns the validated assessment graph. The graph is immutable and
// safe for concurrent runs.
func (a *Assessor) Graph() *workflow.Graph[*AssessmentState] {
	return a.graph
}

// detect calls the detection service. The detector client enforces its own
// per-request timeout.
func (a *Assessor) detect(ctx context.Context, s *AssessmentState) error {
	result, err := a.detector.Detect(ctx, s.ImageRef)
	if err != nil {
		return err
	}
	s.Detections = result.Detections
	s.AnnotatedImage = result.AnnotatedImage
	s.Model = result.Model
	return nil
}

// score validates every detection before scoring it. Detections normally
// arrive canonical from the detector; the re-validation catches malformed
// input from any other caller before it can poison the score.
func (a *Assessor) score(_ context.Context, s *AssessmentState) error {
	for i := range s.Detections {
		if err := s.Detections[i].Validate(i); err != nil {
			return err
		}
	}

	score, err := a.scorer.Score(s.Detections)
	if err != nil {
		return err
	}
	s.Score = score
	s.Recommendations = a.scorer.Recommendations(score, s.Detections)
	return nil
}

// analyze derives metrics, runs every registered tool into the analysis
// prompt and asks the model for a narrative. On model failure the
// deterministic fallback narrative is used and the stage error is recorded.
func (a *Assessor) analyze(ctx context.Context, s *AssessmentState) error {
	s.Derived = a.scorer.Derive(s.Score, s.Detections)

	text, err := a.provider.Generate(ctx, llm.Request{
		Operation: llm.OpAnalysis,
		System:    analysisSystem,
		Prompt:    analysisPrompt(s.Score, s.Detections, a.scorer.Tools()),
	})
	if err != nil {
		a.logger.Warn("analysis generation failed, using fallback narrative",
			"image_ref", s.ImageRef, "error", err)
		s.Analysis = a.scorer.FallbackAnalysis(s.Score, s.Detections, s.Derived)
		s.AnalysisSource = SourceFallback
		return err
	}
	s.Analysis = strings.TrimSpace(text)
	s.AnalysisSource = SourceLLM
	return nil
}
