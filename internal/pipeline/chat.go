package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/llm"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// queryRefusal is the user-visible answer when a generated query fails the
// read-only gate. The rejected query is never executed.
const queryRefusal = "I can only run read-only SELECT queries against the " +
	"assessment data. The generated query was rejected by the safety check, " +
	"so it was not executed. Try rephrasing your question."

// Responder owns the chat graph: classify_intent, generate_query,
// validate_query, execute_query, compose_answer. Only validate_query is
// fatal; it is the hard gate between model output and the database.
type Responder struct {
	store        datastore.Interface
	scorer       *scoring.Engine
	provider     llm.Provider
	rowLimit     int
	queryTimeout time.Duration
	logger       *slog.Logger
	graph        *workflow.Graph[*ChatState]
}

// NewResponder builds and validates the chat graph.
func NewResponder(store datastore.Interface, scorer *scoring.Engine, provider llm.Provider, chat *conf.ChatSettings, logger *slog.Logger) (*Responder, error) {
	if logger == nil {
		logger = logging.ForService("pipeline")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Responder{
		store:    store,
		scorer:   scorer,
		provider: provider,
		logger:   logger,
	}
	if chat != nil {
		r.rowLimit = chat.QueryRowLimit
		r.queryTimeout = chat.QueryTimeout
	}

	g := workflow.NewGraph[*ChatState]("chat").
		AddNode(StageClassifyIntent, r.classifyIntent).
		AddNode(StageGenerateQuery, r.generateQuery).
		AddNode(StageValidateQuery, r.validateQuery, workflow.WithFailurePolicy(workflow.PolicyFatal)).
		AddNode(StageExecuteQuery, r.executeQuery).
		AddNode(StageComposeAnswer, r.composeAnswer).
		SetEntry(StageClassifyIntent).
		AddRouter(StageClassifyIntent, routeIntent).
		AddRouter(StageGenerateQuery, routeQuery).
		AddEdge(StageValidateQuery, StageExecuteQuery).
		AddEdge(StageExecuteQuery, StageComposeAnswer).
		AddEdge(StageComposeAnswer, workflow.End)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	r.graph = g
	return r, nil
}

// Graph returns the validated chat graph.
func (r *Responder) Graph() *workflow.Graph[*ChatState] {
	return r.graph
}

// routeIntent sends structured questions down the query path and everything
// else straight to answer composition.
func routeIntent(s *ChatState) string {
	if s.Structured {
		return StageGenerateQuery
	}
	return StageComposeAnswer
}

// routeQuery falls through to answer composition when query generation was
// abandoned.
func routeQuery(s *ChatState) string {
	if s.Query == "" {
		return StageComposeAnswer
	}
	return StageValidateQuery
}

// classifyIntent flags questions that ask for data rather than
// interpretation. The keyword heuristic is deliberately cheap; a wrong
// positive costs one generated query, a wrong negative still gets a
// context-grounded answer.
func (r *Responder) classifyIntent(_ context.Context, s *ChatState) error {
	s.Structured = wantsQuery(s.Question)
	return nil
}

// generateQuery asks the model for a SELECT against the fixed schema. On
// failure the query path is abandoned and the turn continues as a plain
// answer.
func (r *Responder) generateQuery(ctx context.Context, s *ChatState) error {
	text, err := r.provider.Generate(ctx, llm.Request{
		Operation: llm.OpQuery,
		System:    querySystem,
		Prompt:    queryPrompt(s.Assessment, s.Question),
	})
	if err != nil {
		s.Structured = false
		return err
	}

	s.Query = stripFences(text)
	if s.Query == "" {
		s.Structured = false
		return errors.Newf("model returned an empty query").
			Component("pipeline").
			Category(errors.CategoryGeneration).
			Build()
	}
	return nil
}

// validateQuery is the hard safety gate between model output and the
// database. A violation sets the refusal answer and halts the run before
// the executor; nothing downstream can resurrect a rejected query.
func (r *Responder) validateQuery(_ context.Context, s *ChatState) error {
	if err := datastore.ValidateReadOnlyQuery(s.Query); err != nil {
		r.logger.Warn("generated query rejected",
			"assessment", s.Assessment.PublicID, "query", s.Query, "error", err)
		s.Answer = queryRefusal
		return err
	}
	return nil
}

// executeQuery runs the validated query through the read-only executor. A
// failed execution degrades to an empty result set so answer composition
// still runs.
func (r *Responder) executeQuery(ctx context.Context, s *ChatState) error {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	result, err := r.store.ExecuteReadOnly(ctx, s.Query, r.rowLimit)
	if err != nil {
		s.QueryResult = &datastore.QueryResult{}
		return err
	}
	s.QueryResult = result
	return nil
}

// composeAnswer asks the model for the final answer grounded in the
// assessment, the query results and the session history. On model failure
// the deterministic tool-routed answer stands in.
func (r *Responder) composeAnswer(ctx context.Context, s *ChatState) error {
	text, err := r.provider.Generate(ctx, llm.Request{
		Operation: llm.OpAnswer,
		System:    answerSystem(s.Assessment),
		Prompt:    answerPrompt(s),
	})
	if err != nil {
		r.logger.Warn("answer generation failed, using tool answer",
			"assessment", s.Assessment.PublicID, "error", err)
		s.Answer = r.toolAnswer(s)
		return err
	}
	s.Answer = strings.TrimSpace(text)
	return nil
}

// toolRoutes maps question keywords onto the derived-metric tool that
// answers them without a model.
var toolRoutes = []struct {
	keywords []string
	tool     string
}{
	{[]string{"cost", "price", "budget", "expense"}, scoring.ToolRepairCostBreakdown},
	{[]string{"priority", "urgent", "critical", "first"}, scoring.ToolPriorityRepairs},
	{[]string{"when", "timeline", "schedule", "time"}, scoring.ToolTimelineEstimate},
	{[]string{"statistics", "stats", "summary", "overview"}, scoring.ToolDefectStatistics},
}

// toolAnswer builds a deterministic answer from the registered tools.
func (r *Responder) toolAnswer(s *ChatState) string {
	question := strings.ToLower(s.Question)
	input := scoring.ToolInput{
		Score: &scoring.ConditionScore{
			Score:  s.Assessment.Score,
			Rating: s.Assessment.Rating,
			MaxCDV: s.Assessment.MaxCDV,
		},
		Detections: s.Assessment.Detections,
	}

	for _, route := range toolRoutes {
		if !containsAny(question, route.keywords) {
			continue
		}
		if tool, ok := r.scorer.ToolByName(route.tool); ok {
			return tool.Run(input)
		}
	}
	return generalToolAnswer(s.Assessment)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
