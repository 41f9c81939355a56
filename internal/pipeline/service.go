package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/detector"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/llm"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/observability"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// publishTimeout bounds one broadcast of a committed assessment.
const publishTimeout = 10 * time.Second

// Service exposes the caller-facing assessment and chat operations. Safe
// for concurrent use; every call runs on its own state.
type Service struct {
	settings  *conf.Settings
	store     datastore.Interface
	assessor  *Assessor
	responder *Responder
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	// Tracks in-flight publishes so Close can drain them.
	publishing sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics attaches the observability registry.
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher attaches a broadcast target for committed assessments.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService wires the collaborators into the two workflow graphs.
func NewService(settings *conf.Settings, store datastore.Interface, det detector.Client, scorer *scoring.Engine, provider llm.Provider, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		settings: settings,
		store:    store,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.ForService("pipeline")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	assessor, err := NewAssessor(det, scorer, provider, s.logger)
	if err != nil {
		return nil, err
	}
	responder, err := NewResponder(store, scorer, provider, &settings.Chat, s.logger)
	if err != nil {
		return nil, err
	}
	s.assessor = assessor
	s.responder = responder
	return s, nil
}

// Close drains in-flight assessment publishes.
func (s *Service) Close() {
	s.publishing.Wait()
}

// AssessRequest identifies the image to assess.
type AssessRequest struct {
	ImageRef string
	Location string
}

// AssessResult carries the committed assessment and the run state. On a
// fatal run the assessment is nil and the state holds the stage log.
type AssessResult struct {
	Assessment *datastore.Assessment
	State      *AssessmentState
}

// Assess runs the assessment graph and commits the outcome in a single
// transaction. A fatal stage failure returns the error alongside the state;
// no record is written for a fatal run. Non-fatal stage failures are
// preserved on the committed record as stage errors.
func (s *Service) Assess(ctx context.Context, req AssessRequest) (*AssessResult, error) {
	if req.ImageRef == "" {
		return nil, errors.Newf("missing image reference").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	state := &AssessmentState{
		ImageRef: req.ImageRef,
		Location: req.Location,
	}
	if err := workflow.Run(ctx, s.assessor.Graph(), state, s.runOptions()...); err != nil {
		return nil, err
	}

	if state.Fatal() {
		err := fatalStageError(state.StageLog())
		s.logger.Error("assessment run failed",
			"image_ref", req.ImageRef,
			"failed_stages", state.FailedStages(),
			"error", err)
		return &AssessResult{State: state}, err
	}

	assessment := s.buildAssessment(state)
	if err := s.store.SaveAssessment(assessment); err != nil {
		return &AssessResult{State: state}, err
	}

	s.logger.Info("assessment committed",
		"public_id", assessment.PublicID,
		"image_ref", assessment.ImageRef,
		"score", assessment.Score,
		"rating", assessment.Rating,
		"detections", len(assessment.Detections),
		"degraded", state.Degraded())

	s.publishAsync(assessment)
	return &AssessResult{Assessment: assessment, State: state}, nil
}

// ChatRequest is one question about a committed assessment.
type ChatRequest struct {
	// AssessmentID is the assessment's public ID.
	AssessmentID string
	// SessionID groups turns into a conversation; empty starts a new
	// session.
	SessionID string
	Question  string
}

// ChatResult carries the answer of one chat turn.
type ChatResult struct {
	Answer         string
	GeneratedQuery string
	SessionID      string
	State          *ChatState
}

// Chat answers one question about a committed assessment. The caller always
// gets an answer or an explicit refusal; query path failures degrade inside
// the graph and never surface raw.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if req.Question == "" {
		return nil, errors.Newf("missing question").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	assessment, err := s.store.GetAssessment(req.AssessmentID)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := s.store.GetChatHistory(assessment.ID, sessionID, s.settings.Chat.MaxHistory)
	if err != nil {
		// A missing history degrades the answer, it does not block it.
		s.logger.Warn("chat history load failed",
			"public_id", assessment.PublicID, "session", sessionID, "error", err)
		history = nil
	}

	state := &ChatState{
		Assessment: assessment,
		History:    history,
		Question:   req.Question,
		SessionID:  sessionID,
	}
	if err := workflow.Run(ctx, s.responder.Graph(), state, s.runOptions()...); err != nil {
		return nil, err
	}
	if state.Answer == "" {
		// Unreachable through the graph; kept so the contract of an answer
		// or a refusal survives future rewiring.
		state.Answer = generalToolAnswer(assessment)
	}

	s.persistTurn(assessment, state)

	if state.Degraded() || state.Fatal() {
		s.logger.Info("chat turn degraded",
			"public_id", assessment.PublicID,
			"session", sessionID,
			"failed_stages", state.FailedStages())
	}
	return &ChatResult{
		Answer:         state.Answer,
		GeneratedQuery: state.Query,
		SessionID:      sessionID,
		State:          state,
	}, nil
}

// persistTurn appends the user question and the assistant answer to the
// session. The generated query is kept on the assistant row, rejected or
// not, as the audit trail of what the model asked for. Persistence failures
// are logged; the caller still gets the answer.
func (s *Service) persistTurn(assessment *datastore.Assessment, state *ChatState) {
	userMsg := &datastore.ChatMessage{
		AssessmentID: assessment.ID,
		SessionID:    state.SessionID,
		Role:         datastore.RoleUser,
		Content:      state.Question,
	}
	if err := s.store.SaveChatMessage(userMsg); err != nil {
		s.logger.Warn("chat message save failed",
			"public_id", assessment.PublicID, "role", datastore.RoleUser, "error", err)
	}

	assistantMsg := &datastore.ChatMessage{
		AssessmentID:   assessment.ID,
		SessionID:      state.SessionID,
		Role:           datastore.RoleAssistant,
		Content:        state.Answer,
		GeneratedQuery: state.Query,
	}
	if err := s.store.SaveChatMessage(assistantMsg); err != nil {
		s.logger.Warn("chat message save failed",
			"public_id", assessment.PublicID, "role", datastore.RoleAssistant, "error", err)
	}
}

// buildAssessment turns a completed run into the record to commit.
func (s *Service) buildAssessment(state *AssessmentState) *datastore.Assessment {
	return &datastore.Assessment{
		PublicID:        uuid.NewString(),
		ImageRef:        state.ImageRef,
		AnnotatedImage:  state.AnnotatedImage,
		Location:        state.Location,
		Score:           state.Score.Score,
		Rating:          state.Score.Rating,
		MaxCDV:          state.Score.MaxCDV,
		Analysis:        state.Analysis,
		AnalysisSource:  state.AnalysisSource,
		Recommendations: state.Recommendations,
		StageErrors:     stageErrors(state.StageLog()),
		Detections:      state.Detections,
	}
}

// publishAsync broadcasts a committed assessment without blocking the
// caller. Failures are logged, never propagated.
func (s *Service) publishAsync(assessment *datastore.Assessment) {
	if s.publisher == nil {
		return
	}
	s.publishing.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, assessment); err != nil {
			s.logger.Warn("assessment publish failed",
				"public_id", assessment.PublicID, "error", err)
		}
	})
}

// runOptions assembles the engine options shared by both graphs.
func (s *Service) runOptions() []workflow.RunOption {
	opts := []workflow.RunOption{workflow.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, workflow.WithMetrics(s.metrics.Workflow))
	}
	if s.settings.Workflow.MaxSteps > 0 {
		opts = append(opts, workflow.WithMaxSteps(s.settings.Workflow.MaxSteps))
	}
	return opts
}

// stageErrors extracts the failed stages for the committed record.
func stageErrors(log []workflow.StageResult) []datastore.StageError {
	var out []datastore.StageError
	for _, r := range log {
		if r.Status == workflow.StatusError && r.Error != nil {
			out = append(out, datastore.StageError{Stage: r.Stage, Error: r.Error.Error()})
		}
	}
	return out
}

// fatalStageError returns the error of the stage that ended the run.
func fatalStageError(log []workflow.StageResult) error {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Fatal && log[i].Error != nil {
			return log[i].Error
		}
	}
	return errors.Newf("run marked fatal without a recorded stage error").
		Component("pipeline").
		Category(errors.CategoryWorkflow).
		Build()
}
