package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/llm"
)

// capturingPublisher records published assessment IDs.
type capturingPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *capturingPublisher) Publish(_ context.Context, a *datastore.Assessment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, a.PublicID)
	return nil
}

func (p *capturingPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

type serviceFixture struct {
	service  *Service
	store    datastore.Interface
	detector *stubDetector
	mock     *llm.Mock
	settings *conf.Settings
}

func newTestService(t *testing.T, opts ...ServiceOption) *serviceFixture {
	t.Helper()
	settings := testSettings(t)
	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	det := &stubDetector{result: sampleResult()}
	mock := &llm.Mock{Responses: map[string]string{
		llm.OpAnalysis: "The pavement needs prompt pothole repair.",
		llm.OpAnswer:   "One high severity pothole was recorded.",
	}}

	opts = append([]ServiceOption{WithLogger(testLogger())}, opts...)
	service, err := NewService(settings, store, det, testScorer(t), mock, opts...)
	require.NoError(t, err)
	t.Cleanup(service.Close)

	return &serviceFixture{
		service:  service,
		store:    store,
		detector: det,
		mock:     mock,
		settings: settings,
	}
}

func TestService_AssessCommits(t *testing.T) {
	f := newTestService(t)

	result, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
		Location: "Maple Ave between 3rd and 4th",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Assessment)

	a := result.Assessment
	assert.NotEmpty(t, a.PublicID)
	assert.Equal(t, "images/road-041.jpg", a.ImageRef)
	assert.Equal(t, "Maple Ave between 3rd and 4th", a.Location)
	assert.Equal(t, "/annotated/road-041.jpg", a.AnnotatedImage)
	assert.Greater(t, a.Score, 0)
	assert.NotEmpty(t, a.Rating)
	assert.Equal(t, "The pavement needs prompt pothole repair.", a.Analysis)
	assert.Equal(t, SourceLLM, a.AnalysisSource)
	assert.NotEmpty(t, a.Recommendations)
	assert.Empty(t, a.StageErrors)

	// The record is committed and readable with its detections.
	stored, err := f.store.GetAssessment(a.PublicID)
	require.NoError(t, err)
	assert.Equal(t, a.Score, stored.Score)
	require.Len(t, stored.Detections, 2)
	assert.Equal(t, datastore.DefectPothole, stored.Detections[0].DefectType)
}

func TestService_AssessDetectFatal(t *testing.T) {
	f := newTestService(t)
	f.detector.result = nil
	f.detector.err = errors.Newf("connection refused").
		Component("detector").
		Category(errors.CategoryImageDetection).
		Build()

	result, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageDetection))

	require.NotNil(t, result, "the stage log survives a fatal run")
	assert.Nil(t, result.Assessment)
	require.NotNil(t, result.State)
	assert.True(t, result.State.Fatal())
	assert.Equal(t, []string{StageDetect}, stageNames(result.State))

	// Nothing was committed.
	recent, err := f.store.RecentAssessments(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestService_AssessDegradedStillCommits(t *testing.T) {
	f := newTestService(t)
	f.mock.ErrFor = map[string]error{
		llm.OpAnalysis: errors.Newf("model unavailable").
			Component("llm").
			Category(errors.CategoryGeneration).
			Build(),
	}

	result, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err, "a degraded run still commits")
	require.NotNil(t, result.Assessment)

	assert.Equal(t, SourceFallback, result.Assessment.AnalysisSource)
	assert.NotEmpty(t, result.Assessment.Analysis)
	require.Len(t, result.Assessment.StageErrors, 1)
	assert.Equal(t, StageAnalyze, result.Assessment.StageErrors[0].Stage)

	stored, err := f.store.GetAssessment(result.Assessment.PublicID)
	require.NoError(t, err)
	require.Len(t, stored.StageErrors, 1, "stage errors persist on the record")
	assert.Equal(t, StageAnalyze, stored.StageErrors[0].Stage)
}

func TestService_AssessValidation(t *testing.T) {
	f := newTestService(t)

	result, err := f.service.Assess(context.Background(), AssessRequest{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, f.detector.calls)
}

func TestService_AssessPublishes(t *testing.T) {
	publisher := &capturingPublisher{}
	f := newTestService(t, WithPublisher(publisher))

	result, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err)

	f.service.Close()
	ids := publisher.ids()
	require.Len(t, ids, 1)
	assert.Equal(t, result.Assessment.PublicID, ids[0])
}

func TestService_AssessPublishFailureIsInvisible(t *testing.T) {
	publisher := &capturingPublisher{err: errors.Newf("broker down").
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Build()}
	f := newTestService(t, WithPublisher(publisher))

	result, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err, "publish failures never affect the assessment")
	require.NotNil(t, result.Assessment)

	f.service.Close()
	stored, err := f.store.GetAssessment(result.Assessment.PublicID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestService_ChatAnswersAndPersists(t *testing.T) {
	f := newTestService(t)

	assessed, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err)

	result, err := f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: assessed.Assessment.PublicID,
		Question:     "Is this road dangerous?",
	})
	require.NoError(t, err)
	assert.Equal(t, "One high severity pothole was recorded.", result.Answer)
	assert.NotEmpty(t, result.SessionID, "a session is minted when none is given")
	assert.Empty(t, result.GeneratedQuery)

	history, err := f.store.GetChatHistory(assessed.Assessment.ID, result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, datastore.RoleUser, history[0].Role)
	assert.Equal(t, "Is this road dangerous?", history[0].Content)
	assert.Equal(t, datastore.RoleAssistant, history[1].Role)
	assert.Equal(t, result.Answer, history[1].Content)
}

func TestService_ChatSessionContinuity(t *testing.T) {
	f := newTestService(t)

	assessed, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err)
	publicID := assessed.Assessment.PublicID

	first, err := f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: publicID,
		Question:     "Is this road dangerous?",
	})
	require.NoError(t, err)

	_, err = f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: publicID,
		SessionID:    first.SessionID,
		Question:     "And is it safe for cyclists?",
	})
	require.NoError(t, err)

	// The second turn's prompt carries the first turn.
	calls := f.mock.CallsFor(llm.OpAnswer)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, "Conversation so far:")
	assert.Contains(t, calls[1].Prompt, "Is this road dangerous?")
	assert.Contains(t, calls[1].Prompt, "One high severity pothole was recorded.")

	history, err := f.store.GetChatHistory(assessed.Assessment.ID, first.SessionID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestService_ChatPersistsGeneratedQuery(t *testing.T) {
	f := newTestService(t)

	assessed, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err)

	f.mock.Responses[llm.OpQuery] = "SELECT COUNT(*) AS defects FROM detections"
	result, err := f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: assessed.Assessment.PublicID,
		Question:     "How many defects were found?",
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS defects FROM detections", result.GeneratedQuery)

	history, err := f.store.GetChatHistory(assessed.Assessment.ID, result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Empty(t, history[0].GeneratedQuery)
	assert.Equal(t, result.GeneratedQuery, history[1].GeneratedQuery,
		"the assistant row carries the query")
}

func TestService_ChatRefusalIsAnswered(t *testing.T) {
	f := newTestService(t)

	assessed, err := f.service.Assess(context.Background(), AssessRequest{
		ImageRef: "images/road-041.jpg",
	})
	require.NoError(t, err)

	f.mock.Responses[llm.OpQuery] = "DELETE FROM assessments"
	result, err := f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: assessed.Assessment.PublicID,
		Question:     "Show me all assessments",
	})
	require.NoError(t, err, "a refusal is an answer, not an error")
	assert.Equal(t, queryRefusal, result.Answer)

	history, err := f.store.GetChatHistory(assessed.Assessment.ID, result.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2, "refused turns are persisted too")
	assert.Equal(t, queryRefusal, history[1].Content)
}

func TestService_ChatUnknownAssessment(t *testing.T) {
	f := newTestService(t)

	result, err := f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: "no-such-id",
		Question:     "Is this road dangerous?",
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestService_ChatValidation(t *testing.T) {
	f := newTestService(t)

	result, err := f.service.Chat(context.Background(), ChatRequest{
		AssessmentID: "whatever",
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
