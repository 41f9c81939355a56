// assessments_test.go: tests for the assessment endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testAssessment() *datastore.Assessment {
	return &datastore.Assessment{
		ID:             3,
		PublicID:       "f2b7e6d4-1111-4222-8333-444455556666",
		ImageRef:       "s3://pavewatch/images/road-7.jpg",
		Location:       "Main St block 4",
		Score:          68,
		Rating:         "Good",
		MaxCDV:         32,
		Analysis:       "Surface shows moderate wear concentrated at the intersection.",
		AnalysisSource: "llm",
		CreatedAt:      time.Date(2026, 5, 2, 9, 15, 0, 0, time.UTC),
		Detections: []datastore.Detection{
			{DefectType: datastore.DefectSpalling, Severity: datastore.SeverityMedium, Confidence: 0.8, Extent: 4.5},
		},
	}
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	return c, rec
}

func TestCreateAssessment(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	assessment := testAssessment()
	mockSvc.On("Assess", mock.Anything, pipeline.AssessRequest{
		ImageRef: "s3://pavewatch/images/road-7.jpg",
		Location: "Main St block 4",
	}).Return(&pipeline.AssessResult{Assessment: assessment, State: &pipeline.AssessmentState{}}, nil)

	c, rec := postJSON(e, "/api/v1/assessments",
		`{"image_ref":"s3://pavewatch/images/road-7.jpg","location":"Main St block 4"}`)

	require.NoError(t, controller.CreateAssessment(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got datastore.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, assessment.PublicID, got.PublicID)
	assert.Equal(t, 68, got.Score)
	assert.Equal(t, "Good", got.Rating)
	require.Len(t, got.Detections, 1)
	assert.Equal(t, datastore.DefectSpalling, got.Detections[0].DefectType)

	// Fresh records are cached for the immutable GET path
	_, cached := controller.assessmentCache.Get(assessment.PublicID)
	assert.True(t, cached, "committed assessment should be cached")

	mockSvc.AssertExpectations(t)
}

func TestCreateAssessment_DegradedRun(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	assessment := testAssessment()
	assessment.AnalysisSource = "fallback"
	assessment.StageErrors = []datastore.StageError{{Stage: "analyze", Error: "llm-generation: model unavailable"}}

	state := &pipeline.AssessmentState{}
	state.MarkDegraded()
	mockSvc.On("Assess", mock.Anything, mock.Anything).
		Return(&pipeline.AssessResult{Assessment: assessment, State: state}, nil)

	c, rec := postJSON(e, "/api/v1/assessments", `{"image_ref":"s3://pavewatch/images/road-7.jpg"}`)

	require.NoError(t, controller.CreateAssessment(c))
	assert.Equal(t, http.StatusAccepted, rec.Code, "degraded runs commit but answer 202")

	var got datastore.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.StageErrors, 1)
	assert.Equal(t, "analyze", got.StageErrors[0].Stage)
}

func TestCreateAssessment_FatalRun(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	fatalErr := errors.Newf("detector unreachable").
		Component("detector").
		Category(errors.CategoryImageDetection).
		Build()

	state := &pipeline.AssessmentState{ImageRef: "s3://pavewatch/images/road-7.jpg"}
	state.MarkFatal()
	state.RecordStage(workflow.StageResult{
		Stage:    pipeline.StageDetect,
		Status:   workflow.StatusError,
		Error:    fatalErr,
		Fatal:    true,
		Duration: 120 * time.Millisecond,
	})
	mockSvc.On("Assess", mock.Anything, mock.Anything).
		Return(&pipeline.AssessResult{State: state}, fatalErr)

	c, rec := postJSON(e, "/api/v1/assessments", `{"image_ref":"s3://pavewatch/images/road-7.jpg"}`)

	require.NoError(t, controller.CreateAssessment(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var failure AssessmentFailureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	assert.Equal(t, http.StatusBadGateway, failure.Code)
	assert.Len(t, failure.CorrelationID, 8)
	require.Len(t, failure.Stages, 1)
	assert.Equal(t, pipeline.StageDetect, failure.Stages[0].Stage)
	assert.True(t, failure.Stages[0].Fatal)
	assert.Contains(t, failure.Stages[0].Error, "detector unreachable")
}

func TestCreateAssessment_MissingImageRef(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	c, rec := postJSON(e, "/api/v1/assessments", `{"location":"Main St"}`)

	require.NoError(t, controller.CreateAssessment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
}

func TestCreateAssessment_MalformedBody(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	c, rec := postJSON(e, "/api/v1/assessments", `{not json`)

	require.NoError(t, controller.CreateAssessment(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
}

func TestCreateAssessment_EngineFault(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	mockSvc.On("Assess", mock.Anything, mock.Anything).
		Return(nil, errors.Newf("loop budget exhausted").
			Component("workflow").
			Category(errors.CategoryWorkflow).
			Build())

	c, rec := postJSON(e, "/api/v1/assessments", `{"image_ref":"s3://pavewatch/images/road-7.jpg"}`)

	require.NoError(t, controller.CreateAssessment(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAssessment(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	assessment := testAssessment()
	// Once: the second request must come from the cache
	mockDS.On("GetAssessment", assessment.PublicID).Return(assessment, nil).Once()

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/"+assessment.PublicID, http.NoBody)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/v1/assessments/:id")
		c.SetParamNames("id")
		c.SetParamValues(assessment.PublicID)

		require.NoError(t, controller.GetAssessment(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got datastore.Assessment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, assessment.PublicID, got.PublicID)
	}

	mockDS.AssertExpectations(t)
}

func TestGetAssessment_NotFound(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	mockDS.On("GetAssessment", "missing-id").
		Return(nil, errors.NotFoundError("assessment", "missing-id"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/missing-id", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments/:id")
	c.SetParamNames("id")
	c.SetParamValues("missing-id")

	require.NoError(t, controller.GetAssessment(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, http.StatusNotFound, response.Code)
	assert.Contains(t, response.Error, "assessment not found")
}

func TestListAssessments(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	mockDS.On("RecentAssessments", datastore.DefaultRecentLimit).
		Return([]datastore.Assessment{*testAssessment()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments")

	require.NoError(t, controller.ListAssessments(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var summaries []AssessmentSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "f2b7e6d4-1111-4222-8333-444455556666", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].DefectCount)
	assert.False(t, summaries[0].Degraded)

	mockDS.AssertExpectations(t)
}

func TestListAssessments_ClampsLimit(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	mockDS.On("RecentAssessments", maxListLimit).Return([]datastore.Assessment{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments?limit=100000", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments")

	require.NoError(t, controller.ListAssessments(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	mockDS.AssertExpectations(t)
}
