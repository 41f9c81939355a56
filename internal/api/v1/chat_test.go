// chat_test.go: tests for the chat endpoints.
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func postChatRequest(e *echo.Echo, id, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/"+id+"/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments/:id/chat")
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestPostChat(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	mockSvc.On("Chat", mock.Anything, pipeline.ChatRequest{
		AssessmentID: "assessment-1",
		SessionID:    "session-9",
		Question:     "How many potholes were found?",
	}).Return(&pipeline.ChatResult{
		Answer:         "Two potholes were found, one of them high severity.",
		GeneratedQuery: "SELECT COUNT(*) FROM detections WHERE defect_type = 'pothole' AND assessment_id = 3",
		SessionID:      "session-9",
	}, nil)

	c, rec := postChatRequest(e, "assessment-1",
		`{"question":"How many potholes were found?","session_id":"session-9"}`)

	require.NoError(t, controller.PostChat(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ChatTurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assessment-1", resp.AssessmentID)
	assert.Equal(t, "session-9", resp.SessionID)
	assert.Contains(t, resp.Answer, "Two potholes")
	assert.Contains(t, resp.GeneratedQuery, "SELECT COUNT(*)")

	mockSvc.AssertExpectations(t)
}

func TestPostChat_MintsSession(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	// The pipeline mints a session ID when the request carries none
	mockSvc.On("Chat", mock.Anything, pipeline.ChatRequest{
		AssessmentID: "assessment-1",
		Question:     "Is this road safe?",
	}).Return(&pipeline.ChatResult{
		Answer:    "The road is in fair condition.",
		SessionID: "3b1f0a28-5555-4666-9777-888899990000",
	}, nil)

	c, rec := postChatRequest(e, "assessment-1", `{"question":"Is this road safe?"}`)

	require.NoError(t, controller.PostChat(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ChatTurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "3b1f0a28-5555-4666-9777-888899990000", resp.SessionID)
}

func TestPostChat_MissingQuestion(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	c, rec := postChatRequest(e, "assessment-1", `{"session_id":"session-9"}`)

	require.NoError(t, controller.PostChat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestPostChat_UnknownAssessment(t *testing.T) {
	e, _, mockSvc, controller := setupTestEnvironment(t)

	mockSvc.On("Chat", mock.Anything, mock.Anything).
		Return(nil, errors.NotFoundError("assessment", "missing-id"))

	c, rec := postChatRequest(e, "missing-id", `{"question":"Is this road safe?"}`)

	require.NoError(t, controller.PostChat(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestGetChatHistory(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	assessment := testAssessment()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	history := []datastore.ChatMessage{
		{AssessmentID: 3, SessionID: "session-9", Role: datastore.RoleUser, Content: "How many potholes?", CreatedAt: now},
		{AssessmentID: 3, SessionID: "session-9", Role: datastore.RoleAssistant, Content: "Two.", GeneratedQuery: "SELECT COUNT(*) FROM detections", CreatedAt: now.Add(time.Second)},
	}

	mockDS.On("GetAssessment", assessment.PublicID).Return(assessment, nil)
	mockDS.On("GetChatHistory", assessment.ID, "session-9", defaultHistoryLimit).Return(history, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/"+assessment.PublicID+"/chat/session-9", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments/:id/chat/:session")
	c.SetParamNames("id", "session")
	c.SetParamValues(assessment.PublicID, "session-9")

	require.NoError(t, controller.GetChatHistory(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ChatHistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, assessment.PublicID, resp.AssessmentID)
	assert.Equal(t, "session-9", resp.SessionID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, datastore.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "SELECT COUNT(*) FROM detections", resp.Messages[1].GeneratedQuery)

	mockDS.AssertExpectations(t)
}

func TestGetChatHistory_Empty(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	assessment := testAssessment()
	mockDS.On("GetAssessment", assessment.PublicID).Return(assessment, nil)
	mockDS.On("GetChatHistory", assessment.ID, "fresh-session", defaultHistoryLimit).
		Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/"+assessment.PublicID+"/chat/fresh-session", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments/:id/chat/:session")
	c.SetParamNames("id", "session")
	c.SetParamValues(assessment.PublicID, "fresh-session")

	require.NoError(t, controller.GetChatHistory(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`, "history should marshal as an empty array, not null")
}

func TestGetChatHistory_UnknownAssessment(t *testing.T) {
	e, mockDS, _, controller := setupTestEnvironment(t)

	mockDS.On("GetAssessment", "missing-id").
		Return(nil, errors.NotFoundError("assessment", "missing-id"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/missing-id/chat/session-9", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/assessments/:id/chat/:session")
	c.SetParamNames("id", "session")
	c.SetParamValues("missing-id", "session-9")

	require.NoError(t, controller.GetChatHistory(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	mockDS.AssertNotCalled(t, "GetChatHistory", mock.Anything, mock.Anything, mock.Anything)
}
