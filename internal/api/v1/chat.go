// internal/api/v1/chat.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
)

// History listing bounds. The chat graph itself windows its prompt history
// from conf; these only bound the HTTP listing.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// initChatRoutes registers all chat-related API endpoints
func (c *Controller) initChatRoutes() {
	c.Group.POST("/assessments/:id/chat", c.PostChat)
	c.Group.GET("/assessments/:id/chat/:session", c.GetChatHistory)
}

// ChatTurnRequest is the body for POST /assessments/:id/chat. An empty
// session_id starts a new session.
type ChatTurnRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatTurnResponse is one answered chat turn. The generated query is carried
// separately so clients can render it apart from the answer text.
type ChatTurnResponse struct {
	AssessmentID   string `json:"assessment_id"`
	SessionID      string `json:"session_id"`
	Answer         string `json:"answer"`
	GeneratedQuery string `json:"generated_query,omitempty"`
}

// ChatHistoryResponse lists the persisted turns of one session.
type ChatHistoryResponse struct {
	AssessmentID string                  `json:"assessment_id"`
	SessionID    string                  `json:"session_id"`
	Messages     []datastore.ChatMessage `json:"messages"`
}

// PostChat handles POST requests asking a question about an assessment.
func (c *Controller) PostChat(ctx echo.Context) error {
	id := ctx.Param("id")

	var req ChatTurnRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Question == "" {
		return c.HandleError(ctx, nil, "question is required", http.StatusBadRequest)
	}

	result, err := c.Service.Chat(ctx.Request().Context(), pipeline.ChatRequest{
		AssessmentID: id,
		SessionID:    req.SessionID,
		Question:     req.Question,
	})
	if err != nil {
		switch {
		case errors.IsCategory(err, errors.CategoryNotFound):
			return c.HandleError(ctx, err, "Assessment not found", http.StatusNotFound)
		case errors.IsCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Invalid chat request", http.StatusBadRequest)
		default:
			return c.HandleError(ctx, err, "Failed to answer question", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, ChatTurnResponse{
		AssessmentID:   id,
		SessionID:      result.SessionID,
		Answer:         result.Answer,
		GeneratedQuery: result.GeneratedQuery,
	})
}

// GetChatHistory handles GET requests for one session's persisted turns.
func (c *Controller) GetChatHistory(ctx echo.Context) error {
	id := ctx.Param("id")
	session := ctx.Param("session")

	assessment, err := c.DS.GetAssessment(id)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, err, "Assessment not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load assessment", http.StatusInternalServerError)
	}

	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := c.DS.GetChatHistory(assessment.ID, session, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load chat history", http.StatusInternalServerError)
	}
	if messages == nil {
		messages = []datastore.ChatMessage{}
	}

	return ctx.JSON(http.StatusOK, ChatHistoryResponse{
		AssessmentID: assessment.PublicID,
		SessionID:    session,
		Messages:     messages,
	})
}
