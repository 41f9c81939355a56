// internal/api/v1/assessments.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// maxListLimit caps ?limit= on the listing endpoint.
const maxListLimit = 100

// initAssessmentRoutes registers all assessment-related API endpoints
func (c *Controller) initAssessmentRoutes() {
	c.Group.POST("/assessments", c.CreateAssessment)
	c.Group.GET("/assessments", c.ListAssessments)
	c.Group.GET("/assessments/:id", c.GetAssessment)
}

// CreateAssessmentRequest is the body for POST /assessments. The API takes
// image references, not image bodies; upload happens out of band.
type CreateAssessmentRequest struct {
	ImageRef string `json:"image_ref"`
	Location string `json:"location,omitempty"`
}

// StageStatus reports one stage of a failed run.
type StageStatus struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Fatal      bool   `json:"fatal,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// AssessmentFailureResponse reports a run that produced no committed record.
// The stage log tells the client which stage halted the pipeline.
type AssessmentFailureResponse struct {
	ErrorResponse
	Stages []StageStatus `json:"stages"`
}

// AssessmentSummary is the list-view projection of an assessment.
type AssessmentSummary struct {
	ID          string    `json:"id"`
	ImageRef    string    `json:"image_ref"`
	Location    string    `json:"location,omitempty"`
	Score       int       `json:"score"`
	Rating      string    `json:"rating"`
	DefectCount int       `json:"defect_count"`
	Degraded    bool      `json:"degraded,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newAssessmentSummary(a *datastore.Assessment) AssessmentSummary {
	return AssessmentSummary{
		ID:          a.PublicID,
		ImageRef:    a.ImageRef,
		Location:    a.Location,
		Score:       a.Score,
		Rating:      a.Rating,
		DefectCount: len(a.Detections),
		Degraded:    len(a.StageErrors) > 0,
		CreatedAt:   a.CreatedAt,
	}
}

// CreateAssessment handles POST requests to assess a pavement image.
// A clean run returns 201 with the committed record, a degraded run 202 with
// the stage errors on the record, and a fatal run 502 with the stage log.
func (c *Controller) CreateAssessment(ctx echo.Context) error {
	var req CreateAssessmentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.ImageRef == "" {
		return c.HandleError(ctx, nil, "image_ref is required", http.StatusBadRequest)
	}

	result, err := c.Service.Assess(ctx.Request().Context(), pipeline.AssessRequest{
		ImageRef: req.ImageRef,
		Location: req.Location,
	})
	switch {
	case err != nil && result != nil && result.State != nil && result.State.Fatal():
		return c.handleFailedRun(ctx, err, result.State.StageLog())
	case err != nil && errors.IsCategory(err, errors.CategoryValidation):
		return c.HandleError(ctx, err, "Invalid assessment request", http.StatusBadRequest)
	case err != nil:
		return c.HandleError(ctx, err, "Failed to assess image", http.StatusInternalServerError)
	}

	assessment := result.Assessment
	c.assessmentCache.Set(assessment.PublicID, assessment, cache.DefaultExpiration)

	status := http.StatusCreated
	if len(assessment.StageErrors) > 0 {
		// Committed, but a non-fatal stage degraded along the way
		status = http.StatusAccepted
	}

	return ctx.JSON(status, assessment)
}

// handleFailedRun reports a fatal pipeline run with its stage log. Nothing
// was committed, so the client gets the full trace instead of a record.
func (c *Controller) handleFailedRun(ctx echo.Context, err error, stageLog []workflow.StageResult) error {
	resp := &AssessmentFailureResponse{
		ErrorResponse: *NewErrorResponse(err, "Assessment failed before a record could be committed", http.StatusBadGateway),
		Stages:        stageStatuses(stageLog),
	}

	c.logger.Printf("API Error [%s]: assessment run failed: %v", resp.CorrelationID, err)
	if c.apiLogger != nil {
		c.apiLogger.Error("Assessment run failed",
			"correlation_id", resp.CorrelationID,
			"error", err.Error(),
			"stages", len(stageLog),
			"path", ctx.Request().URL.Path,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(http.StatusBadGateway, resp)
}

func stageStatuses(stageLog []workflow.StageResult) []StageStatus {
	statuses := make([]StageStatus, 0, len(stageLog))
	for _, r := range stageLog {
		s := StageStatus{
			Stage:      r.Stage,
			Status:     string(r.Status),
			Fatal:      r.Fatal,
			DurationMs: r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			s.Error = r.Error.Error()
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// GetAssessment handles GET requests for a single assessment by public ID.
func (c *Controller) GetAssessment(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return c.HandleError(ctx, nil, "Missing assessment ID", http.StatusBadRequest)
	}

	if cached, found := c.assessmentCache.Get(id); found {
		if assessment, ok := cached.(*datastore.Assessment); ok {
			return ctx.JSON(http.StatusOK, assessment)
		}
	}

	assessment, err := c.DS.GetAssessment(id)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, err, "Assessment not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load assessment", http.StatusInternalServerError)
	}

	c.assessmentCache.Set(id, assessment, cache.DefaultExpiration)

	return ctx.JSON(http.StatusOK, assessment)
}

// ListAssessments handles GET requests for the recent assessment list.
func (c *Controller) ListAssessments(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if limit <= 0 {
		limit = datastore.DefaultRecentLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}

	assessments, err := c.DS.RecentAssessments(limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list assessments", http.StatusInternalServerError)
	}

	summaries := make([]AssessmentSummary, 0, len(assessments))
	for i := range assessments {
		summaries = append(summaries, newAssessmentSummary(&assessments[i]))
	}

	return ctx.JSON(http.StatusOK, summaries)
}
