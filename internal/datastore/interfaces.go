// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"gorm.io/gorm"
)

// DefaultRecentLimit bounds assessment listings when the caller does not
// supply a limit.
const DefaultRecentLimit = 10

// Interface abstracts the underlying database implementation and defines the
// interface for database operations.
type Interface interface {
	Open() error
	Close() error
	SaveAssessment(assessment *Assessment) error
	GetAssessment(publicID string) (*Assessment, error)
	RecentAssessments(limit int) ([]Assessment, error)
	SaveChatMessage(message *ChatMessage) error
	GetChatHistory(assessmentID uint, sessionID string, limit int) ([]ChatMessage, error)
	ExecuteReadOnly(ctx context.Context, query string, limit int) (*QueryResult, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided configuration.
// Exactly one output database must be enabled; conf.ValidateSettings
// enforces that before this point.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// SaveAssessment stores an assessment and its detections as a single
// transaction. Detections are created explicitly rather than through GORM
// association auto-save so a partial failure cannot leave orphaned rows.
func (ds *DataStore) SaveAssessment(assessment *Assessment) error {
	if ds.DB == nil {
		return dbError(errNotOpen, "save_assessment", errors.PriorityHigh)
	}
	for i := range assessment.Detections {
		if err := assessment.Detections[i].Validate(i); err != nil {
			return err
		}
	}

	start := time.Now()
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return dbError(tx.Error, "save_assessment_begin", errors.PriorityHigh)
	}

	// Roll back the transaction if a panic occurs
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	detections := assessment.Detections
	assessment.Detections = nil

	if err := tx.Omit("Detections", "ChatMessages").Create(assessment).Error; err != nil {
		tx.Rollback()
		assessment.Detections = detections
		return dbError(err, "save_assessment", errors.PriorityHigh,
			"public_id", assessment.PublicID)
	}

	for i := range detections {
		detections[i].AssessmentID = assessment.ID
		if err := tx.Create(&detections[i]).Error; err != nil {
			tx.Rollback()
			assessment.Detections = detections
			return dbError(err, "save_detection", errors.PriorityHigh,
				"public_id", assessment.PublicID, "index", i)
		}
	}

	if err := tx.Commit().Error; err != nil {
		assessment.Detections = detections
		return dbError(err, "save_assessment_commit", errors.PriorityHigh,
			"public_id", assessment.PublicID)
	}

	assessment.Detections = detections
	recordDbOperation("save_assessment", "success", time.Since(start).Seconds())
	return nil
}

// GetAssessment retrieves an assessment by its public ID with detections
// preloaded.
func (ds *DataStore) GetAssessment(publicID string) (*Assessment, error) {
	if ds.DB == nil {
		return nil, dbError(errNotOpen, "get_assessment", errors.PriorityHigh)
	}

	start := time.Now()
	var assessment Assessment
	err := ds.DB.Preload("Detections").
		Where("public_id = ?", publicID).
		First(&assessment).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.NotFoundError("assessment", publicID)
	case err != nil:
		return nil, dbError(err, "get_assessment", "", "public_id", publicID)
	}

	recordDbOperation("get_assessment", "success", time.Since(start).Seconds())
	return &assessment, nil
}

// RecentAssessments returns up to limit assessments, newest first.
func (ds *DataStore) RecentAssessments(limit int) ([]Assessment, error) {
	if ds.DB == nil {
		return nil, dbError(errNotOpen, "recent_assessments", errors.PriorityHigh)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	start := time.Now()
	var assessments []Assessment
	err := ds.DB.Preload("Detections").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&assessments).Error
	if err != nil {
		return nil, dbError(err, "recent_assessments", "", "limit", limit)
	}

	recordDbOperation("recent_assessments", "success", time.Since(start).Seconds())
	return assessments, nil
}

// SaveChatMessage appends one chat turn to an assessment's history.
func (ds *DataStore) SaveChatMessage(message *ChatMessage) error {
	if ds.DB == nil {
		return dbError(errNotOpen, "save_chat_message", errors.PriorityHigh)
	}
	if err := message.Validate(); err != nil {
		return err
	}

	start := time.Now()
	if err := ds.DB.Create(message).Error; err != nil {
		return dbError(err, "save_chat_message", "",
			"assessment_id", message.AssessmentID, "session_id", message.SessionID)
	}

	recordDbOperation("save_chat_message", "success", time.Since(start).Seconds())
	return nil
}

// GetChatHistory returns the most recent limit messages of one chat session
// in chronological order.
func (ds *DataStore) GetChatHistory(assessmentID uint, sessionID string, limit int) ([]ChatMessage, error) {
	if ds.DB == nil {
		return nil, dbError(errNotOpen, "get_chat_history", errors.PriorityHigh)
	}

	start := time.Now()
	query := ds.DB.Where("assessment_id = ? AND session_id = ?", assessmentID, sessionID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []ChatMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, dbError(err, "get_chat_history", "",
			"assessment_id", assessmentID, "session_id", sessionID)
	}

	// Reverse the newest-first window back into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	recordDbOperation("get_chat_history", "success", time.Since(start).Seconds())
	return messages, nil
}

// errNotOpen reports use of a store before Open succeeded.
var errNotOpen = errors.NewStd("database connection is not initialized")
