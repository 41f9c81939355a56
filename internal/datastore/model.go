// model.go this code defines the data model for the application
package datastore

import (
	"time"
)

// DefectType identifies a pavement defect class.
type DefectType string

const (
	DefectPothole  DefectType = "pothole"
	DefectSpalling DefectType = "spalling"
	DefectPatching DefectType = "patching"
	DefectMarking  DefectType = "marking"
)

// DefectTypes returns all defect types in canonical order. The order doubles
// as the tie-break order when ranking repair priorities.
func DefectTypes() []DefectType {
	return []DefectType{DefectPothole, DefectSpalling, DefectPatching, DefectMarking}
}

// Valid reports whether d is a known defect type.
func (d DefectType) Valid() bool {
	switch d {
	case DefectPothole, DefectSpalling, DefectPatching, DefectMarking:
		return true
	default:
		return false
	}
}

// CanonicalRank returns the position of d in the canonical order, or -1 for
// unknown types.
func (d DefectType) CanonicalRank() int {
	for i, t := range DefectTypes() {
		if t == d {
			return i
		}
	}
	return -1
}

// Severity grades how advanced a defect is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// Rank maps severities onto 1..3 with high ranked highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// BBox is a detection bounding box in image pixel coordinates.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area in square pixels.
func (b BBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Detection is a single post-processed defect found in an analyzed image.
// Extent is an instance count for potholes and affected area in square
// meters for the area-based defect types.
type Detection struct {
	ID           uint       `gorm:"primaryKey" json:"-"`
	AssessmentID uint       `gorm:"index;not null" json:"-"`
	DefectType   DefectType `gorm:"type:varchar(20);index:idx_detections_type_severity" json:"defect_type"`
	Severity     Severity   `gorm:"type:varchar(10);index:idx_detections_type_severity" json:"severity"`
	Confidence   float64    `json:"confidence"`
	Extent       float64    `json:"extent"`
	AreaPixels   float64    `json:"area_pixels"`
	BBox         BBox       `gorm:"embedded;embeddedPrefix:bbox_" json:"bbox"`
}

// Validate enforces the detection invariants. The index identifies the
// detection within its batch for error context.
func (d *Detection) Validate(index int) error {
	switch {
	case !d.DefectType.Valid():
		return validationError("unknown defect type", "defect_type", d.DefectType, index)
	case !d.Severity.Valid():
		return validationError("unknown severity", "severity", d.Severity, index)
	case d.Confidence < 0 || d.Confidence > 1:
		return validationError("confidence out of range [0,1]", "confidence", d.Confidence, index)
	case d.Extent < 0:
		return validationError("negative extent", "extent", d.Extent, index)
	default:
		return nil
	}
}

// StageError records a stage failure preserved on the assessment record.
type StageError struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Assessment is one scored analysis of a pavement image. Rows are immutable
// after creation except for appended chat history.
type Assessment struct {
	ID              uint          `gorm:"primaryKey" json:"-"`
	PublicID        string        `gorm:"uniqueIndex;not null;type:varchar(36)" json:"id"`
	ImageRef        string        `gorm:"not null" json:"image_ref"`
	AnnotatedImage  string        `json:"annotated_image,omitempty"`
	Location        string        `gorm:"index" json:"location,omitempty"`
	Score           int           `json:"score"`
	Rating          string        `gorm:"type:varchar(20);index:idx_assessments_rating" json:"rating"`
	MaxCDV          float64       `json:"max_cdv"`
	Analysis        string        `gorm:"type:text" json:"analysis"`
	AnalysisSource  string        `gorm:"type:varchar(20)" json:"analysis_source"`
	Recommendations []string      `gorm:"serializer:json" json:"recommendations"`
	StageErrors     []StageError  `gorm:"serializer:json" json:"stage_errors,omitempty"`
	CreatedAt       time.Time     `gorm:"index" json:"created_at"`
	Detections      []Detection   `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"detections"`
	ChatMessages    []ChatMessage `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"-"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat session attached to an assessment.
// Assistant rows keep the generated query that produced the answer.
type ChatMessage struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	AssessmentID   uint      `gorm:"index:idx_chat_session;not null" json:"-"`
	SessionID      string    `gorm:"index:idx_chat_session;type:varchar(64)" json:"session_id"`
	Role           string    `gorm:"type:varchar(12)" json:"role"`
	Content        string    `gorm:"type:text" json:"content"`
	GeneratedQuery string    `gorm:"type:text" json:"generated_query,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// Validate enforces the chat message invariants.
func (m *ChatMessage) Validate() error {
	switch {
	case m.AssessmentID == 0:
		return validationError("missing assessment reference", "assessment_id", m.AssessmentID, -1)
	case m.Role != RoleUser && m.Role != RoleAssistant:
		return validationError("unknown chat role", "role", m.Role, -1)
	case m.Content == "":
		return validationError("empty message content", "content", m.Content, -1)
	default:
		return nil
	}
}

// SchemaDescription describes the queryable tables for language model
// prompts. It names only columns the read-only executor exposes and spells
// out the extent semantics so generated SQL aggregates correctly.
const SchemaDescription = `Tables:

assessments(id INTEGER PRIMARY KEY, public_id TEXT, image_ref TEXT,
  location TEXT, score INTEGER, rating TEXT, max_cdv REAL, analysis TEXT,
  analysis_source TEXT, created_at DATETIME)
  -- one row per analyzed image; score is 0-100, rating is one of
  -- 'Excellent','Very Good','Good','Satisfactory','Fair','Poor',
  -- 'Very Poor','Failed'

detections(id INTEGER PRIMARY KEY, assessment_id INTEGER, defect_type TEXT,
  severity TEXT, confidence REAL, extent REAL, area_pixels REAL,
  bbox_x REAL, bbox_y REAL, bbox_width REAL, bbox_height REAL)
  -- defect_type: 'pothole','spalling','patching','marking'
  -- severity: 'low','medium','high'
  -- extent: pothole rows count instances (1 per row); other types carry
  -- affected area in square meters

chat_messages(id INTEGER PRIMARY KEY, assessment_id INTEGER, session_id TEXT,
  role TEXT, content TEXT, generated_query TEXT, created_at DATETIME)`
