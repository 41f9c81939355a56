package pipeline

import (
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// Analysis provenance values stored on the assessment record.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// AssessmentState carries one assessment run through the graph. A state
// value belongs to exactly one run.
type AssessmentState struct {
	workflow.BaseState

	// Input
	ImageRef string
	Location string

	// Filled by detect
	Detections     []datastore.Detection
	AnnotatedImage string
	Model          string

	// Filled by score
	Score           *scoring.ConditionScore
	Recommendations []string

	// Filled by analyze
	Derived        *scoring.DerivedMetrics
	Analysis       string
	AnalysisSource string
}

// ChatState carries one chat turn through the graph. The assessment and
// history are loaded from committed records before the run starts.
type ChatState struct {
	workflow.BaseState

	// Context
	Assessment *datastore.Assessment
	History    []datastore.ChatMessage

	// Input
	Question  string
	SessionID string

	// Filled by classify_intent
	Structured bool

	// Filled by the query path
	Query       string
	QueryResult *datastore.QueryResult

	// Filled by compose_answer, or by validate_query on refusal
	Answer string
}
