// Package pipeline wires the detector, scoring engine and language model
// into workflow graphs and exposes the caller-facing assessment and chat
// operations. The assessment graph turns an image reference into a scored,
// analyzed, committed record; the chat graph answers questions about a
// committed assessment, optionally through a guarded read-only query.
//
// Model output is data. Generated SQL reaches the database only after the
// textual read-only gate passes, and a rejected query ends the turn with an
// explicit refusal instead of an execution.
package pipeline

import (
	"context"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
)

// Assessment graph stage names.
const (
	StageDetect  = "detect"
	StageScore   = "score"
	StageAnalyze = "analyze"
)

// Chat graph stage names.
const (
	StageClassifyIntent = "classify_intent"
	StageGenerateQuery  = "generate_query"
	StageValidateQuery  = "validate_query"
	StageExecuteQuery   = "execute_query"
	StageComposeAnswer  = "compose_answer"
)

// Publisher receives committed assessments for broadcast. Implementations
// must be safe for concurrent use; publish failures are logged by the
// service and never affect the assessment itself.
type Publisher interface {
	Publish(ctx context.Context, assessment *datastore.Assessment) error
}
