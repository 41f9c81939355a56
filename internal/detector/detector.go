// Package detector calls the external defect detection service and turns
// raw model output into canonical detections: class labels are mapped onto
// defect types, severity is derived from bounding box pixel area and extent
// is computed per defect type.
package detector

import (
	"context"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
)

// Client analyzes pavement images for defects.
type Client interface {
	// Detect runs defect detection on the referenced image. The returned
	// detections are validated, canonical and ready for scoring.
	Detect(ctx context.Context, imageRef string) (*Result, error)
}

// Result is the post-processed outcome of one detection call.
type Result struct {
	Detections     []datastore.Detection
	AnnotatedImage string
	Model          string
}
