package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
)

// AssessImage runs one assessment for the referenced image and writes the
// outcome to w. With asJSON the committed record is emitted verbatim,
// otherwise a human-readable summary is printed.
func AssessImage(ctx context.Context, settings *conf.Settings, imageRef, location string, asJSON bool, w io.Writer) error {
	env, err := buildEnvironment(ctx, settings)
	if err != nil {
		return err
	}
	defer env.Close()

	start := time.Now()
	result, err := env.service.Assess(ctx, pipeline.AssessRequest{
		ImageRef: imageRef,
		Location: location,
	})
	if err != nil {
		if result != nil && result.State != nil {
			printStageLog(w, result.State)
		}
		return fmt.Errorf("assessment failed: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Assessment)
	}

	printAssessment(w, result.Assessment, time.Since(start))
	return nil
}

// printStageLog reports which stages ran and where the run died.
func printStageLog(w io.Writer, state *pipeline.AssessmentState) {
	fmt.Fprintln(w, "❌ Assessment did not complete:")
	for _, stage := range state.StageLog() {
		status := "✅"
		if stage.Error != nil {
			status = "❌"
		}
		fmt.Fprintf(w, "  %s %-8s %6.0f ms", status, stage.Stage, float64(stage.Duration.Milliseconds()))
		if stage.Error != nil {
			fmt.Fprintf(w, "  %v", stage.Error)
		}
		fmt.Fprintln(w)
	}
}

// printAssessment renders the committed record as a console summary.
func printAssessment(w io.Writer, a *datastore.Assessment, elapsed time.Duration) {
	fmt.Fprintf(w, "Assessment %s\n", a.PublicID)
	fmt.Fprintf(w, "Image: %s", a.ImageRef)
	if a.Location != "" {
		fmt.Fprintf(w, " (%s)", a.Location)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\nCondition score: %d/100 (%s), max CDV %.1f\n", a.Score, a.Rating, a.MaxCDV)

	if len(a.Detections) == 0 {
		fmt.Fprintln(w, "No defects detected.")
	} else {
		fmt.Fprintf(w, "\nDefects (%d):\n", len(a.Detections))
		fmt.Fprintf(w, "  %-10s %-8s %-11s %s\n", "Type", "Severity", "Confidence", "Extent")
		fmt.Fprintf(w, "  %-10s %-8s %-11s %s\n", "──────────", "────────", "───────────", "──────")
		for i := range a.Detections {
			d := &a.Detections[i]
			fmt.Fprintf(w, "  %-10s %-8s %10.0f%% %6.1f\n",
				d.DefectType, d.Severity, d.Confidence*100, d.Extent)
		}
	}

	if len(a.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range a.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}

	if a.Analysis != "" {
		fmt.Fprintf(w, "\nAnalysis (%s):\n%s\n", a.AnalysisSource, a.Analysis)
	}

	if len(a.StageErrors) > 0 {
		fmt.Fprintln(w, "\n⚠️  Completed with stage errors:")
		for _, se := range a.StageErrors {
			fmt.Fprintf(w, "  %s: %s\n", se.Stage, se.Error)
		}
	}

	fmt.Fprintf(w, "\nCompleted in %.1f seconds\n", elapsed.Seconds())
}
