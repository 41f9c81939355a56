package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/detector"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// stubDetector serves a scripted detection result.
type stubDetector struct {
	result *detector.Result
	err    error
	calls  int
}

func (d *stubDetector) Detect(ctx context.Context, imageRef string) (*detector.Result, error) {
	d.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScorer(t *testing.T) *scoring.Engine {
	t.Helper()
	tables, err := scoring.LoadTables("")
	require.NoError(t, err)
	return scoring.NewEngine(tables, scoring.WithLogger(testLogger()))
}

// testStore opens a temporary SQLite store.
func testStore(t *testing.T) datastore.Interface {
	t.Helper()
	settings := testSettings(t)
	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/pipeline.db"
	settings.Chat.MaxHistory = 10
	settings.Chat.QueryRowLimit = 50
	settings.Chat.QueryTimeout = 5 * time.Second
	settings.Workflow.MaxSteps = 25
	return settings
}

// sampleResult is a detection result with one high severity pothole and one
// low severity patching area.
func sampleResult() *detector.Result {
	return &detector.Result{
		Detections: []datastore.Detection{
			{
				DefectType: datastore.DefectPothole,
				Severity:   datastore.SeverityHigh,
				Confidence: 0.93,
				Extent:     1,
				AreaPixels: 9200,
				BBox:       datastore.BBox{X: 120, Y: 80, Width: 115, Height: 80},
			},
			{
				DefectType: datastore.DefectPatching,
				Severity:   datastore.SeverityLow,
				Confidence: 0.71,
				Extent:     2.0,
				AreaPixels: 20000,
				BBox:       datastore.BBox{X: 300, Y: 200, Width: 200, Height: 100},
			},
		},
		AnnotatedImage: "/annotated/road-041.jpg",
		Model:          "yolo-pavement-v8",
	}
}

// stageNames projects the stage log onto its stage names in order.
func stageNames(state workflow.State) []string {
	log := state.StageLog()
	names := make([]string, len(log))
	for i, r := range log {
		names[i] = r.Stage
	}
	return names
}
