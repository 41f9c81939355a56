package analysis

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
	"github.com/pavewatch/pavewatch-go/internal/workflow"
)

// testSettings returns a configuration the environment can be wired from
// without reaching any external service.
func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Name = "TestNode"
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/analysis.db"
	settings.Detector.Endpoint = "http://localhost:9000"
	settings.Detector.ConfidenceThreshold = 0.25
	settings.Detector.MetersPerPixel = 0.01
	settings.Detector.Timeout = 5 * time.Second
	settings.LLM.Provider = "gemini"
	settings.LLM.APIKey = "test-key"
	settings.LLM.Model = "gemini-2.0-flash"
	settings.LLM.Timeout = 5 * time.Second
	settings.Chat.MaxHistory = 10
	settings.Chat.QueryRowLimit = 100
	settings.Chat.QueryTimeout = 5 * time.Second
	settings.Workflow.MaxSteps = 25
	return settings
}

func TestBuildEnvironment(t *testing.T) {
	env, err := buildEnvironment(context.Background(), testSettings(t))
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.store)
	assert.NotNil(t, env.service)
	assert.NotNil(t, env.metrics)
	assert.Nil(t, env.publisher, "publisher should stay unset when MQTT is disabled")
}

func TestBuildEnvironmentDowngradesBrokenMQTT(t *testing.T) {
	settings := testSettings(t)
	settings.Integrations.MQTT.Enabled = true
	settings.Integrations.MQTT.Broker = "tcp://localhost:1883"
	settings.Integrations.MQTT.Topic = "" // invalid: publisher requires a topic

	env, err := buildEnvironment(context.Background(), settings)
	require.NoError(t, err, "a broken MQTT configuration must not fail startup")
	defer env.Close()

	assert.Nil(t, env.publisher)
}

func TestPrintAssessment(t *testing.T) {
	a := &datastore.Assessment{
		PublicID:        "a1b2c3d4-0000-4111-8222-333344445555",
		ImageRef:        "images/road-007.jpg",
		Location:        "Maple Ave",
		Score:           52,
		Rating:          "Fair",
		MaxCDV:          48,
		Analysis:        "The pavement shows moderate distress.",
		AnalysisSource:  pipeline.SourceLLM,
		Recommendations: []string{"URGENT: repair pothole at Maple Ave"},
		CreatedAt:       time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC),
		Detections: []datastore.Detection{
			{DefectType: datastore.DefectPothole, Severity: datastore.SeverityHigh, Confidence: 0.93, Extent: 1},
			{DefectType: datastore.DefectPatching, Severity: datastore.SeverityLow, Confidence: 0.71, Extent: 20.5},
		},
		StageErrors: []datastore.StageError{{Stage: "analyze", Error: "generation timed out"}},
	}

	var buf bytes.Buffer
	printAssessment(&buf, a, 1500*time.Millisecond)
	out := buf.String()

	assert.Contains(t, out, "Assessment a1b2c3d4-0000-4111-8222-333344445555")
	assert.Contains(t, out, "Condition score: 52/100 (Fair), max CDV 48.0")
	assert.Contains(t, out, "Defects (2):")
	assert.Contains(t, out, "pothole")
	assert.Contains(t, out, "URGENT: repair pothole at Maple Ave")
	assert.Contains(t, out, "Analysis (llm):")
	assert.Contains(t, out, "analyze: generation timed out")
	assert.Contains(t, out, "Completed in 1.5 seconds")
}

func TestPrintAssessmentNoDefects(t *testing.T) {
	a := &datastore.Assessment{
		PublicID: uuid.NewString(),
		ImageRef: "images/road-008.jpg",
		Score:    100,
		Rating:   "Excellent",
	}

	var buf bytes.Buffer
	printAssessment(&buf, a, time.Second)

	assert.Contains(t, buf.String(), "No defects detected.")
}

func TestPrintStageLog(t *testing.T) {
	state := &pipeline.AssessmentState{}
	state.RecordStage(workflow.StageResult{
		Stage:    pipeline.StageDetect,
		Status:   workflow.StatusError,
		Error:    errors.NewStd("detector unreachable"),
		Fatal:    true,
		Duration: 120 * time.Millisecond,
	})
	state.MarkFatal()

	var buf bytes.Buffer
	printStageLog(&buf, state)
	out := buf.String()

	assert.Contains(t, out, "did not complete")
	assert.Contains(t, out, pipeline.StageDetect)
	assert.Contains(t, out, "detector unreachable")
}

func TestInteractiveChatExitsCleanly(t *testing.T) {
	settings := testSettings(t)

	// Seed the store with a committed assessment, then let the chat loop
	// open its own handle on the same database.
	seed := datastore.New(settings)
	require.NoError(t, seed.Open())
	assessment := &datastore.Assessment{
		PublicID: uuid.NewString(),
		ImageRef: "images/road-009.jpg",
		Score:    68,
		Rating:   "Good",
		Detections: []datastore.Detection{
			{DefectType: datastore.DefectSpalling, Severity: datastore.SeverityMedium, Confidence: 0.8, Extent: 4},
		},
	}
	require.NoError(t, seed.SaveAssessment(assessment))
	require.NoError(t, seed.Close())

	var out bytes.Buffer
	err := InteractiveChat(context.Background(), settings, assessment.PublicID,
		strings.NewReader("\nexit\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "score 68/100 (Good), 1 defects")
	assert.Contains(t, out.String(), "exit")
}

func TestInteractiveChatUnknownAssessment(t *testing.T) {
	settings := testSettings(t)

	var out bytes.Buffer
	err := InteractiveChat(context.Background(), settings, "missing-id",
		strings.NewReader("exit\n"), &out)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}
