package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaultTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := LoadTables("")
	require.NoError(t, err, "embedded tables must load")
	return tables
}

func TestLoadEmbeddedTables(t *testing.T) {
	t.Parallel()

	tables := loadDefaultTables(t)

	assert.Equal(t, VariantReduceToTwo, tables.Variant)
	assert.InDelta(t, 50.0, tables.ReferenceExtents[datastore.DefectPothole], 0.001)
	assert.InDelta(t, 225.0, tables.ReferenceExtents[datastore.DefectSpalling], 0.001)
	assert.InDelta(t, 225.0, tables.ReferenceExtents[datastore.DefectPatching], 0.001)
	assert.InDelta(t, 112.5, tables.ReferenceExtents[datastore.DefectMarking], 0.001)
	assert.Len(t, tables.RatingBands, 8)
	assert.Equal(t, 5, tables.PriorityLimit)
	assert.InDelta(t, 0.2, tables.CostUncertainty, 0.001)

	for _, band := range tables.RatingBands {
		assert.NotEmpty(t, tables.Timelines[band.Rating], "timeline for %s", band.Rating)
	}
	for q := 2; q <= 7; q++ {
		assert.NotEmpty(t, tables.CorrectionCurves[q], "correction curve q=%d", q)
	}
}

func TestLoadTablesFromFile(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tables.yaml")
		require.NoError(t, os.WriteFile(path, defaultTablesYAML, 0o644))

		tables, err := LoadTables(path)
		require.NoError(t, err)
		assert.Equal(t, VariantReduceToTwo, tables.Variant)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("variant: [unclosed"), 0o644))

		_, err := LoadTables(path)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})
}

func TestTablesValidateRejectsBadData(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Tables)
	}{
		{
			name:   "unknown variant",
			mutate: func(tb *Tables) { tb.Variant = "additive" },
		},
		{
			name: "missing reference extent",
			mutate: func(tb *Tables) {
				delete(tb.ReferenceExtents, datastore.DefectSpalling)
			},
		},
		{
			name: "non-positive reference extent",
			mutate: func(tb *Tables) {
				tb.ReferenceExtents[datastore.DefectPothole] = 0
			},
		},
		{
			name: "missing deduct curve",
			mutate: func(tb *Tables) {
				delete(tb.DeductCurves[datastore.DefectMarking], datastore.SeverityMedium)
			},
		},
		{
			name: "non-monotone deduct curve",
			mutate: func(tb *Tables) {
				curve := tb.DeductCurves[datastore.DefectPothole][datastore.SeverityHigh]
				curve[2].Y = curve[1].Y - 1
			},
		},
		{
			name: "non-increasing breakpoints",
			mutate: func(tb *Tables) {
				curve := tb.DeductCurves[datastore.DefectPothole][datastore.SeverityLow]
				curve[3].X = curve[2].X
			},
		},
		{
			name: "deduct value above 100",
			mutate: func(tb *Tables) {
				curve := tb.DeductCurves[datastore.DefectSpalling][datastore.SeverityHigh]
				curve[len(curve)-1].Y = 120
			},
		},
		{
			name: "missing correction curve",
			mutate: func(tb *Tables) {
				delete(tb.CorrectionCurves, 5)
			},
		},
		{
			name: "wrong band count",
			mutate: func(tb *Tables) {
				tb.RatingBands = tb.RatingBands[:7]
			},
		},
		{
			name: "unordered bands",
			mutate: func(tb *Tables) {
				tb.RatingBands[0], tb.RatingBands[1] = tb.RatingBands[1], tb.RatingBands[0]
			},
		},
		{
			name: "missing unit cost",
			mutate: func(tb *Tables) {
				delete(tb.UnitCosts[datastore.DefectPatching], datastore.SeverityHigh)
			},
		},
		{
			name: "missing timeline",
			mutate: func(tb *Tables) {
				delete(tb.Timelines, "Failed")
			},
		},
		{
			name:   "uncertainty out of range",
			mutate: func(tb *Tables) { tb.CostUncertainty = 1.0 },
		},
		{
			name:   "non-positive priority limit",
			mutate: func(tb *Tables) { tb.PriorityLimit = 0 },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tables, err := parseTables(defaultTablesYAML)
			require.NoError(t, err)

			tc.mutate(tables)
			err = tables.validate()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration),
				"expected configuration error, got %v", err)
		})
	}
}

func TestCurveEval(t *testing.T) {
	t.Parallel()

	curve := Curve{{X: 0, Y: 0}, {X: 10, Y: 20}, {X: 50, Y: 60}}

	testCases := []struct {
		name string
		x    float64
		want float64
	}{
		{name: "below range clamps to first point", x: -5, want: 0},
		{name: "first breakpoint", x: 0, want: 0},
		{name: "interpolates first segment", x: 5, want: 10},
		{name: "interior breakpoint", x: 10, want: 20},
		{name: "interpolates second segment", x: 30, want: 40},
		{name: "last breakpoint", x: 50, want: 60},
		{name: "above range clamps to last point", x: 200, want: 60},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, curve.Eval(tc.x), 0.0001)
		})
	}

	t.Run("empty curve evaluates to zero", func(t *testing.T) {
		t.Parallel()
		assert.Zero(t, Curve{}.Eval(42))
	})
}

func TestRatingBands(t *testing.T) {
	t.Parallel()

	tables := loadDefaultTables(t)

	testCases := []struct {
		score int
		want  string
	}{
		{score: 100, want: "Excellent"},
		{score: 88, want: "Excellent"},
		{score: 87, want: "Very Good"},
		{score: 75, want: "Very Good"},
		{score: 74, want: "Good"},
		{score: 65, want: "Good"},
		{score: 63, want: "Good"},
		{score: 62, want: "Satisfactory"},
		{score: 50, want: "Satisfactory"},
		{score: 49, want: "Fair"},
		{score: 38, want: "Fair"},
		{score: 37, want: "Poor"},
		{score: 25, want: "Poor"},
		{score: 24, want: "Very Poor"},
		{score: 13, want: "Very Poor"},
		{score: 12, want: "Failed"},
		{score: 0, want: "Failed"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, tables.Rating(tc.score), "score %d", tc.score)
	}
}

func TestDeductCurvesMonotone(t *testing.T) {
	t.Parallel()

	tables := loadDefaultTables(t)

	// Sampling across the density range must never decrease for any curve.
	for defectType, bySeverity := range tables.DeductCurves {
		for severity, curve := range bySeverity {
			previous := -1.0
			for density := 0.0; density <= 250; density += 0.5 {
				value := curve.Eval(density)
				assert.GreaterOrEqual(t, value, previous,
					"%s/%s deduct decreased at density %.1f", defectType, severity, density)
				assert.LessOrEqual(t, value, 100.0)
				previous = value
			}
		}
	}
}

func TestCorrectionCurvesDecreaseWithQ(t *testing.T) {
	t.Parallel()

	tables := loadDefaultTables(t)

	// At a fixed total deduct, a higher q must never correct upward.
	for _, total := range []float64{30, 60, 90, 120, 180} {
		for q := 3; q <= 7; q++ {
			lower := tables.CorrectionCurves[q].Eval(total)
			higher := tables.CorrectionCurves[q-1].Eval(total)
			assert.LessOrEqual(t, lower, higher,
				"q=%d above q=%d at total %.0f", q, q-1, total)
		}
	}
}
