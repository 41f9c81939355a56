// Package scoring computes deterministic pavement condition scores from
// detected defects using calibrated deduct tables, plus the derived metrics
// (cost, priorities, timeline) the analysis and chat workflows report.
package scoring

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// VariantReduceToTwo names the corrected deduct procedure these tables are
// calibrated for.
const VariantReduceToTwo = "reduce-to-2/q-curves"

// maxCorrectionQ is the largest q with its own correction curve; higher q
// values fall back to this curve.
const maxCorrectionQ = 7

// Point is one breakpoint of a piecewise linear curve.
type Point struct {
	X float64
	Y float64
}

// Curve is a monotone non-decreasing piecewise linear function.
type Curve []Point

// Eval interpolates the curve at x. Inputs outside the breakpoint range
// clamp to the curve ends; the result clamps to [0, 100].
func (c Curve) Eval(x float64) float64 {
	if len(c) == 0 {
		return 0
	}

	var y float64
	switch {
	case x <= c[0].X:
		y = c[0].Y
	case x >= c[len(c)-1].X:
		y = c[len(c)-1].Y
	default:
		// Find the segment containing x.
		i := sort.Search(len(c), func(i int) bool { return c[i].X >= x }) - 1
		p, q := c[i], c[i+1]
		t := (x - p.X) / (q.X - p.X)
		y = p.Y + t*(q.Y-p.Y)
	}

	return clamp(y, 0, 100)
}

// validateCurve checks breakpoint count, strictly increasing x, monotone
// non-decreasing y and the [0, 100] range of y.
func validateCurve(name string, c Curve) []string {
	var problems []string
	if len(c) < 2 {
		return append(problems, fmt.Sprintf("curve %s needs at least 2 points", name))
	}
	for i, p := range c {
		if p.Y < 0 || p.Y > 100 {
			problems = append(problems, fmt.Sprintf("curve %s point %d value %.2f outside [0,100]", name, i, p.Y))
		}
		if i == 0 {
			continue
		}
		if p.X <= c[i-1].X {
			problems = append(problems, fmt.Sprintf("curve %s breakpoints not strictly increasing at index %d", name, i))
		}
		if p.Y < c[i-1].Y {
			problems = append(problems, fmt.Sprintf("curve %s not monotone at index %d", name, i))
		}
	}
	return problems
}

// RatingBand maps a minimum score to its condition rating.
type RatingBand struct {
	Rating   string  `yaml:"rating"`
	MinScore float64 `yaml:"min_score"`
}

// Tables holds the calibrated scoring data, loaded once and shared read-only.
type Tables struct {
	Variant          string
	ReferenceExtents map[datastore.DefectType]float64
	DeductCurves     map[datastore.DefectType]map[datastore.Severity]Curve
	CorrectionCurves map[int]Curve
	RatingBands      []RatingBand
	UnitCosts        map[datastore.DefectType]map[datastore.Severity]float64
	CostUncertainty  float64
	PriorityLimit    int
	Timelines        map[string]string
}

// tablesFile is the YAML wire form of Tables.
type tablesFile struct {
	Variant          string                          `yaml:"variant"`
	ReferenceExtents map[string]float64              `yaml:"reference_extents"`
	DeductCurves     map[string]map[string][][2]float64 `yaml:"deduct_curves"`
	CorrectionCurves map[int][][2]float64            `yaml:"correction_curves"`
	RatingBands      []RatingBand                    `yaml:"rating_bands"`
	UnitCosts        map[string]map[string]float64   `yaml:"unit_costs"`
	CostUncertainty  float64                         `yaml:"cost_uncertainty"`
	PriorityLimit    int                             `yaml:"priority_limit"`
	Timelines        map[string]string               `yaml:"timelines"`
}

// LoadTables reads and validates scoring tables. An empty path loads the
// embedded defaults.
func LoadTables(path string) (*Tables, error) {
	data := defaultTablesYAML
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(err).
				Component("scoring").
				Category(errors.CategoryFileIO).
				Context("operation", "load_tables").
				Context("path", path).
				Build()
		}
		data = fileData
	}
	return parseTables(data)
}

// parseTables unmarshals and validates a tables document.
func parseTables(data []byte) (*Tables, error) {
	var file tablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.New(err).
			Component("scoring").
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_tables").
			Build()
	}

	t := &Tables{
		Variant:          file.Variant,
		ReferenceExtents: make(map[datastore.DefectType]float64, len(file.ReferenceExtents)),
		DeductCurves:     make(map[datastore.DefectType]map[datastore.Severity]Curve, len(file.DeductCurves)),
		CorrectionCurves: make(map[int]Curve, len(file.CorrectionCurves)),
		RatingBands:      file.RatingBands,
		UnitCosts:        make(map[datastore.DefectType]map[datastore.Severity]float64, len(file.UnitCosts)),
		CostUncertainty:  file.CostUncertainty,
		PriorityLimit:    file.PriorityLimit,
		Timelines:        file.Timelines,
	}
	for name, extent := range file.ReferenceExtents {
		t.ReferenceExtents[datastore.DefectType(name)] = extent
	}
	for name, bySeverity := range file.DeductCurves {
		curves := make(map[datastore.Severity]Curve, len(bySeverity))
		for severity, points := range bySeverity {
			curves[datastore.Severity(severity)] = toCurve(points)
		}
		t.DeductCurves[datastore.DefectType(name)] = curves
	}
	for q, points := range file.CorrectionCurves {
		t.CorrectionCurves[q] = toCurve(points)
	}
	for name, bySeverity := range file.UnitCosts {
		costs := make(map[datastore.Severity]float64, len(bySeverity))
		for severity, cost := range bySeverity {
			costs[datastore.Severity(severity)] = cost
		}
		t.UnitCosts[datastore.DefectType(name)] = costs
	}

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func toCurve(points [][2]float64) Curve {
	curve := make(Curve, len(points))
	for i, p := range points {
		curve[i] = Point{X: p[0], Y: p[1]}
	}
	return curve
}

// validate checks completeness and curve shape for every table. All problems
// are aggregated into a single configuration error.
func (t *Tables) validate() error {
	var problems []string

	if t.Variant != VariantReduceToTwo {
		problems = append(problems, fmt.Sprintf("unknown scoring variant %q", t.Variant))
	}

	severities := []datastore.Severity{datastore.SeverityLow, datastore.SeverityMedium, datastore.SeverityHigh}
	for _, defectType := range datastore.DefectTypes() {
		ref, ok := t.ReferenceExtents[defectType]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("missing reference extent for %s", defectType))
		case ref <= 0:
			problems = append(problems, fmt.Sprintf("reference extent for %s must be positive", defectType))
		}

		curves, ok := t.DeductCurves[defectType]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing deduct curves for %s", defectType))
			continue
		}
		for _, severity := range severities {
			curve, ok := curves[severity]
			if !ok {
				problems = append(problems, fmt.Sprintf("missing deduct curve for %s/%s", defectType, severity))
				continue
			}
			problems = append(problems, validateCurve(fmt.Sprintf("deduct %s/%s", defectType, severity), curve)...)
		}

		costs, ok := t.UnitCosts[defectType]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing unit costs for %s", defectType))
			continue
		}
		for _, severity := range severities {
			if _, ok := costs[severity]; !ok {
				problems = append(problems, fmt.Sprintf("missing unit cost for %s/%s", defectType, severity))
			}
		}
	}

	for q := 2; q <= maxCorrectionQ; q++ {
		curve, ok := t.CorrectionCurves[q]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing correction curve for q=%d", q))
			continue
		}
		problems = append(problems, validateCurve(fmt.Sprintf("correction q=%d", q), curve)...)
	}

	if len(t.RatingBands) != 8 {
		problems = append(problems, fmt.Sprintf("expected 8 rating bands, got %d", len(t.RatingBands)))
	}
	for i := 1; i < len(t.RatingBands); i++ {
		if t.RatingBands[i].MinScore >= t.RatingBands[i-1].MinScore {
			problems = append(problems, "rating bands must be ordered by descending min_score")
			break
		}
	}
	for _, band := range t.RatingBands {
		if _, ok := t.Timelines[band.Rating]; !ok {
			problems = append(problems, fmt.Sprintf("missing timeline for rating %q", band.Rating))
		}
	}

	if t.CostUncertainty < 0 || t.CostUncertainty >= 1 {
		problems = append(problems, fmt.Sprintf("cost uncertainty %.2f outside [0,1)", t.CostUncertainty))
	}
	if t.PriorityLimit <= 0 {
		problems = append(problems, "priority limit must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid scoring tables: %d problem(s)", len(problems)).
		Component("scoring").
		Category(errors.CategoryConfiguration).
		Context("problems", problems).
		Build()
}

// Rating maps a score onto its condition rating band.
func (t *Tables) Rating(score int) string {
	s := float64(score)
	for _, band := range t.RatingBands {
		if s >= band.MinScore {
			return band.Rating
		}
	}
	// Bands end at zero, so this is reachable only with negative input.
	return t.RatingBands[len(t.RatingBands)-1].Rating
}

// correctionCurve returns the curve for q, falling back to the highest
// calibrated q.
func (t *Tables) correctionCurve(q int) Curve {
	if q > maxCorrectionQ {
		q = maxCorrectionQ
	}
	return t.CorrectionCurves[q]
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
