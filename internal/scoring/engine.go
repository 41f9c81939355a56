package scoring

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/observability/metrics"
)

// deductFloor is the value a deduct is reduced to during correction
// iterations, and the threshold above which a deduct counts toward q.
const deductFloor = 2.0

// DeductValue is the scored contribution of one (defect type, severity)
// group.
type DeductValue struct {
	DefectType datastore.DefectType `json:"defect_type"`
	Severity   datastore.Severity   `json:"severity"`
	Extent     float64              `json:"extent"`
	Density    float64              `json:"density"`
	Deduct     float64              `json:"deduct"`
}

// ConditionScore is the outcome of scoring one set of detections.
type ConditionScore struct {
	Score   int           `json:"score"`
	Rating  string        `json:"rating"`
	MaxCDV  float64       `json:"max_cdv"`
	Deducts []DeductValue `json:"deducts"`
}

// Engine scores detections against a loaded table set. It is safe for
// concurrent use; the tables are read-only after construction.
type Engine struct {
	tables  *Tables
	logger  *slog.Logger
	metrics *metrics.ScoringMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics attaches scoring metrics.
func WithMetrics(m *metrics.ScoringMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a scoring engine over validated tables.
func NewEngine(tables *Tables, opts ...Option) *Engine {
	e := &Engine{tables: tables}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.ForService("scoring")
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Tables exposes the engine's table set for derived-metric callers.
func (e *Engine) Tables() *Tables {
	return e.tables
}

// Score computes the condition score for a set of detections. An empty set
// scores 100. The result depends only on the detections' content, never on
// their order.
func (e *Engine) Score(detections []datastore.Detection) (*ConditionScore, error) {
	start := time.Now()

	for i := range detections {
		if err := detections[i].Validate(i); err != nil {
			if e.metrics != nil {
				e.metrics.RecordComputationError()
			}
			return nil, err
		}
	}

	deducts := e.groupDeducts(detections)
	maxCDV := e.correctedDeduct(deducts)
	score := int(clamp(math.Round(100-maxCDV), 0, 100))
	rating := e.tables.Rating(score)

	result := &ConditionScore{
		Score:   score,
		Rating:  rating,
		MaxCDV:  math.Round(maxCDV*10) / 10,
		Deducts: deducts,
	}

	e.logger.Debug("condition score computed",
		"score", result.Score,
		"rating", result.Rating,
		"max_cdv", result.MaxCDV,
		"deduct_groups", len(result.Deducts),
		"detections", len(detections))
	if e.metrics != nil {
		e.metrics.RecordComputation(float64(result.Score), result.Rating,
			len(result.Deducts), result.MaxCDV, time.Since(start).Seconds())
	}
	return result, nil
}

// groupDeducts aggregates detections by (defect type, severity), computes
// each group's density against its reference extent and evaluates the
// matching deduct curve. The result is ordered by deduct descending with a
// fixed tie-break, which keeps scoring output deterministic.
func (e *Engine) groupDeducts(detections []datastore.Detection) []DeductValue {
	type groupKey struct {
		defectType datastore.DefectType
		severity   datastore.Severity
	}
	extents := make(map[groupKey]float64)
	for i := range detections {
		key := groupKey{detections[i].DefectType, detections[i].Severity}
		extents[key] += detections[i].Extent
	}

	deducts := make([]DeductValue, 0, len(extents))
	for key, extent := range extents {
		density := extent / e.tables.ReferenceExtents[key.defectType] * 100
		deduct := e.tables.DeductCurves[key.defectType][key.severity].Eval(density)
		deducts = append(deducts, DeductValue{
			DefectType: key.defectType,
			Severity:   key.severity,
			Extent:     extent,
			Density:    density,
			Deduct:     deduct,
		})
	}

	sort.Slice(deducts, func(i, j int) bool {
		if deducts[i].Deduct != deducts[j].Deduct {
			return deducts[i].Deduct > deducts[j].Deduct
		}
		ri, rj := deducts[i].DefectType.CanonicalRank(), deducts[j].DefectType.CanonicalRank()
		if ri != rj {
			return ri < rj
		}
		return deducts[i].Severity.Rank() > deducts[j].Severity.Rank()
	})
	return deducts
}

// correctedDeduct runs the correction procedure over the grouped deducts and
// returns the maximum corrected deduct value.
//
// With q = number of deducts above the floor: a single effective deduct is
// used as-is (capped at 100). Otherwise each iteration evaluates the q-curve
// at the current total, then reduces the smallest above-floor deduct to the
// floor and repeats with q-1 until only one remains; the final iteration
// uses the capped total directly. The largest value seen wins.
func (e *Engine) correctedDeduct(deducts []DeductValue) float64 {
	working := make([]float64, 0, len(deducts))
	total := 0.0
	for _, d := range deducts {
		if d.Deduct <= 0 {
			continue
		}
		working = append(working, d.Deduct)
		total += d.Deduct
	}
	if len(working) == 0 {
		return 0
	}

	q := 0
	for _, d := range working {
		if d > deductFloor {
			q++
		}
	}
	if q <= 1 {
		return math.Min(100, total)
	}

	maxCDV := 0.0
	for {
		var cdv float64
		if q == 1 {
			cdv = math.Min(100, total)
		} else {
			cdv = e.tables.correctionCurve(q).Eval(total)
		}
		if cdv > maxCDV {
			maxCDV = cdv
		}
		if q == 1 {
			break
		}

		// working is sorted descending, so the last above-floor entry is
		// the smallest one.
		for i := len(working) - 1; i >= 0; i-- {
			if working[i] > deductFloor {
				total -= working[i] - deductFloor
				working[i] = deductFloor
				break
			}
		}
		q--
	}
	return maxCDV
}
