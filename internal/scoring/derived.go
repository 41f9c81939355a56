package scoring

import (
	"math"
	"sort"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
)

// BreakdownEntry is the aggregate for one (defect type, severity) group.
type BreakdownEntry struct {
	DefectType datastore.DefectType `json:"defect_type"`
	Severity   datastore.Severity   `json:"severity"`
	Count      int                  `json:"count"`
	Extent     float64              `json:"extent"`
}

// CostRange bounds a repair cost estimate. Values are whole currency units.
type CostRange struct {
	Low      float64 `json:"low"`
	Expected float64 `json:"expected"`
	High     float64 `json:"high"`
}

// PriorityItem is one entry of the ranked repair list.
type PriorityItem struct {
	DefectType datastore.DefectType `json:"defect_type"`
	Severity   datastore.Severity   `json:"severity"`
	Extent     float64              `json:"extent"`
	Confidence float64              `json:"confidence"`
	BBox       datastore.BBox       `json:"bbox"`
}

// DerivedMetrics bundles the secondary measures computed from a scored
// assessment. All of them are deterministic functions of their inputs.
type DerivedMetrics struct {
	Breakdown  []BreakdownEntry `json:"breakdown"`
	Cost       CostRange        `json:"cost"`
	Priorities []PriorityItem   `json:"priorities"`
	Timeline   string           `json:"timeline"`
}

// Derive computes the full derived-metric bundle for a scored assessment.
func (e *Engine) Derive(score *ConditionScore, detections []datastore.Detection) *DerivedMetrics {
	return &DerivedMetrics{
		Breakdown:  e.SeverityBreakdown(detections),
		Cost:       e.EstimateCost(detections),
		Priorities: e.PriorityList(detections),
		Timeline:   e.SuggestedTimeline(score.Rating),
	}
}

// SeverityBreakdown counts detections per (defect type, severity) group.
// Entries follow the canonical defect type order with severities high to
// low; groups with no detections are omitted.
func (e *Engine) SeverityBreakdown(detections []datastore.Detection) []BreakdownEntry {
	type groupKey struct {
		defectType datastore.DefectType
		severity   datastore.Severity
	}
	groups := make(map[groupKey]*BreakdownEntry)
	for i := range detections {
		key := groupKey{detections[i].DefectType, detections[i].Severity}
		entry, ok := groups[key]
		if !ok {
			entry = &BreakdownEntry{DefectType: key.defectType, Severity: key.severity}
			groups[key] = entry
		}
		entry.Count++
		entry.Extent += detections[i].Extent
	}

	severities := []datastore.Severity{datastore.SeverityHigh, datastore.SeverityMedium, datastore.SeverityLow}
	breakdown := make([]BreakdownEntry, 0, len(groups))
	for _, defectType := range datastore.DefectTypes() {
		for _, severity := range severities {
			if entry, ok := groups[groupKey{defectType, severity}]; ok {
				breakdown = append(breakdown, *entry)
			}
		}
	}
	return breakdown
}

// EstimateCost sums unit cost times extent over all detections and widens
// the total by the configured uncertainty band.
func (e *Engine) EstimateCost(detections []datastore.Detection) CostRange {
	expected := 0.0
	for i := range detections {
		unitCost := e.tables.UnitCosts[detections[i].DefectType][detections[i].Severity]
		expected += unitCost * detections[i].Extent
	}
	expected = math.Round(expected)
	return CostRange{
		Low:      math.Round(expected * (1 - e.tables.CostUncertainty)),
		Expected: expected,
		High:     math.Round(expected * (1 + e.tables.CostUncertainty)),
	}
}

// PriorityList ranks detections for repair: severity first, then extent,
// then canonical defect type order, capped at the configured limit.
func (e *Engine) PriorityList(detections []datastore.Detection) []PriorityItem {
	items := make([]PriorityItem, 0, len(detections))
	for i := range detections {
		items = append(items, PriorityItem{
			DefectType: detections[i].DefectType,
			Severity:   detections[i].Severity,
			Extent:     detections[i].Extent,
			Confidence: detections[i].Confidence,
			BBox:       detections[i].BBox,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Severity.Rank() != items[j].Severity.Rank() {
			return items[i].Severity.Rank() > items[j].Severity.Rank()
		}
		if items[i].Extent != items[j].Extent {
			return items[i].Extent > items[j].Extent
		}
		if items[i].DefectType != items[j].DefectType {
			return items[i].DefectType.CanonicalRank() < items[j].DefectType.CanonicalRank()
		}
		// Position disambiguates otherwise identical detections so output
		// never depends on input order.
		if items[i].BBox.X != items[j].BBox.X {
			return items[i].BBox.X < items[j].BBox.X
		}
		return items[i].BBox.Y < items[j].BBox.Y
	})

	if len(items) > e.tables.PriorityLimit {
		items = items[:e.tables.PriorityLimit]
	}
	return items
}

// SuggestedTimeline maps a condition rating onto its repair timeline.
func (e *Engine) SuggestedTimeline(rating string) string {
	return e.tables.Timelines[rating]
}
