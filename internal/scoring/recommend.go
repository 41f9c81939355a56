package scoring

import (
	"fmt"
	"sort"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
)

// maxUrgentItems caps the per-location urgent lines in a recommendation
// list.
const maxUrgentItems = 3

// Recommendations produces the deterministic action list persisted with an
// assessment: a lead action from the rating band, urgent items for
// high-severity defects and an overall cost line.
func (e *Engine) Recommendations(score *ConditionScore, detections []datastore.Detection) []string {
	recommendations := []string{leadAction(score.Rating)}

	high := make([]datastore.Detection, 0, len(detections))
	for i := range detections {
		if detections[i].Severity == datastore.SeverityHigh {
			high = append(high, detections[i])
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		if high[i].Extent != high[j].Extent {
			return high[i].Extent > high[j].Extent
		}
		if high[i].DefectType != high[j].DefectType {
			return high[i].DefectType.CanonicalRank() < high[j].DefectType.CanonicalRank()
		}
		if high[i].BBox.X != high[j].BBox.X {
			return high[i].BBox.X < high[j].BBox.X
		}
		return high[i].BBox.Y < high[j].BBox.Y
	})

	for i, det := range high {
		if i == maxUrgentItems {
			break
		}
		recommendations = append(recommendations, fmt.Sprintf(
			"URGENT: %s repair at location (%.0f, %.0f) - safety hazard",
			det.DefectType, det.BBox.X, det.BBox.Y))
	}

	if len(high) > maxUrgentItems {
		counts := make(map[datastore.DefectType]int)
		for i := range high {
			counts[high[i].DefectType]++
		}
		for _, defectType := range datastore.DefectTypes() {
			if count, ok := counts[defectType]; ok {
				recommendations = append(recommendations, fmt.Sprintf(
					"Priority repair: %d high-severity %s(s) detected", count, defectType))
			}
		}
	}

	if len(detections) > 0 {
		cost := e.EstimateCost(detections)
		recommendations = append(recommendations, fmt.Sprintf(
			"Estimated repair cost: %s - %s", formatMoney(cost.Low), formatMoney(cost.High)))
	}
	return recommendations
}

// leadAction maps a rating band onto its headline maintenance action.
func leadAction(rating string) string {
	switch rating {
	case "Excellent":
		return "Routine maintenance recommended - pavement in excellent condition"
	case "Very Good", "Good":
		return "Preventive maintenance within 12 months recommended"
	case "Satisfactory":
		return "Corrective maintenance within 6 months recommended"
	case "Fair", "Poor":
		return "Major rehabilitation within 3 months required"
	default:
		return "Urgent reconstruction needed - pavement has failed"
	}
}
