package scoring

import (
	"fmt"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
)

// FallbackAnalysis builds the deterministic assessment narrative used when
// the language model is unavailable. It reports the same facts the model
// would be prompted with, so degraded runs still produce a useful report.
func (e *Engine) FallbackAnalysis(score *ConditionScore, detections []datastore.Detection, derived *DerivedMetrics) string {
	var b strings.Builder
	b.WriteString("**Pavement Assessment Report**\n\n")
	fmt.Fprintf(&b, "**Overall Condition:** Score %d/100 - %s\n\n", score.Score, score.Rating)
	fmt.Fprintf(&b, "**Defects Detected:** %d\n\n", len(detections))

	if len(derived.Breakdown) > 0 {
		b.WriteString("**Breakdown:**\n")
		for _, entry := range derived.Breakdown {
			fmt.Fprintf(&b, "  - %s (%s): %d\n", entry.DefectType, entry.Severity, entry.Count)
		}
		b.WriteString("\n")
	}

	urgent := urgentItems(derived.Priorities)
	if len(urgent) > 0 {
		fmt.Fprintf(&b, "**HIGH SEVERITY:** %d defect(s) require urgent attention\n", len(urgent))
		for i, item := range urgent {
			if i == maxUrgentItems {
				break
			}
			fmt.Fprintf(&b, "  - %s at (%.0f, %.0f)\n", item.DefectType, item.BBox.X, item.BBox.Y)
		}
		b.WriteString("\n")
	}

	if len(detections) > 0 {
		fmt.Fprintf(&b, "**Estimated Repair Cost:** %s - %s\n\n",
			formatMoney(derived.Cost.Low), formatMoney(derived.Cost.High))
	}

	b.WriteString("**Recommended Actions:**\n")
	switch {
	case score.Score < 38:
		b.WriteString("  1. Immediate safety assessment required\n")
		b.WriteString("  2. Major rehabilitation within 30 days\n")
		b.WriteString("  3. Consider full reconstruction\n")
	case score.Score < 75:
		b.WriteString("  1. Schedule corrective maintenance\n")
		b.WriteString("  2. Address high-severity defects within 60 days\n")
		b.WriteString("  3. Plan for re-assessment in 3 months\n")
	default:
		b.WriteString("  1. Routine preventive maintenance\n")
		b.WriteString("  2. Monitor condition quarterly\n")
		b.WriteString("  3. Address minor defects during next cycle\n")
	}
	fmt.Fprintf(&b, "\n**Suggested Timeline:** %s\n", derived.Timeline)
	return b.String()
}

// urgentItems filters the priority list down to high-severity entries.
func urgentItems(priorities []PriorityItem) []PriorityItem {
	urgent := make([]PriorityItem, 0, len(priorities))
	for _, item := range priorities {
		if item.Severity == datastore.SeverityHigh {
			urgent = append(urgent, item)
		}
	}
	return urgent
}
