package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Tool names, referenced by the analysis prompt builder and the chat
// answer composer.
const (
	ToolDefectStatistics    = "defect_statistics"
	ToolRepairCostBreakdown = "repair_cost_breakdown"
	ToolPriorityRepairs     = "priority_repairs"
	ToolTimelineEstimate    = "timeline_estimate"
)

// moneyPrinter renders currency amounts with locale grouping ($1,860).
var moneyPrinter = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	return moneyPrinter.Sprintf("$%.0f", v)
}

// ToolInput carries the scored assessment a tool formats from.
type ToolInput struct {
	Score      *ConditionScore
	Detections []datastore.Detection
}

// Tool renders one derived metric as markdown text. Tool output is embedded
// in the analysis prompt and also answers chat questions directly when the
// query path does not apply.
type Tool struct {
	Name        string
	Description string
	Run         func(ToolInput) string
}

// Tools returns the tool registry in its fixed order.
func (e *Engine) Tools() []Tool {
	return []Tool{
		{
			Name:        ToolDefectStatistics,
			Description: "Counts of detected defects by type and severity",
			Run:         e.defectStatistics,
		},
		{
			Name:        ToolRepairCostBreakdown,
			Description: "Estimated repair cost with a per-type breakdown",
			Run:         e.repairCostBreakdown,
		},
		{
			Name:        ToolPriorityRepairs,
			Description: "Ranked list of the most urgent repairs",
			Run:         e.priorityRepairs,
		},
		{
			Name:        ToolTimelineEstimate,
			Description: "Recommended repair and re-assessment timeline",
			Run:         e.timelineEstimate,
		},
	}
}

// ToolByName looks up a tool in the registry.
func (e *Engine) ToolByName(name string) (Tool, bool) {
	for _, tool := range e.Tools() {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

func (e *Engine) defectStatistics(in ToolInput) string {
	if len(in.Detections) == 0 {
		return "No defects detected"
	}

	byType := make(map[datastore.DefectType]int)
	bySeverity := make(map[datastore.Severity]int)
	for i := range in.Detections {
		byType[in.Detections[i].DefectType]++
		bySeverity[in.Detections[i].Severity]++
	}

	types := make([]datastore.DefectType, 0, len(byType))
	for defectType := range byType {
		types = append(types, defectType)
	}
	sort.Slice(types, func(i, j int) bool {
		if byType[types[i]] != byType[types[j]] {
			return byType[types[i]] > byType[types[j]]
		}
		return types[i].CanonicalRank() < types[j].CanonicalRank()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "**Total Defects:** %d\n\n", len(in.Detections))
	b.WriteString("**By Type:**\n")
	for _, defectType := range types {
		fmt.Fprintf(&b, "  - %s: %d\n", defectType, byType[defectType])
	}
	b.WriteString("\n**By Severity:**\n")
	for _, severity := range []datastore.Severity{datastore.SeverityHigh, datastore.SeverityMedium, datastore.SeverityLow} {
		if count, ok := bySeverity[severity]; ok {
			fmt.Fprintf(&b, "  - %s: %d\n", severity, count)
		}
	}
	return b.String()
}

func (e *Engine) repairCostBreakdown(in ToolInput) string {
	if len(in.Detections) == 0 {
		return "No repairs needed"
	}

	cost := e.EstimateCost(in.Detections)
	costByType := make(map[datastore.DefectType]float64)
	for i := range in.Detections {
		unitCost := e.tables.UnitCosts[in.Detections[i].DefectType][in.Detections[i].Severity]
		costByType[in.Detections[i].DefectType] += unitCost * in.Detections[i].Extent
	}

	types := make([]datastore.DefectType, 0, len(costByType))
	for defectType := range costByType {
		types = append(types, defectType)
	}
	sort.Slice(types, func(i, j int) bool {
		if costByType[types[i]] != costByType[types[j]] {
			return costByType[types[i]] > costByType[types[j]]
		}
		return types[i].CanonicalRank() < types[j].CanonicalRank()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "**Total Estimated Cost:** %s\n\n", formatMoney(cost.Expected))
	b.WriteString("**Breakdown by Defect Type:**\n")
	for _, defectType := range types {
		percentage := 0.0
		if cost.Expected > 0 {
			percentage = costByType[defectType] / cost.Expected * 100
		}
		fmt.Fprintf(&b, "  - %s: %s (%.1f%%)\n", defectType, formatMoney(costByType[defectType]), percentage)
	}
	fmt.Fprintf(&b, "\n**Range:** %s - %s\n", formatMoney(cost.Low), formatMoney(cost.High))
	b.WriteString("*(Includes labor, materials, and traffic control)*")
	return b.String()
}

func (e *Engine) priorityRepairs(in ToolInput) string {
	if len(in.Detections) == 0 {
		return "No repairs needed"
	}

	var b strings.Builder
	b.WriteString("**Priority Repair List:**\n\n")
	for i, item := range e.PriorityList(in.Detections) {
		fmt.Fprintf(&b, "%d. **%s** - %s severity\n", i+1, strings.ToUpper(string(item.DefectType)), item.Severity)
		fmt.Fprintf(&b, "   Location: (%.0f, %.0f)\n", item.BBox.X, item.BBox.Y)
		fmt.Fprintf(&b, "   Size: %.0fx%.0f pixels\n", item.BBox.Width, item.BBox.Height)
		fmt.Fprintf(&b, "   Confidence: %.2f\n\n", item.Confidence)
	}
	return b.String()
}

func (e *Engine) timelineEstimate(in ToolInput) string {
	highCount := 0
	for i := range in.Detections {
		if in.Detections[i].Severity == datastore.SeverityHigh {
			highCount++
		}
	}

	var b strings.Builder
	b.WriteString("**Recommended Repair Timeline:**\n\n")
	fmt.Fprintf(&b, "**Overall:** %s\n\n", e.SuggestedTimeline(in.Score.Rating))

	if highCount > 0 {
		b.WriteString("**URGENT (1-2 weeks):**\n")
		fmt.Fprintf(&b, "  - %d high-severity defect(s)\n", highCount)
		b.WriteString("  - Schedule repair crews\n\n")
	}

	switch {
	case in.Score.Score < 50:
		b.WriteString("**SHORT-TERM (1-3 months):**\n")
		b.WriteString("  - Major rehabilitation required\n")
	case in.Score.Score < 75:
		b.WriteString("**MEDIUM-TERM (3-6 months):**\n")
		b.WriteString("  - Corrective maintenance\n")
	default:
		b.WriteString("**LONG-TERM (6-12 months):**\n")
		b.WriteString("  - Preventive maintenance\n")
	}
	fmt.Fprintf(&b, "  - Current score: %d (%s)\n\n", in.Score.Score, in.Score.Rating)

	b.WriteString("**RE-ASSESSMENT:**\n")
	switch {
	case in.Score.Score < 38:
		b.WriteString("  - Weekly monitoring recommended\n")
	case in.Score.Score < 75:
		b.WriteString("  - Monthly inspection recommended\n")
	default:
		b.WriteString("  - Quarterly inspection sufficient\n")
	}
	return b.String()
}
