package pipeline

import (
	"fmt"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/scoring"
)

// analysisSystem sets the persona for the assessment narrative.
const analysisSystem = "You are a pavement engineering expert reviewing " +
	"automated road condition assessments. Be specific, technical and " +
	"actionable."

// querySystem sets the persona and the output contract for SQL generation.
const querySystem = "You are a SQL expert generating queries against a road " +
	"assessment database. Return only the SQL query text, no explanation and " +
	"no markdown. Use SELECT only, never INSERT, UPDATE or DELETE."

// queryKeywords flag questions that ask for data rather than
// interpretation.
var queryKeywords = []string{
	"show", "list", "find", "get", "count", "how many",
	"all", "total", "average", "sum", "maximum", "minimum",
	"where", "filter", "search", "query", "select",
}

// wantsQuery reports whether the question looks like a data request.
func wantsQuery(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range queryKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// analysisPrompt assembles the structured context for the narrative: score,
// defect list and the output of every registered tool.
func analysisPrompt(score *scoring.ConditionScore, detections []datastore.Detection, tools []scoring.Tool) string {
	input := scoring.ToolInput{Score: score, Detections: detections}

	var b strings.Builder
	b.WriteString("Analyze this road assessment.\n\n")
	fmt.Fprintf(&b, "Condition score: %d/100 (%s)\n\n", score.Score, score.Rating)
	fmt.Fprintf(&b, "Detected defects:\n%s\n", formatDetections(detections))

	b.WriteString("\nDerived metrics:\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", tool.Name, tool.Run(input))
	}

	b.WriteString(`
Provide a professional assessment covering:
1. Overall pavement condition interpretation
2. Critical issues that need immediate attention
3. Recommended maintenance actions with priority levels
4. Estimated timeline for repairs
5. Safety considerations`)
	return b.String()
}

// queryPrompt carries the fixed schema description, few-shot examples and
// the scope of the current assessment.
func queryPrompt(assessment *datastore.Assessment, question string) string {
	var b strings.Builder
	b.WriteString(datastore.SchemaDescription)
	b.WriteString("\n\nExample queries:\n")
	b.WriteString("- Assessments scoring below 60:\n")
	b.WriteString("  SELECT * FROM assessments WHERE score < 60\n")
	b.WriteString("- Detection counts by type:\n")
	b.WriteString("  SELECT defect_type, COUNT(*) AS count FROM detections GROUP BY defect_type\n")
	b.WriteString("- High severity detections for one assessment:\n")
	b.WriteString("  SELECT * FROM detections WHERE assessment_id = 7 AND severity = 'high'\n")
	fmt.Fprintf(&b, "\nThe current assessment has id %d (public id %s). ",
		assessment.ID, assessment.PublicID)
	b.WriteString("Scope the query to it unless the question spans assessments.\n")
	fmt.Fprintf(&b, "\nQuestion: %s\n\nSQL query:", question)
	return b.String()
}

// answerSystem grounds the assistant in the assessment under discussion.
func answerSystem(a *datastore.Assessment) string {
	var b strings.Builder
	b.WriteString("You are a pavement engineering assistant helping users " +
		"understand road assessment results.\n\n")
	b.WriteString("Current assessment:\n")
	fmt.Fprintf(&b, "- Condition score: %d/100\n", a.Score)
	fmt.Fprintf(&b, "- Rating: %s\n", a.Rating)
	fmt.Fprintf(&b, "- Total defects: %d\n\n", len(a.Detections))
	fmt.Fprintf(&b, "Defect details:\n%s\n\n", formatDetections(a.Detections))
	b.WriteString("Answer the user's question clearly and professionally, " +
		"using specific data from the assessment. If asked about costs, " +
		"estimate from defect types and severities. If asked about " +
		"timelines, prioritize by severity.")
	return b.String()
}

// answerPrompt renders the session history, the executed query with its
// results and the question itself.
func answerPrompt(s *ChatState) string {
	var b strings.Builder
	if len(s.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for i := range s.History {
			fmt.Fprintf(&b, "%s: %s\n", s.History[i].Role, s.History[i].Content)
		}
		b.WriteString("\n")
	}
	if s.Query != "" && s.QueryResult != nil {
		fmt.Fprintf(&b, "Database query run for this question:\n%s\n\n", s.Query)
		fmt.Fprintf(&b, "Query results:\n%s\n\n", renderQueryResult(s.QueryResult))
	}
	fmt.Fprintf(&b, "Question: %s", s.Question)
	return b.String()
}

// formatDetections renders detections one per line for prompts.
func formatDetections(detections []datastore.Detection) string {
	if len(detections) == 0 {
		return "No defects detected"
	}
	var b strings.Builder
	for i := range detections {
		d := &detections[i]
		fmt.Fprintf(&b, "%d. %s - severity %s, confidence %.2f, extent %.2f, "+
			"location (%.0f, %.0f), size %.0fx%.0f px\n",
			i+1, strings.ToUpper(string(d.DefectType)), d.Severity,
			d.Confidence, d.Extent, d.BBox.X, d.BBox.Y, d.BBox.Width, d.BBox.Height)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderQueryResult renders a result set as a markdown table.
func renderQueryResult(r *datastore.QueryResult) string {
	if r.RowCount() == 0 {
		return "No results found."
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(r.Columns, " | ") + " |\n")
	sep := make([]string, len(r.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range r.Rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	if r.Truncated {
		b.WriteString("(results truncated at the row limit)\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// generalToolAnswer summarizes the assessment and points at what the tools
// can answer. Used when no tool route matches the question.
func generalToolAnswer(a *datastore.Assessment) string {
	var b strings.Builder
	b.WriteString("Based on the assessment:\n\n")
	fmt.Fprintf(&b, "**Condition score:** %d/100 (%s)\n", a.Score, a.Rating)
	fmt.Fprintf(&b, "**Total defects:** %d\n\n", len(a.Detections))
	b.WriteString("For specific information, you can ask about:\n")
	b.WriteString("- Repair costs and budget\n")
	b.WriteString("- Priority repairs\n")
	b.WriteString("- Timeline and schedule\n")
	b.WriteString("- Defect statistics\n\n")
	b.WriteString("What would you like to know?")
	return b.String()
}

// stripFences removes a surrounding markdown code fence from model output.
// Models wrap generated SQL in ```sql fences despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag on the opening fence.
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " \t") {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "sql")
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
