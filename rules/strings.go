//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StringsLinesIteration detects manual line splitting used only for
// iteration and suggests strings.Lines.
//
// Old pattern:
//
//	for _, line := range strings.Split(s, "\n") { ... }
//
// New pattern (Go 1.23+):
//
//	for line := range strings.Lines(s) { ... }
//
// See: https://pkg.go.dev/strings#Lines
func StringsLinesIteration(m dsl.Matcher) {
	m.Match(
		`for $_, $line := range strings.Split($s, "\n") { $*body }`,
	).
		Report(`use for $line := range strings.Lines($s) instead of ranging over strings.Split($s, "\n") (Go 1.23+); note: Lines() handles both \n and \r\n`)

	m.Match(
		`for $_, $line := range strings.Split($s, "\r\n") { $*body }`,
	).
		Report(`use for $line := range strings.Lines($s) instead of ranging over strings.Split($s, "\r\n") (Go 1.23+)`)
}

// StringsSplitIteration detects strings.Split used only for iteration and
// suggests strings.SplitSeq, which avoids the intermediate slice. Only
// applies when the slice result itself is not needed.
//
// Old pattern:
//
//	for _, part := range strings.Split(s, ",") { ... }
//
// New pattern (Go 1.23+):
//
//	for part := range strings.SplitSeq(s, ",") { ... }
//
// See: https://pkg.go.dev/strings#SplitSeq
func StringsSplitIteration(m dsl.Matcher) {
	// Newline separators should use Lines() instead
	m.Match(
		`for $_, $part := range strings.Split($s, $sep) { $*body }`,
	).
		Where(!m["sep"].Text.Matches(`^"\\n"$`) && !m["sep"].Text.Matches(`^"\\r\\n"$`)).
		Report("use for $part := range strings.SplitSeq($s, $sep) to avoid intermediate slice allocation (Go 1.23+)")

	m.Match(
		`for $_, $field := range strings.Fields($s) { $*body }`,
	).
		Report("use for $field := range strings.FieldsSeq($s) to avoid intermediate slice allocation (Go 1.23+)")
}
