//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// MinMaxBuiltin detects manual min/max implementations and float round-trips
// and suggests the built-in min/max functions.
//
// Old patterns:
//
//	if a < b { result = a } else { result = b }
//	result := int(math.Min(float64(a), float64(b)))
//
// New pattern (Go 1.21+):
//
//	result := min(a, b)
//
// See: https://pkg.go.dev/builtin#min
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(
		`int(math.Min(float64($a), float64($b)))`,
	).
		Report("use min($a, $b) instead of int(math.Min(float64(...))) (Go 1.21+)").
		Suggest("min($a, $b)")

	m.Match(
		`int(math.Max(float64($a), float64($b)))`,
	).
		Report("use max($a, $b) instead of int(math.Max(float64(...))) (Go 1.21+)").
		Suggest("max($a, $b)")

	m.Match(
		`if $a < $b { $x = $a } else { $x = $b }`,
	).
		Report("use $x = min($a, $b) instead of if/else (Go 1.21+)").
		Suggest("$x = min($a, $b)")

	m.Match(
		`if $a > $b { $x = $a } else { $x = $b }`,
	).
		Report("use $x = max($a, $b) instead of if/else (Go 1.21+)").
		Suggest("$x = max($a, $b)")
}
