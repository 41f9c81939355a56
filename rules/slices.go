//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SortToSlices detects the pre-generics sort helpers and suggests the slices
// package equivalents.
//
// Old patterns:
//
//	sort.Ints(nums)
//	sort.Strings(strs)
//
// New pattern (Go 1.21+):
//
//	slices.Sort(nums)
//
// See: https://pkg.go.dev/slices#Sort
func SortToSlices(m dsl.Matcher) {
	m.Match(
		`sort.Ints($s)`,
	).
		Report("use slices.Sort($s) instead of sort.Ints (Go 1.21+)").
		Suggest("slices.Sort($s)")

	m.Match(
		`sort.Strings($s)`,
	).
		Report("use slices.Sort($s) instead of sort.Strings (Go 1.21+)").
		Suggest("slices.Sort($s)")

	m.Match(
		`sort.Slice($s, func($i, $j int) bool { return $s[$i] < $s[$j] })`,
	).
		Report("use slices.Sort($s) instead of sort.Slice with a plain less func (Go 1.21+)")
}

// SlicesClone detects manual slice cloning idioms and suggests slices.Clone.
//
// Old patterns:
//
//	clone := append([]T(nil), s...)
//	clone := make([]T, len(s)); copy(clone, s)
//
// New pattern (Go 1.21+):
//
//	clone := slices.Clone(s)
//
// See: https://pkg.go.dev/slices#Clone
func SlicesClone(m dsl.Matcher) {
	m.Match(
		`append([]$typ(nil), $s...)`,
	).
		Report("use slices.Clone($s) instead of append([]$typ(nil), $s...) (Go 1.21+)")

	m.Match(
		`append([]$typ{}, $s...)`,
	).
		Report("use slices.Clone($s) instead of append([]$typ{}, $s...) (Go 1.21+)")

	m.Match(
		`$clone := make([]$typ, len($s)); copy($clone, $s)`,
	).
		Report("use $clone := slices.Clone($s) instead of make+copy (Go 1.21+)")
}

// MapKeysCollection detects manual map key collection and suggests the maps
// and slices iterator helpers.
//
// Old pattern:
//
//	keys := make([]string, 0, len(m))
//	for k := range m {
//	    keys = append(keys, k)
//	}
//
// New pattern (Go 1.23+):
//
//	keys := slices.Collect(maps.Keys(m))
//
// See: https://pkg.go.dev/maps#Keys
func MapKeysCollection(m dsl.Matcher) {
	m.Match(
		`for $k := range $m { $keys = append($keys, $k) }`,
	).
		Report("use slices.Collect(maps.Keys($m)) to collect map keys (Go 1.23+); use slices.Sorted(maps.Keys($m)) when order matters")
}
