//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// ErrorsNewSprintf detects errors.New wrapped around fmt.Sprintf and
// suggests the formatting constructor.
//
// Old pattern:
//
//	errors.New(fmt.Sprintf("bad value %d", v))
//
// New pattern:
//
//	errors.Newf("bad value %d", v)
//
// The internal errors package provides Newf directly on the enhanced error
// builder; for the standard library, fmt.Errorf is the equivalent.
func ErrorsNewSprintf(m dsl.Matcher) {
	m.Match(
		`errors.New(fmt.Sprintf($*args))`,
	).
		Report("use errors.Newf($args) instead of errors.New(fmt.Sprintf(...))").
		Suggest("errors.Newf($args)")
}

// ErrorWrapVerb detects fmt.Errorf formatting a cause with %v or %s, which
// breaks errors.Is and errors.As for callers.
//
// Old pattern:
//
//	fmt.Errorf("open store: %v", err)
//
// New pattern:
//
//	fmt.Errorf("open store: %w", err)
func ErrorWrapVerb(m dsl.Matcher) {
	m.Match(
		`fmt.Errorf($fmt, $*_, $err)`,
	).
		Where(m["err"].Type.Implements(`error`) &&
			m["fmt"].Text.Matches(`%[vs]"$`) &&
			!m["fmt"].Text.Matches(`%w`)).
		Report("wrap the cause with %w instead of %v so callers can unwrap it")
}
