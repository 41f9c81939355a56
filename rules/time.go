//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimeDateTimeConstants detects magic date/time format strings and suggests
// the named constants added in Go 1.20.
//
// Old pattern:
//
//	t.Format("2006-01-02 15:04:05")
//
// New pattern (Go 1.20+):
//
//	t.Format(time.DateTime)
//
// See: https://pkg.go.dev/time#pkg-constants (DateTime, DateOnly, TimeOnly)
func TimeDateTimeConstants(m dsl.Matcher) {
	m.Match(
		`$t.Format("2006-01-02 15:04:05")`,
	).
		Report(`use $t.Format(time.DateTime) instead of magic format string (Go 1.20+)`).
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(
		`time.Parse("2006-01-02 15:04:05", $s)`,
	).
		Report(`use time.Parse(time.DateTime, $s) instead of magic format string (Go 1.20+)`).
		Suggest(`time.Parse(time.DateTime, $s)`)

	m.Match(
		`$t.Format("2006-01-02")`,
	).
		Report(`use $t.Format(time.DateOnly) instead of magic format string (Go 1.20+)`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(
		`time.Parse("2006-01-02", $s)`,
	).
		Report(`use time.Parse(time.DateOnly, $s) instead of magic format string (Go 1.20+)`).
		Suggest(`time.Parse(time.DateOnly, $s)`)
}

// DeferredTimeSince detects deferred calls that evaluate time.Since at defer
// time instead of at function exit, which always reports ~0 duration.
//
// Broken pattern:
//
//	start := time.Now()
//	defer log.Println(time.Since(start))  // evaluated now, not at exit
//
// Correct pattern:
//
//	defer func() { log.Println(time.Since(start)) }()
//
// See: https://pkg.go.dev/time#Since
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap in func() to measure actual duration")

	m.Match(
		`defer $fn(time.Since($start), $*args)`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap in func() to measure actual duration")

	m.Match(
		`defer $fn($*args, time.Since($start))`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap in func() to measure actual duration")
}
