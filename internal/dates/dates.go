// Package dates normalizes imagery dates. Sentinel-2 L2A coverage begins in
// 2017, so every date the system handles is clamped to [2017-01-01, today].
package dates

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Layout is the wire format for imagery dates.
const Layout = "2006-01-02"

// Min is the earliest date with usable imagery.
var Min = time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)

// clock is a package-level time source so tests can freeze "today".
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Today returns the current date truncated to midnight UTC.
func Today() time.Time {
	return clock.Now().UTC().Truncate(24 * time.Hour)
}

// Clamp forces t into [Min, today]. The second return reports whether
// clamping changed the value.
func Clamp(t time.Time) (time.Time, bool) {
	t = t.UTC().Truncate(24 * time.Hour)
	if t.Before(Min) {
		return Min, true
	}
	if today := Today(); t.After(today) {
		return today, true
	}
	return t, false
}

// Normalize converts a date supplied as a time.Time or a YYYY-MM-DD string
// into a clamped YYYY-MM-DD string. Unparseable or empty input yields today.
func Normalize(v any) string {
	switch d := v.(type) {
	case time.Time:
		t, _ := Clamp(d)
		return t.Format(Layout)
	case string:
		t, err := time.Parse(Layout, d)
		if err != nil {
			return Today().Format(Layout)
		}
		t, _ = Clamp(t)
		return t.Format(Layout)
	default:
		return Today().Format(Layout)
	}
}
