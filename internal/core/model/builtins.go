package model

import "time"

// CurrentDateKey is the synthetic built-in model value spec §4.6 names:
// it is never put into the Tree by a script; the renderer resolves it on
// demand at render time instead.
const CurrentDateKey = "current-date"

// Clock abstracts "now" so tests can pin the synthetic current-date
// value instead of depending on wall-clock time.
type Clock func() time.Time

var defaultClock Clock = time.Now

// CurrentDate renders the built-in current-date value using clock (or
// the real wall clock if clock is nil).
func CurrentDate(clock Clock) string {
	if clock == nil {
		clock = defaultClock
	}
	return clock().Format("2006-01-02")
}
