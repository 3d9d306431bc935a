// Package slot defines the unit of bookable time: an hour-aligned UTC
// instant. Appointments are fixed one-hour slots, so conflict detection is
// exact-instant equality rather than interval overlap.
package slot

import "time"

// StartOfHour truncates t to its enclosing hour boundary, in UTC.
func StartOfHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// IsPast reports whether t is strictly before now.
//
// now is injected so callers stay deterministic under test.
func IsPast(t, now time.Time) bool {
	return t.Before(now)
}
