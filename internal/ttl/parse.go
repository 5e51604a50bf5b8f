// Package ttl turns user supplied TTL strings into expiry instants and
// decides when a stored expiry has passed.
package ttl

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFormat is returned when no accepted TTL form matches the input
	ErrFormat = errors.New("ttl format error")

	// ErrClock is returned when an expiry cannot be computed from the clock
	ErrClock = errors.New("time calculation error")
)

// DisplayLayout is how expiry instants are shown to users
const DisplayLayout = "2006-01-02 15:04:05"

// Absolute forms, most specific first. Date-only input gets midnight appended.
var layouts = []struct {
	layout string
	suffix string
}{
	{"2006-1-2 15:4:5", ""},
	{"2006/1/2 15:4:5", ""},
	{"2006-1-2 15:4:5", " 00:00:00"},
	{"2006/1/2 15:4:5", " 00:00:00"},
}

// Parse converts s into an absolute UTC instant. Absolute dates are read in
// loc (time.Local when nil); anything else must be a relative duration such
// as "2 years 3 days 4h", which is added to now.
func Parse(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	for _, l := range layouts {
		if t, err := time.ParseInLocation(l.layout, s+l.suffix, loc); err == nil {
			return t.UTC(), nil
		}
	}

	span, err := ParseSpan(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	return span.After(now)
}

// Format renders t in loc using DisplayLayout
func Format(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}
