package ttl

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Span is a relative duration. It is wider than time.Duration so that
// inputs like "500 years" still resolve.
type Span struct {
	Seconds uint64
	Nanos   uint64 // always below one second
}

type unit struct {
	seconds uint64
	nanos   uint64
}

var units = map[string]unit{}

func init() {
	register := func(u unit, names ...string) {
		for _, n := range names {
			units[n] = u
		}
	}
	register(unit{nanos: 1}, "nanos", "nsec", "ns")
	register(unit{nanos: 1_000}, "usec", "us", "µs")
	register(unit{nanos: 1_000_000}, "millis", "msec", "ms")
	register(unit{seconds: 1}, "seconds", "second", "secs", "sec", "s")
	register(unit{seconds: 60}, "minutes", "minute", "mins", "min", "m")
	register(unit{seconds: 3_600}, "hours", "hour", "hrs", "hr", "h")
	register(unit{seconds: 86_400}, "days", "day", "d")
	register(unit{seconds: 604_800}, "weeks", "week", "w")
	// 30.44 and 365.25 days
	register(unit{seconds: 2_630_016}, "months", "month", "M")
	register(unit{seconds: 31_557_600}, "years", "year", "y")
}

// ParseSpan parses a sequence of <number><unit> terms such as
// "12 years 15days 2min 2s". Units are case sensitive: "M" is months and
// "m" is minutes.
func ParseSpan(s string) (Span, error) {
	rest := strings.TrimSpace(s)
	if rest == "" {
		return Span{}, fmt.Errorf("%w: empty duration", ErrFormat)
	}

	var span Span
	for rest != "" {
		i := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
		if i < 0 {
			return Span{}, fmt.Errorf("%w: time unit needed after %q", ErrFormat, rest)
		}
		if i == 0 {
			return Span{}, fmt.Errorf("%w: expected number at %q", ErrFormat, rest)
		}
		n, err := strconv.ParseUint(rest[:i], 10, 64)
		if err != nil {
			return Span{}, fmt.Errorf("%w: number too large: %s", ErrFormat, rest[:i])
		}

		rest = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
		j := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
		if j < 0 {
			j = len(rest)
		}
		if j == 0 {
			return Span{}, fmt.Errorf("%w: time unit needed after %d", ErrFormat, n)
		}

		u, ok := units[rest[:j]]
		if !ok {
			return Span{}, fmt.Errorf("%w: unknown time unit %q", ErrFormat, rest[:j])
		}
		if err := span.add(n, u); err != nil {
			return Span{}, err
		}

		rest = strings.TrimLeftFunc(rest[j:], unicode.IsSpace)
	}

	return span, nil
}

func (s *Span) add(n uint64, u unit) error {
	var secs, nanos uint64
	if u.seconds > 0 {
		hi, lo := bits.Mul64(n, u.seconds)
		if hi != 0 {
			return fmt.Errorf("%w: duration overflow", ErrFormat)
		}
		secs = lo
	} else {
		perSecond := uint64(time.Second) / u.nanos
		secs = n / perSecond
		nanos = (n % perSecond) * u.nanos
	}

	nanos += s.Nanos
	secs, carry := bits.Add64(secs, nanos/uint64(time.Second), 0)
	if carry != 0 {
		return fmt.Errorf("%w: duration overflow", ErrFormat)
	}
	total, carry := bits.Add64(s.Seconds, secs, 0)
	if carry != 0 {
		return fmt.Errorf("%w: duration overflow", ErrFormat)
	}

	s.Seconds = total
	s.Nanos = nanos % uint64(time.Second)
	return nil
}

// maxInstant bounds expiries to what both SQL engines store as timestamps
var maxInstant = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// After returns the UTC instant s after t
func (s Span) After(t time.Time) (time.Time, error) {
	room := maxInstant.Unix() - t.Unix()
	if room < 0 || s.Seconds > uint64(room) || s.Seconds > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: %d seconds after %s is out of range", ErrClock, s.Seconds, t.UTC().Format(time.RFC3339))
	}
	return time.Unix(t.Unix()+int64(s.Seconds), int64(t.Nanosecond())+int64(s.Nanos)).UTC(), nil
}
