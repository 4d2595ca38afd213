package timeframe

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * 60
)

// ErrInvalidTimeframe reports a timeframe specifier that cannot be parsed
// into a positive whole-minute magnitude.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Spec is a canonical timeframe: a positive whole number of minutes.
// "1h" and "60m" parse to the same Spec and render to the same String.
type Spec struct {
	Minutes int
}

// Minute is the canonical base resolution of all stored series.
var Minute = Spec{Minutes: 1}

// Parse converts a specifier such as "1m", "5m", "4h" or "2d" into a Spec.
// Any positive integer magnitude is accepted; h converts to 60m, d to 1440m.
func Parse(spec string) (Spec, error) {
	if len(spec) < 2 {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, spec)
	}
	mag, unit := spec[:len(spec)-1], spec[len(spec)-1]

	n, err := strconv.Atoi(mag)
	if err != nil || n <= 0 {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, spec)
	}

	switch unit {
	case 'm':
		return Spec{Minutes: n}, nil
	case 'h':
		return Spec{Minutes: n * minutesPerHour}, nil
	case 'd':
		return Spec{Minutes: n * minutesPerDay}, nil
	default:
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, spec)
	}
}

// MustParse parses a specifier known to be valid at compile time.
func MustParse(spec string) Spec {
	s, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// Duration returns the period length.
func (s Spec) Duration() time.Duration {
	return time.Duration(s.Minutes) * time.Minute
}

// IsMinute reports whether this is the canonical 1m resolution.
func (s Spec) IsMinute() bool { return s.Minutes == 1 }

// String renders the canonical specifier: whole days as "Nd", whole hours
// as "Nh", everything else as "Nm". Used verbatim in storage keys, so the
// rendering must stay stable.
func (s Spec) String() string {
	switch {
	case s.Minutes >= minutesPerDay && s.Minutes%minutesPerDay == 0:
		return strconv.Itoa(s.Minutes/minutesPerDay) + "d"
	case s.Minutes >= minutesPerHour && s.Minutes%minutesPerHour == 0:
		return strconv.Itoa(s.Minutes/minutesPerHour) + "h"
	default:
		return strconv.Itoa(s.Minutes) + "m"
	}
}

// Align floors t to the wall-clock boundary of this timeframe, anchored to
// UTC midnight. Day-multiple frames floor to whole days since the Unix
// epoch; intraday frames floor the minutes elapsed since the start of the
// UTC day. Anchoring to the clock rather than to the request window makes
// aggregation output identical across overlapping requests.
func (s Spec) Align(t time.Time) time.Time {
	t = t.UTC()

	if s.Minutes%minutesPerDay == 0 {
		period := int64(s.Minutes) * 60
		sec := t.Unix()
		rem := ((sec % period) + period) % period
		return time.Unix(sec-rem, 0).UTC()
	}

	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	mins := int(t.Sub(day) / time.Minute)
	mins -= mins % s.Minutes
	return day.Add(time.Duration(mins) * time.Minute)
}

// PeriodEnd returns the exclusive end of the period starting at boundary.
func (s Spec) PeriodEnd(boundary time.Time) time.Time {
	return boundary.Add(s.Duration())
}
