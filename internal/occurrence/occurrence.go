package occurrence

import (
	"errors"
	"time"
)

// Spec describes the wall-clock trigger configuration of an alarm.
type Spec struct {
	Hour   int
	Minute int
	// RepeatDays holds weekday indices with 0 = Sunday. An empty slice
	// denotes a one-time alarm.
	RepeatDays []int
}

// OneTime reports whether the spec fires once rather than weekly.
func (s Spec) OneTime() bool {
	return len(s.RepeatDays) == 0
}

// ErrInvalidSpec indicates the hour, minute, or repeat days are out of range.
var ErrInvalidSpec = errors.New("occurrence: invalid alarm spec")

// Validate checks the spec's fields against their permitted ranges.
func Validate(spec Spec) error {
	if spec.Hour < 0 || spec.Hour > 23 {
		return ErrInvalidSpec
	}
	if spec.Minute < 0 || spec.Minute > 59 {
		return ErrInvalidSpec
	}
	seen := make(map[int]struct{}, len(spec.RepeatDays))
	for _, day := range spec.RepeatDays {
		if day < 0 || day > 6 {
			return ErrInvalidSpec
		}
		if _, ok := seen[day]; ok {
			return ErrInvalidSpec
		}
		seen[day] = struct{}{}
	}
	return nil
}

// Calculator computes trigger instants for alarm specs.
type Calculator struct {
	location *time.Location
}

// NewCalculator constructs a Calculator that evaluates specs in the provided
// location. If loc is nil, the process local timezone is used.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{location: loc}
}

// Next returns the next instant at which the spec should trigger, strictly
// after now.
//
// The calculation enforces the following semantics:
//   - The boundary is exclusive: a candidate equal to now counts as already
//     passed.
//   - One-time specs resolve to today at hour:minute, or the same slot one
//     calendar day later when that has passed. The advance preserves the
//     wall-clock time across DST transitions rather than adding fixed hours.
//   - Repeating specs scan day offsets 0 through 7 inclusive from today's
//     weekday and return the first candidate on a selected weekday that lies
//     in the future. Offset 7 revisits today's weekday a week later, so a
//     non-empty day set always yields a future instant; the offset-7
//     candidate doubles as a conservative fallback.
func (c *Calculator) Next(spec Spec, now time.Time) time.Time {
	loc := c.location
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	if spec.OneTime() {
		candidate := atTimeOfDay(now, spec.Hour, spec.Minute, loc)
		if !candidate.After(now) {
			candidate = atTimeOfDay(now.AddDate(0, 0, 1), spec.Hour, spec.Minute, loc)
		}
		return candidate
	}

	selected := make(map[int]struct{}, len(spec.RepeatDays))
	for _, day := range spec.RepeatDays {
		selected[day] = struct{}{}
	}

	today := int(now.Weekday())
	fallback := atTimeOfDay(now.AddDate(0, 0, 7), spec.Hour, spec.Minute, loc)

	for offset := 0; offset <= 7; offset++ {
		day := (today + offset) % 7
		if _, ok := selected[day]; !ok {
			continue
		}
		candidate := atTimeOfDay(now.AddDate(0, 0, offset), spec.Hour, spec.Minute, loc)
		if candidate.After(now) {
			return candidate
		}
	}

	return fallback
}

// atTimeOfDay pins the supplied date to hour:minute:00.000 in loc.
func atTimeOfDay(date time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}
