package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/alarmd/internal/persistence"
)

var alarmCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// AlarmFixture represents a deterministic alarm record that can be
// materialised for application or persistence tests.
type AlarmFixture struct {
	Hour          int
	Minute        int
	RepeatDays    []int
	Enabled       bool
	Sound         string
	Vibration     bool
	SnoozeMinutes int
	Label         string
}

// AlarmOption configures the generated alarm fixture.
type AlarmOption func(*AlarmFixture)

// NewAlarmFixture returns a deterministic enabled one-time alarm fixture with
// optional overrides. Successive fixtures get distinct times of day.
func NewAlarmFixture(opts ...AlarmOption) AlarmFixture {
	idx := atomic.AddUint64(&alarmCounter, 1)
	fixture := AlarmFixture{
		Hour:          int(6 + idx%12),
		Minute:        int(idx % 60),
		Enabled:       true,
		Sound:         "default",
		Vibration:     true,
		SnoozeMinutes: 5,
		Label:         fmt.Sprintf("alarm-%03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTimeOfDay overrides the fixture's hour and minute.
func WithTimeOfDay(hour, minute int) AlarmOption {
	return func(fixture *AlarmFixture) {
		fixture.Hour = hour
		fixture.Minute = minute
	}
}

// WithRepeatDays makes the fixture repeat on the given weekdays (0 = Sunday).
func WithRepeatDays(days ...int) AlarmOption {
	return func(fixture *AlarmFixture) {
		fixture.RepeatDays = days
	}
}

// Disabled marks the fixture disabled.
func Disabled() AlarmOption {
	return func(fixture *AlarmFixture) {
		fixture.Enabled = false
	}
}

// WithLabel overrides the fixture label.
func WithLabel(label string) AlarmOption {
	return func(fixture *AlarmFixture) {
		fixture.Label = label
	}
}

// WithSnoozeMinutes overrides the snooze duration.
func WithSnoozeMinutes(minutes int) AlarmOption {
	return func(fixture *AlarmFixture) {
		fixture.SnoozeMinutes = minutes
	}
}

// Record converts the fixture into a persistence record without an id.
func (f AlarmFixture) Record() persistence.Alarm {
	return persistence.Alarm{
		Hour:          f.Hour,
		Minute:        f.Minute,
		RepeatDays:    append([]int(nil), f.RepeatDays...),
		Enabled:       f.Enabled,
		Sound:         f.Sound,
		Vibration:     f.Vibration,
		SnoozeMinutes: f.SnoozeMinutes,
		Label:         f.Label,
	}
}
