package persistence

import "time"

// Alarm represents a stored wall-clock alarm.
type Alarm struct {
	ID     int64
	Hour   int
	Minute int
	// RepeatDays holds weekday indices with 0 = Sunday. Empty means the
	// alarm fires once and is disabled after dismissal.
	RepeatDays    []int
	Enabled       bool
	Sound         string
	Vibration     bool
	SnoozeMinutes int
	Label         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
