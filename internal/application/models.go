package application

import "time"

// Alarm represents a wall-clock alarm exposed by the service layer.
type Alarm struct {
	ID     int64
	Hour   int
	Minute int
	// RepeatDays holds weekday indices with 0 = Sunday. Empty means the
	// alarm fires once.
	RepeatDays    []int
	Enabled       bool
	Sound         string
	Vibration     bool
	SnoozeMinutes int
	Label         string
	// NextTrigger is the next occurrence for enabled alarms, nil when the
	// alarm is disabled.
	NextTrigger *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AlarmInput captures caller provided alarm fields.
type AlarmInput struct {
	Hour          int
	Minute        int
	RepeatDays    []int
	Enabled       bool
	Sound         string
	Vibration     bool
	SnoozeMinutes int
	Label         string
}

// SaveAlarmParams wraps the data required to create or update an alarm.
// A zero AlarmID creates a new alarm.
type SaveAlarmParams struct {
	AlarmID int64
	Input   AlarmInput
}

// UpcomingAlarm pairs an enabled alarm with its next occurrence.
type UpcomingAlarm struct {
	Alarm Alarm
	At    time.Time
	Until time.Duration
}
