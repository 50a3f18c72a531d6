package persistence

import "context"

// AlarmRepository exposes CRUD operations for alarms.
type AlarmRepository interface {
	// CreateAlarm stores a new alarm and returns it with its assigned id.
	CreateAlarm(ctx context.Context, alarm Alarm) (Alarm, error)
	UpdateAlarm(ctx context.Context, alarm Alarm) error
	GetAlarm(ctx context.Context, id int64) (Alarm, error)
	ListAlarms(ctx context.Context) ([]Alarm, error)
	// ListEnabledAlarms returns only alarms eligible for arming, used by
	// boot-time recovery.
	ListEnabledAlarms(ctx context.Context) ([]Alarm, error)
	DeleteAlarm(ctx context.Context, id int64) error
	// SetEnabled flips the enabled flag without touching the rest of the
	// record.
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}
