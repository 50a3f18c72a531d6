package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/alarmd/internal/metrics"
	"github.com/example/alarmd/internal/occurrence"
	"github.com/example/alarmd/internal/persistence"
	"github.com/example/alarmd/internal/ringing"
	"github.com/example/alarmd/internal/timer"
)

// AlarmStore captures the persistence interactions needed by the service.
type AlarmStore interface {
	CreateAlarm(ctx context.Context, alarm persistence.Alarm) (persistence.Alarm, error)
	UpdateAlarm(ctx context.Context, alarm persistence.Alarm) error
	GetAlarm(ctx context.Context, id int64) (persistence.Alarm, error)
	ListAlarms(ctx context.Context) ([]persistence.Alarm, error)
	ListEnabledAlarms(ctx context.Context) ([]persistence.Alarm, error)
	DeleteAlarm(ctx context.Context, id int64) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// TimerPort arms and disarms one-shot wall-clock timers keyed by alarm id.
// Arming an id with a pending timer replaces it.
type TimerPort interface {
	Arm(id int64, at time.Time) error
	Disarm(id int64) error
}

// Ringer starts the ringing flow for a fired alarm.
type Ringer interface {
	Ring(ctx context.Context, req ringing.Request) error
}

const (
	defaultSound         = "default"
	defaultSnoozeMinutes = 5
	maxLabelLength       = 200
)

// AlarmService orchestrates validation, persistence and timer bookkeeping for
// alarm operations. Mutations for a given alarm id are serialized so a fire
// racing a delete or toggle observes a consistent schedule.
type AlarmService struct {
	alarms AlarmStore
	timers TimerPort
	ringer Ringer
	calc   *occurrence.Calculator
	retry  timer.RetryConfig
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewAlarmService wires dependencies for alarm operations. A zero retry
// configuration selects the defaults.
func NewAlarmService(alarms AlarmStore, timers TimerPort, ringer Ringer, calc *occurrence.Calculator, retry timer.RetryConfig, logger *slog.Logger, now func() time.Time) *AlarmService {
	if calc == nil {
		calc = occurrence.NewCalculator(nil)
	}
	if retry.MaxRetries <= 0 && retry.InitialDelay <= 0 {
		retry = timer.DefaultRetryConfig()
	}
	if now == nil {
		now = time.Now
	}
	return &AlarmService{
		alarms: alarms,
		timers: timers,
		ringer: ringer,
		calc:   calc,
		retry:  retry,
		logger: defaultLogger(logger),
		now:    now,
		locks:  make(map[int64]*sync.Mutex),
	}
}

// SaveAlarm validates the input, persists it, and brings the timer in line
// with the stored schedule. A zero AlarmID creates a new alarm.
func (s *AlarmService) SaveAlarm(ctx context.Context, params SaveAlarmParams) (Alarm, error) {
	if s == nil || s.alarms == nil {
		return Alarm{}, fmt.Errorf("alarm repository not configured")
	}

	input := normalizeInput(params.Input)
	if vErr := validateAlarmInput(input); vErr.HasErrors() {
		return Alarm{}, vErr
	}

	logger := serviceLogger(ctx, s.logger, "alarm", "save")

	if params.AlarmID == 0 {
		created, err := s.alarms.CreateAlarm(ctx, persistence.Alarm{
			Hour:          input.Hour,
			Minute:        input.Minute,
			RepeatDays:    input.RepeatDays,
			Enabled:       input.Enabled,
			Sound:         input.Sound,
			Vibration:     input.Vibration,
			SnoozeMinutes: input.SnoozeMinutes,
			Label:         input.Label,
		})
		if err != nil {
			return Alarm{}, mapRepoError(err)
		}
		if err := s.syncTimer(ctx, logger, created); err != nil {
			return Alarm{}, err
		}
		return s.toAlarm(created), nil
	}

	lock := s.lockFor(params.AlarmID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.alarms.GetAlarm(ctx, params.AlarmID)
	if err != nil {
		return Alarm{}, mapRepoError(err)
	}

	updated := existing
	updated.Hour = input.Hour
	updated.Minute = input.Minute
	updated.RepeatDays = input.RepeatDays
	updated.Enabled = input.Enabled
	updated.Sound = input.Sound
	updated.Vibration = input.Vibration
	updated.SnoozeMinutes = input.SnoozeMinutes
	updated.Label = input.Label

	if err := s.alarms.UpdateAlarm(ctx, updated); err != nil {
		return Alarm{}, mapRepoError(err)
	}

	stored, err := s.alarms.GetAlarm(ctx, params.AlarmID)
	if err != nil {
		return Alarm{}, mapRepoError(err)
	}
	if err := s.syncTimer(ctx, logger, stored); err != nil {
		return Alarm{}, err
	}
	return s.toAlarm(stored), nil
}

// ToggleAlarm flips the enabled flag and arms or disarms accordingly.
func (s *AlarmService) ToggleAlarm(ctx context.Context, alarmID int64, enabled bool) (Alarm, error) {
	if s == nil || s.alarms == nil {
		return Alarm{}, fmt.Errorf("alarm repository not configured")
	}

	lock := s.lockFor(alarmID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.alarms.SetEnabled(ctx, alarmID, enabled); err != nil {
		return Alarm{}, mapRepoError(err)
	}

	stored, err := s.alarms.GetAlarm(ctx, alarmID)
	if err != nil {
		return Alarm{}, mapRepoError(err)
	}

	logger := serviceLogger(ctx, s.logger, "alarm", "toggle")
	if err := s.syncTimer(ctx, logger, stored); err != nil {
		return Alarm{}, err
	}
	return s.toAlarm(stored), nil
}

// DeleteAlarm disarms any pending timer before removing the record, so a
// timer can never fire for an alarm that no longer exists.
func (s *AlarmService) DeleteAlarm(ctx context.Context, alarmID int64) error {
	if s == nil || s.alarms == nil {
		return fmt.Errorf("alarm repository not configured")
	}

	lock := s.lockFor(alarmID)
	lock.Lock()
	defer lock.Unlock()

	if s.timers != nil {
		if err := s.timers.Disarm(alarmID); err != nil {
			metrics.DisarmFailures.Inc()
			return fmt.Errorf("%w: disarm alarm %d: %s", ErrTimerUnavailable, alarmID, err)
		}
	}

	if err := s.alarms.DeleteAlarm(ctx, alarmID); err != nil {
		return mapRepoError(err)
	}

	s.mu.Lock()
	delete(s.locks, alarmID)
	s.mu.Unlock()

	serviceLogger(ctx, s.logger, "alarm", "delete").Info("alarm deleted", "alarm_id", alarmID)
	return nil
}

// GetAlarm returns a single alarm by id.
func (s *AlarmService) GetAlarm(ctx context.Context, alarmID int64) (Alarm, error) {
	if s == nil || s.alarms == nil {
		return Alarm{}, fmt.Errorf("alarm repository not configured")
	}
	stored, err := s.alarms.GetAlarm(ctx, alarmID)
	if err != nil {
		return Alarm{}, mapRepoError(err)
	}
	return s.toAlarm(stored), nil
}

// ListAlarms enumerates all alarms ordered by time of day.
func (s *AlarmService) ListAlarms(ctx context.Context) ([]Alarm, error) {
	if s == nil || s.alarms == nil {
		return nil, fmt.Errorf("alarm repository not configured")
	}
	stored, err := s.alarms.ListAlarms(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	alarms := make([]Alarm, 0, len(stored))
	for _, record := range stored {
		alarms = append(alarms, s.toAlarm(record))
	}
	return alarms, nil
}

// NextUpcoming returns the enabled alarm with the soonest occurrence. The
// second return value is false when no alarm is enabled.
func (s *AlarmService) NextUpcoming(ctx context.Context) (UpcomingAlarm, bool, error) {
	if s == nil || s.alarms == nil {
		return UpcomingAlarm{}, false, fmt.Errorf("alarm repository not configured")
	}

	enabled, err := s.alarms.ListEnabledAlarms(ctx)
	if err != nil {
		return UpcomingAlarm{}, false, mapRepoError(err)
	}
	if len(enabled) == 0 {
		return UpcomingAlarm{}, false, nil
	}

	now := s.now()
	var best persistence.Alarm
	var bestAt time.Time
	for _, record := range enabled {
		at := s.calc.Next(specFor(record), now)
		if bestAt.IsZero() || at.Before(bestAt) || (at.Equal(bestAt) && record.ID < best.ID) {
			best = record
			bestAt = at
		}
	}

	return UpcomingAlarm{
		Alarm: s.toAlarm(best),
		At:    bestAt,
		Until: bestAt.Sub(now),
	}, true, nil
}

// RearmAll re-arms every enabled alarm from persisted state. It is invoked
// once at startup so schedules survive process restarts. It returns the
// number of alarms armed and the first arm failure, after attempting all.
func (s *AlarmService) RearmAll(ctx context.Context) (int, error) {
	if s == nil || s.alarms == nil {
		return 0, fmt.Errorf("alarm repository not configured")
	}

	enabled, err := s.alarms.ListEnabledAlarms(ctx)
	if err != nil {
		return 0, mapRepoError(err)
	}

	logger := serviceLogger(ctx, s.logger, "alarm", "rearm_all")

	armed := 0
	var firstErr error
	for _, record := range enabled {
		if err := s.armNext(ctx, logger, record); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		armed++
	}

	logger.Info("boot recovery complete", "enabled", len(enabled), "armed", armed)
	return armed, firstErr
}

// HandleFired reacts to a timer expiry. The alarm is re-read from storage;
// fires for deleted or disabled alarms are dropped. Repeating alarms are
// re-armed for their next occurrence before the ringing flow starts, so the
// following occurrence is pending while this one rings.
func (s *AlarmService) HandleFired(ctx context.Context, alarmID int64, firedAt time.Time) {
	if s == nil || s.alarms == nil {
		return
	}

	logger := serviceLogger(ctx, s.logger, "alarm", "fired", "alarm_id", alarmID)

	lock := s.lockFor(alarmID)
	lock.Lock()

	record, err := s.alarms.GetAlarm(ctx, alarmID)
	if err != nil {
		lock.Unlock()
		metrics.StaleFires.Inc()
		if errors.Is(err, persistence.ErrNotFound) {
			logger.Debug("dropping fire for deleted alarm")
		} else {
			logger.Error("failed to load fired alarm", "error", err)
		}
		return
	}
	if !record.Enabled {
		lock.Unlock()
		metrics.StaleFires.Inc()
		logger.Debug("dropping fire for disabled alarm")
		return
	}

	spec := specFor(record)
	if !spec.OneTime() {
		if err := s.armNext(ctx, logger, record); err != nil {
			logger.Error("failed to re-arm repeating alarm", "error", err)
		}
	}
	lock.Unlock()

	metrics.AlarmsFired.Inc()
	logger.Info("alarm fired", "fired_at", firedAt, "one_time", spec.OneTime())

	if s.ringer == nil {
		return
	}

	err = s.ringer.Ring(ctx, ringing.Request{
		AlarmID:       record.ID,
		OneTime:       spec.OneTime(),
		SnoozeMinutes: record.SnoozeMinutes,
		Sound:         record.Sound,
		Vibration:     record.Vibration,
		Label:         record.Label,
		FiredAt:       firedAt,
	})
	switch {
	case err == nil:
	case errors.Is(err, ringing.ErrAlreadyRinging):
		logger.Debug("alarm is already ringing")
	case errors.Is(err, ringing.ErrBusy):
		logger.Warn("another alarm is ringing, fire dropped")
	default:
		logger.Error("failed to start ringing", "error", err)
	}
}

// AlarmDismissed applies the post-dismissal schedule policy: one-time alarms
// are disabled, repeating alarms were already re-armed at fire time.
func (s *AlarmService) AlarmDismissed(ctx context.Context, alarmID int64, oneTime bool) error {
	if s == nil || s.alarms == nil {
		return nil
	}
	if !oneTime {
		return nil
	}

	lock := s.lockFor(alarmID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.alarms.SetEnabled(ctx, alarmID, false); err != nil {
		// The alarm may have been deleted while it was ringing.
		if errors.Is(err, persistence.ErrNotFound) {
			return nil
		}
		return err
	}

	serviceLogger(ctx, s.logger, "alarm", "dismissed").Info("one-time alarm disabled", "alarm_id", alarmID)
	return nil
}

// ArmSnooze schedules a fire at the snooze target. For repeating alarms this
// replaces the pending next-occurrence timer; the fire handler restores it
// when the snooze rings.
func (s *AlarmService) ArmSnooze(ctx context.Context, alarmID int64, at time.Time) error {
	if s == nil || s.timers == nil {
		return nil
	}

	lock := s.lockFor(alarmID)
	lock.Lock()
	defer lock.Unlock()

	if err := timer.ArmWithRetry(ctx, s.timers, alarmID, at, s.retry); err != nil {
		metrics.ArmFailures.Inc()
		return fmt.Errorf("%w: snooze alarm %d: %s", ErrTimerUnavailable, alarmID, err)
	}
	metrics.AlarmsArmed.Inc()
	serviceLogger(ctx, s.logger, "alarm", "snooze").Info("snooze armed", "alarm_id", alarmID, "at", at)
	return nil
}

// syncTimer brings the pending timer in line with the stored record: enabled
// alarms are armed at their next occurrence, disabled ones disarmed.
func (s *AlarmService) syncTimer(ctx context.Context, logger *slog.Logger, record persistence.Alarm) error {
	if s.timers == nil {
		return nil
	}

	if !record.Enabled {
		if err := s.timers.Disarm(record.ID); err != nil {
			metrics.DisarmFailures.Inc()
			return fmt.Errorf("%w: disarm alarm %d: %s", ErrTimerUnavailable, record.ID, err)
		}
		return nil
	}

	return s.armNext(ctx, logger, record)
}

func (s *AlarmService) armNext(ctx context.Context, logger *slog.Logger, record persistence.Alarm) error {
	at := s.calc.Next(specFor(record), s.now())
	if err := timer.ArmWithRetry(ctx, s.timers, record.ID, at, s.retry); err != nil {
		metrics.ArmFailures.Inc()
		return fmt.Errorf("%w: arm alarm %d: %s", ErrTimerUnavailable, record.ID, err)
	}
	metrics.AlarmsArmed.Inc()
	logger.Info("alarm armed", "alarm_id", record.ID, "at", at)
	return nil
}

func (s *AlarmService) lockFor(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *AlarmService) toAlarm(record persistence.Alarm) Alarm {
	alarm := Alarm{
		ID:            record.ID,
		Hour:          record.Hour,
		Minute:        record.Minute,
		RepeatDays:    record.RepeatDays,
		Enabled:       record.Enabled,
		Sound:         record.Sound,
		Vibration:     record.Vibration,
		SnoozeMinutes: record.SnoozeMinutes,
		Label:         record.Label,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.Enabled {
		next := s.calc.Next(specFor(record), s.now())
		alarm.NextTrigger = &next
	}
	return alarm
}

func specFor(record persistence.Alarm) occurrence.Spec {
	return occurrence.Spec{Hour: record.Hour, Minute: record.Minute, RepeatDays: record.RepeatDays}
}

func normalizeInput(input AlarmInput) AlarmInput {
	input.Label = strings.TrimSpace(input.Label)
	if strings.TrimSpace(input.Sound) == "" {
		input.Sound = defaultSound
	}
	if input.SnoozeMinutes == 0 {
		input.SnoozeMinutes = defaultSnoozeMinutes
	}
	input.RepeatDays = uniqueSortedDays(input.RepeatDays)
	return input
}

func validateAlarmInput(input AlarmInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Hour < 0 || input.Hour > 23 {
		vErr.add("hour", "hour must be between 0 and 23")
	}
	if input.Minute < 0 || input.Minute > 59 {
		vErr.add("minute", "minute must be between 0 and 59")
	}
	for _, day := range input.RepeatDays {
		if day < 0 || day > 6 {
			vErr.add("repeat_days", "weekdays must be between 0 (Sunday) and 6 (Saturday)")
			break
		}
	}
	if input.SnoozeMinutes <= 0 {
		vErr.add("snooze_minutes", "snooze minutes must be positive")
	}
	if len(input.Label) > maxLabelLength {
		vErr.add("label", fmt.Sprintf("label must be at most %d characters", maxLabelLength))
	}

	if !vErr.HasErrors() {
		spec := occurrence.Spec{Hour: input.Hour, Minute: input.Minute, RepeatDays: input.RepeatDays}
		if err := occurrence.Validate(spec); err != nil {
			vErr.add("alarm", err.Error())
		}
	}

	return vErr
}

func uniqueSortedDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, day := range days {
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Ints(out)
	return out
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("alarm", "alarm fields rejected by storage")
		return vErr
	}
	return err
}
