package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/alarmd/internal/persistence"
)

var mapper = NewErrorMapper()

// CreateAlarm inserts a new alarm and returns it with the assigned id.
func (s *Store) CreateAlarm(ctx context.Context, alarm persistence.Alarm) (persistence.Alarm, error) {
	now := time.Now().UTC()
	alarm.CreatedAt = now
	alarm.UpdatedAt = now

	query := `
		INSERT INTO alarms (hour, minute, repeat_days, enabled, sound, vibration, snooze_minutes, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.pool.DB().ExecContext(ctx, query,
		alarm.Hour,
		alarm.Minute,
		encodeRepeatDays(alarm.RepeatDays),
		boolToInt(alarm.Enabled),
		alarm.Sound,
		boolToInt(alarm.Vibration),
		alarm.SnoozeMinutes,
		alarm.Label,
		alarm.CreatedAt.Format(time.RFC3339),
		alarm.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.Alarm{}, mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Alarm{}, fmt.Errorf("failed to read inserted id: %w", err)
	}
	alarm.ID = id

	s.feed.Publish(persistence.Change{Kind: persistence.ChangeCreated, AlarmID: id, Alarm: &alarm, At: now})
	return alarm, nil
}

// UpdateAlarm rewrites an existing alarm record.
func (s *Store) UpdateAlarm(ctx context.Context, alarm persistence.Alarm) error {
	now := time.Now().UTC()
	alarm.UpdatedAt = now

	query := `
		UPDATE alarms
		SET hour = ?, minute = ?, repeat_days = ?, enabled = ?, sound = ?, vibration = ?, snooze_minutes = ?, label = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.pool.DB().ExecContext(ctx, query,
		alarm.Hour,
		alarm.Minute,
		encodeRepeatDays(alarm.RepeatDays),
		boolToInt(alarm.Enabled),
		alarm.Sound,
		boolToInt(alarm.Vibration),
		alarm.SnoozeMinutes,
		alarm.Label,
		alarm.UpdatedAt.Format(time.RFC3339),
		alarm.ID,
	)
	if err != nil {
		return mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	s.feed.Publish(persistence.Change{Kind: persistence.ChangeUpdated, AlarmID: alarm.ID, Alarm: &alarm, At: now})
	return nil
}

// GetAlarm retrieves an alarm by id.
func (s *Store) GetAlarm(ctx context.Context, id int64) (persistence.Alarm, error) {
	row := s.pool.DB().QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	alarm, err := scanAlarm(row)
	if err != nil {
		return persistence.Alarm{}, mapper.MapError(err)
	}
	return alarm, nil
}

// ListAlarms returns every alarm ordered by time of day then id.
func (s *Store) ListAlarms(ctx context.Context) ([]persistence.Alarm, error) {
	return s.listWhere(ctx, "")
}

// ListEnabledAlarms returns alarms eligible for arming.
func (s *Store) ListEnabledAlarms(ctx context.Context) ([]persistence.Alarm, error) {
	return s.listWhere(ctx, " WHERE enabled = 1")
}

// DeleteAlarm removes an alarm by id.
func (s *Store) DeleteAlarm(ctx context.Context, id int64) error {
	result, err := s.pool.DB().ExecContext(ctx, "DELETE FROM alarms WHERE id = ?", id)
	if err != nil {
		return mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	s.feed.Publish(persistence.Change{Kind: persistence.ChangeDeleted, AlarmID: id, At: time.Now().UTC()})
	return nil
}

// SetEnabled flips the enabled flag for an alarm. The update and the re-read
// share one transaction so the published change carries exactly the row that
// was flipped.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	now := time.Now().UTC()

	var alarm persistence.Alarm
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE alarms SET enabled = ?, updated_at = ? WHERE id = ?",
			boolToInt(enabled), now.Format(time.RFC3339), id,
		)
		if err != nil {
			return mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		alarm, err = scanAlarm(tx.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
		if err != nil {
			return mapper.MapError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.feed.Publish(persistence.Change{Kind: persistence.ChangeUpdated, AlarmID: id, Alarm: &alarm, At: now})
	return nil
}

const selectColumns = `
	SELECT id, hour, minute, repeat_days, enabled, sound, vibration, snooze_minutes, label, created_at, updated_at
	FROM alarms`

func (s *Store) listWhere(ctx context.Context, where string) ([]persistence.Alarm, error) {
	rows, err := s.pool.DB().QueryContext(ctx, selectColumns+where+" ORDER BY hour, minute, id")
	if err != nil {
		return nil, mapper.MapError(err)
	}
	defer rows.Close()

	var alarms []persistence.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}

	return alarms, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row rowScanner) (persistence.Alarm, error) {
	var (
		alarm      persistence.Alarm
		repeatDays string
		enabled    int
		vibration  int
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(
		&alarm.ID,
		&alarm.Hour,
		&alarm.Minute,
		&repeatDays,
		&enabled,
		&alarm.Sound,
		&vibration,
		&alarm.SnoozeMinutes,
		&alarm.Label,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Alarm{}, err
		}
		return persistence.Alarm{}, fmt.Errorf("failed to scan alarm: %w", err)
	}

	alarm.RepeatDays, err = decodeRepeatDays(repeatDays)
	if err != nil {
		return persistence.Alarm{}, err
	}
	alarm.Enabled = enabled != 0
	alarm.Vibration = vibration != 0

	if alarm.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Alarm{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if alarm.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Alarm{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return alarm, nil
}

// encodeRepeatDays joins weekday indices into the stored comma-separated form.
func encodeRepeatDays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	sorted := make([]int, len(days))
	copy(sorted, days)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, day := range sorted {
		parts[i] = strconv.Itoa(day)
	}
	return strings.Join(parts, ",")
}

func decodeRepeatDays(value string) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid repeat day %q: %w", part, err)
		}
		days = append(days, day)
	}
	return days, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
