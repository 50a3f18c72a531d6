package sqlite

import (
	"context"
	"fmt"

	"github.com/example/alarmd/internal/persistence"
)

// migrations are applied in order; PRAGMA user_version records progress so
// reopening an existing database only applies what is missing.
var migrations = []string{
	`CREATE TABLE alarms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hour INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
		minute INTEGER NOT NULL CHECK (minute BETWEEN 0 AND 59),
		repeat_days TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		sound TEXT NOT NULL DEFAULT 'default',
		vibration INTEGER NOT NULL DEFAULT 1,
		snooze_minutes INTEGER NOT NULL DEFAULT 5 CHECK (snooze_minutes > 0),
		label TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_alarms_enabled ON alarms(enabled)`,
}

// Store provides the SQLite-backed alarm repository and owns the change feed
// published on every mutation.
type Store struct {
	pool *ConnectionPool
	feed *persistence.ChangeFeed
}

// Open returns a Store backed by the database at the supplied DSN.
func Open(dsn string) (*Store, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, feed: persistence.NewChangeFeed()}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Changes exposes the feed of store mutations.
func (s *Store) Changes() *persistence.ChangeFeed {
	if s == nil {
		return nil
	}
	return s.feed
}

// Migrate brings the schema up to the current version.
func (s *Store) Migrate(ctx context.Context) error {
	var version int
	if err := s.pool.DB().QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary supports", version)
	}

	for i := version; i < len(migrations); i++ {
		stmt := migrations[i]
		if _, err := s.pool.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := s.pool.DB().ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", i+1, err)
		}
	}

	return nil
}
