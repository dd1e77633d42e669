// Package sqlite implements the persistence repositories on SQLite through
// sqlx and the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/example/room-scheduler/internal/persistence"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

var (
	_ persistence.UserRepository           = (*Storage)(nil)
	_ persistence.GroupRepository          = (*Storage)(nil)
	_ persistence.RoomRepository           = (*Storage)(nil)
	_ persistence.CalendarObjectRepository = (*Storage)(nil)
)

// Storage implements every persistence repository on a single SQLite database.
type Storage struct {
	db   *sqlx.DB
	busy busyPolicy
	now  func() time.Time
}

// Open connects to the database at dsn. A file path or a "file:" URI is
// accepted; ":memory:" opens a private in-memory database.
func Open(dsn string) (*Storage, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: dsn is required")
	}
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// SQLite serializes writers; a single connection keeps transactions and
	// pragmas on the same handle.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return &Storage{
		db:   db,
		busy: defaultBusyPolicy,
		now:  time.Now,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the schema. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for i, statement := range migrations {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return fmt.Errorf("sqlite: migration %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func (s *Storage) timestamp() time.Time {
	return s.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}
