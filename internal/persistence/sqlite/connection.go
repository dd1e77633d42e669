package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/room-scheduler/internal/persistence"
)

// withTransaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (s *Storage) withTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	committed = true
	return nil
}

// requireAffected turns an UPDATE or DELETE that touched nothing into ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

var constraintSentinels = []struct {
	marker   string
	sentinel error
}{
	{"UNIQUE constraint failed", persistence.ErrConflict},
	{"FOREIGN KEY constraint failed", persistence.ErrConstraintViolation},
	{"CHECK constraint failed", persistence.ErrConstraintViolation},
	{"NOT NULL constraint failed", persistence.ErrConstraintViolation},
}

// mapDriverError wraps driver failures in the persistence sentinels while
// keeping the driver message for logs.
func mapDriverError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	msg := err.Error()
	for _, c := range constraintSentinels {
		if strings.Contains(msg, c.marker) {
			return fmt.Errorf("%w: %v", c.sentinel, err)
		}
	}
	return err
}

// busyPolicy retries writes that lose the race for SQLite's write lock after
// busy_timeout already expired. The delay doubles up to max.
type busyPolicy struct {
	attempts int
	delay    time.Duration
	max      time.Duration
}

var defaultBusyPolicy = busyPolicy{attempts: 4, delay: 50 * time.Millisecond, max: time.Second}

func (p busyPolicy) do(ctx context.Context, fn func() error) error {
	delay := p.delay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		if attempt >= p.attempts {
			return fmt.Errorf("sqlite: database still busy after %d attempts: %w", attempt, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > p.max {
			delay = p.max
		}
	}
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
