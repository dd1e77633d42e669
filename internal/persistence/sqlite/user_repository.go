package sqlite

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/room-scheduler/internal/persistence"
)

type userRow struct {
	ID          string `db:"id"`
	Email       string `db:"email"`
	DisplayName string `db:"display_name"`
	IsAdmin     bool   `db:"is_admin"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r userRow) convert() (persistence.User, error) {
	user := persistence.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		IsAdmin:     r.IsAdmin,
	}
	var err error
	if user.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

const selectUsers = `SELECT id, email, display_name, is_admin, created_at, updated_at FROM users`

// UpsertUser creates the user or replaces its attributes.
func (s *Storage) UpsertUser(ctx context.Context, user persistence.User) error {
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	now := s.timestamp()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			is_admin = excluded.is_admin,
			updated_at = excluded.updated_at
	`, user.ID, user.Email, user.DisplayName, user.IsAdmin, formatTime(user.CreatedAt), formatTime(now))
	return mapDriverError(err)
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, selectUsers+` WHERE id = ?`, id); err != nil {
		return persistence.User{}, mapDriverError(err)
	}
	return row.convert()
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, selectUsers+` WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email))
	if err != nil {
		return persistence.User{}, mapDriverError(err)
	}
	return row.convert()
}

// ListUsers returns all users ordered by ID.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, selectUsers+` ORDER BY id`); err != nil {
		return nil, mapDriverError(err)
	}
	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.convert()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// DeleteUser removes a user and its group memberships.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE user_id = ?`, id); err != nil {
			return mapDriverError(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return mapDriverError(err)
		}
		return requireAffected(result)
	})
}
