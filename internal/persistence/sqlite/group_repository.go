package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/example/room-scheduler/internal/persistence"
)

type groupRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Permissions string `db:"permissions"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r groupRow) convert(members []string) (persistence.Group, error) {
	group := persistence.Group{ID: r.ID, Name: r.Name, Members: members}
	if err := decodeJSON(r.Permissions, &group.Permissions); err != nil {
		return persistence.Group{}, fmt.Errorf("sqlite: group %s permissions: %w", r.ID, err)
	}
	var err error
	if group.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return persistence.Group{}, err
	}
	if group.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return persistence.Group{}, err
	}
	return group, nil
}

// UpsertGroup creates or replaces a group together with its member list.
func (s *Storage) UpsertGroup(ctx context.Context, group persistence.Group) error {
	if strings.TrimSpace(group.ID) == "" {
		return persistence.ErrConstraintViolation
	}
	permissions, err := encodeJSON(group.Permissions)
	if err != nil {
		return err
	}
	now := s.timestamp()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}

	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO groups (id, name, permissions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				permissions = excluded.permissions,
				updated_at = excluded.updated_at
		`, group.ID, group.Name, permissions, formatTime(group.CreatedAt), formatTime(now))
		if err != nil {
			return mapDriverError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, group.ID); err != nil {
			return mapDriverError(err)
		}
		for _, member := range dedupe(group.Members) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, group.ID, member); err != nil {
				return mapDriverError(err)
			}
		}
		return nil
	})
}

// GetGroup retrieves a group and its members.
func (s *Storage) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	var row groupRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, permissions, created_at, updated_at FROM groups WHERE id = ?`, id)
	if err != nil {
		return persistence.Group{}, mapDriverError(err)
	}
	members, err := s.groupMembers(ctx, id)
	if err != nil {
		return persistence.Group{}, err
	}
	return row.convert(members)
}

// ListGroups returns all groups ordered by ID.
func (s *Storage) ListGroups(ctx context.Context) ([]persistence.Group, error) {
	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, permissions, created_at, updated_at FROM groups ORDER BY id`); err != nil {
		return nil, mapDriverError(err)
	}
	groups := make([]persistence.Group, 0, len(rows))
	for _, row := range rows {
		members, err := s.groupMembers(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		group, err := row.convert(members)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// IsMember reports whether the user belongs to the group.
func (s *Storage) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return false, mapDriverError(err)
	}
	return count > 0, nil
}

// DeleteGroup removes a group. Rooms referencing it lose their group.
func (s *Storage) DeleteGroup(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return mapDriverError(err)
	}
	return requireAffected(result)
}

func (s *Storage) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	var members []string
	if err := s.db.SelectContext(ctx, &members,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID); err != nil {
		return nil, mapDriverError(err)
	}
	return members, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode json: %w", err)
	}
	return string(data), nil
}

func decodeJSON(raw string, dest any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}
