package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/room-scheduler/internal/persistence"
)

type roomRow struct {
	ID                    string         `db:"id"`
	Email                 string         `db:"email"`
	Name                  string         `db:"name"`
	Location              string         `db:"location"`
	Capacity              int            `db:"capacity"`
	AutoAccept            bool           `db:"auto_accept"`
	AvailabilityEnabled   bool           `db:"availability_enabled"`
	AvailabilityRules     string         `db:"availability_rules"`
	MaxBookingHorizonDays int            `db:"max_booking_horizon_days"`
	GroupID               sql.NullString `db:"group_id"`
	Active                bool           `db:"active"`
	Timezone              string         `db:"timezone"`
	SMTP                  sql.NullString `db:"smtp"`
	Permissions           string         `db:"permissions"`
	CreatedAt             string         `db:"created_at"`
	UpdatedAt             string         `db:"updated_at"`
}

func (r roomRow) convert() (persistence.Room, error) {
	room := persistence.Room{
		ID:                    r.ID,
		Email:                 r.Email,
		Name:                  r.Name,
		Location:              r.Location,
		Capacity:              r.Capacity,
		AutoAccept:            r.AutoAccept,
		AvailabilityEnabled:   r.AvailabilityEnabled,
		MaxBookingHorizonDays: r.MaxBookingHorizonDays,
		Active:                r.Active,
		Timezone:              r.Timezone,
	}
	if r.GroupID.Valid && r.GroupID.String != "" {
		groupID := r.GroupID.String
		room.GroupID = &groupID
	}
	if err := decodeJSON(r.AvailabilityRules, &room.AvailabilityRules); err != nil {
		return persistence.Room{}, fmt.Errorf("sqlite: room %s availability: %w", r.ID, err)
	}
	if err := decodeJSON(r.Permissions, &room.Permissions); err != nil {
		return persistence.Room{}, fmt.Errorf("sqlite: room %s permissions: %w", r.ID, err)
	}
	if r.SMTP.Valid && r.SMTP.String != "" {
		var settings persistence.SMTPSettings
		if err := decodeJSON(r.SMTP.String, &settings); err != nil {
			return persistence.Room{}, fmt.Errorf("sqlite: room %s smtp: %w", r.ID, err)
		}
		room.SMTP = &settings
	}
	var err error
	if room.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

const selectRooms = `
	SELECT id, email, name, location, capacity, auto_accept, availability_enabled,
		availability_rules, max_booking_horizon_days, group_id, active, timezone,
		smtp, permissions, created_at, updated_at
	FROM rooms`

// UpsertRoom creates the room or replaces its configuration.
func (s *Storage) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if strings.TrimSpace(room.ID) == "" || strings.TrimSpace(room.Email) == "" || room.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}

	rules := room.AvailabilityRules
	if rules == nil {
		rules = []persistence.AvailabilityRule{}
	}
	rulesJSON, err := encodeJSON(rules)
	if err != nil {
		return err
	}
	permissionsJSON, err := encodeJSON(room.Permissions)
	if err != nil {
		return err
	}
	var smtp sql.NullString
	if room.SMTP != nil {
		encoded, err := encodeJSON(room.SMTP)
		if err != nil {
			return err
		}
		smtp = sql.NullString{String: encoded, Valid: true}
	}
	var groupID sql.NullString
	if room.GroupID != nil && *room.GroupID != "" {
		groupID = sql.NullString{String: *room.GroupID, Valid: true}
	}

	now := s.timestamp()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, email, name, location, capacity, auto_accept, availability_enabled,
			availability_rules, max_booking_horizon_days, group_id, active, timezone, smtp,
			permissions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			location = excluded.location,
			capacity = excluded.capacity,
			auto_accept = excluded.auto_accept,
			availability_enabled = excluded.availability_enabled,
			availability_rules = excluded.availability_rules,
			max_booking_horizon_days = excluded.max_booking_horizon_days,
			group_id = excluded.group_id,
			active = excluded.active,
			timezone = excluded.timezone,
			smtp = excluded.smtp,
			permissions = excluded.permissions,
			updated_at = excluded.updated_at
	`,
		room.ID, room.Email, room.Name, room.Location, room.Capacity, room.AutoAccept,
		room.AvailabilityEnabled, rulesJSON, room.MaxBookingHorizonDays, groupID, room.Active,
		room.Timezone, smtp, permissionsJSON, formatTime(room.CreatedAt), formatTime(now),
	)
	return mapDriverError(err)
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var row roomRow
	if err := s.db.GetContext(ctx, &row, selectRooms+` WHERE id = ?`, id); err != nil {
		return persistence.Room{}, mapDriverError(err)
	}
	return row.convert()
}

// GetRoomByEmail retrieves a room by its mailbox, ignoring case.
func (s *Storage) GetRoomByEmail(ctx context.Context, email string) (persistence.Room, error) {
	var row roomRow
	err := s.db.GetContext(ctx, &row, selectRooms+` WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email))
	if err != nil {
		return persistence.Room{}, mapDriverError(err)
	}
	return row.convert()
}

// ListRooms returns all rooms ordered by name then ID.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	var rows []roomRow
	if err := s.db.SelectContext(ctx, &rows, selectRooms+` ORDER BY name ASC, id ASC`); err != nil {
		return nil, mapDriverError(err)
	}
	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.convert()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Its calendar objects are kept.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return mapDriverError(err)
	}
	return requireAffected(result)
}
