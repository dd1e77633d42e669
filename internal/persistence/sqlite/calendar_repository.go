package sqlite

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/example/room-scheduler/internal/persistence"
)

type calendarObjectRow struct {
	ID         string `db:"id"`
	CalendarID string `db:"calendar_id"`
	URI        string `db:"uri"`
	UID        string `db:"uid"`
	Data       []byte `db:"data"`
	ETag       string `db:"etag"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func (r calendarObjectRow) convert() (persistence.CalendarObject, error) {
	object := persistence.CalendarObject{
		ID:         r.ID,
		CalendarID: r.CalendarID,
		URI:        r.URI,
		UID:        r.UID,
		Data:       r.Data,
		ETag:       r.ETag,
	}
	var err error
	if object.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return persistence.CalendarObject{}, err
	}
	if object.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return persistence.CalendarObject{}, err
	}
	return object, nil
}

const selectCalendarObjects = `
	SELECT id, calendar_id, uri, uid, data, etag, created_at, updated_at
	FROM calendar_objects`

// ListObjects returns every object of a calendar ordered by URI.
func (s *Storage) ListObjects(ctx context.Context, calendarID string) ([]persistence.CalendarObject, error) {
	var rows []calendarObjectRow
	if err := s.db.SelectContext(ctx, &rows,
		selectCalendarObjects+` WHERE calendar_id = ? ORDER BY uri`, calendarID); err != nil {
		return nil, mapDriverError(err)
	}
	objects := make([]persistence.CalendarObject, 0, len(rows))
	for _, row := range rows {
		object, err := row.convert()
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// GetObject retrieves an object by its URI within the calendar.
func (s *Storage) GetObject(ctx context.Context, calendarID, uri string) (persistence.CalendarObject, error) {
	var row calendarObjectRow
	if err := s.db.GetContext(ctx, &row,
		selectCalendarObjects+` WHERE calendar_id = ? AND uri = ?`, calendarID, uri); err != nil {
		return persistence.CalendarObject{}, mapDriverError(err)
	}
	return row.convert()
}

// GetObjectByUID retrieves an object by its iCalendar UID within the calendar.
func (s *Storage) GetObjectByUID(ctx context.Context, calendarID, uid string) (persistence.CalendarObject, error) {
	var row calendarObjectRow
	if err := s.db.GetContext(ctx, &row,
		selectCalendarObjects+` WHERE calendar_id = ? AND uid = ?`, calendarID, uid); err != nil {
		return persistence.CalendarObject{}, mapDriverError(err)
	}
	return row.convert()
}

// UpsertObject inserts the object or replaces the data of the object sharing
// its calendar and UID in a single statement. A fresh ETag is issued on every
// write.
func (s *Storage) UpsertObject(ctx context.Context, object persistence.CalendarObject) (persistence.CalendarObject, error) {
	if strings.TrimSpace(object.CalendarID) == "" || strings.TrimSpace(object.UID) == "" ||
		strings.TrimSpace(object.URI) == "" {
		return persistence.CalendarObject{}, persistence.ErrConstraintViolation
	}

	now := formatTime(s.timestamp())
	err := s.busy.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO calendar_objects (id, calendar_id, uri, uid, data, etag, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(calendar_id, uid) DO UPDATE SET
				data = excluded.data,
				etag = excluded.etag,
				updated_at = excluded.updated_at
		`, uuid.NewString(), object.CalendarID, object.URI, object.UID, object.Data, uuid.NewString(), now, now)
		return err
	})
	if err != nil {
		return persistence.CalendarObject{}, mapDriverError(err)
	}
	return s.GetObjectByUID(ctx, object.CalendarID, object.UID)
}

// DeleteObjectByUID removes the object with the UID from the calendar.
func (s *Storage) DeleteObjectByUID(ctx context.Context, calendarID, uid string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM calendar_objects WHERE calendar_id = ? AND uid = ?`, calendarID, uid)
	if err != nil {
		return false, mapDriverError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
