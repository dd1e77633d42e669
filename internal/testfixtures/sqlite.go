package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite database in a test temp dir, exposed
// through the repository interfaces the services consume. It is closed by
// tb.Cleanup.
type SQLiteHarness struct {
	Storage *sqlite.Storage
	Users   persistence.UserRepository
	Groups  persistence.GroupRepository
	Rooms   persistence.RoomRepository
	Objects persistence.CalendarObjectRepository
}

func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	storage, err := sqlite.Open(filepath.Join(tb.TempDir(), "rooms.db"))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })
	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return &SQLiteHarness{Storage: storage, Users: storage, Groups: storage, Rooms: storage, Objects: storage}
}

// SeedUser stores user and fails the test on error.
func (h *SQLiteHarness) SeedUser(tb testing.TB, user persistence.User) {
	tb.Helper()
	if err := h.Users.UpsertUser(context.Background(), user); err != nil {
		tb.Fatalf("seed user %s: %v", user.ID, err)
	}
}

// SeedRoom stores the room and fails the test on error.
func (h *SQLiteHarness) SeedRoom(tb testing.TB, room persistence.Room) {
	tb.Helper()
	if err := h.Rooms.UpsertRoom(context.Background(), room); err != nil {
		tb.Fatalf("seed room %s: %v", room.ID, err)
	}
}

// SeedObject stores a calendar object and fails the test on error.
func (h *SQLiteHarness) SeedObject(tb testing.TB, calendarID, uri, uid string, data []byte) persistence.CalendarObject {
	tb.Helper()
	object, err := h.Objects.UpsertObject(context.Background(), persistence.CalendarObject{
		CalendarID: calendarID,
		URI:        uri,
		UID:        uid,
		Data:       data,
	})
	if err != nil {
		tb.Fatalf("seed object %s: %v", uid, err)
	}
	return object
}
