package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/room-scheduler/internal/persistence"
)

var (
	userCounter  uint64
	roomCounter  uint64
	groupCounter uint64
)

// referenceTime is a Monday morning in UTC.
var referenceTime = time.Date(2025, time.March, 3, 7, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// NextWeekday returns the first instant at hour:minute UTC on the given weekday
// strictly after ReferenceTime's date.
func NextWeekday(day time.Weekday, hour, minute int) time.Time {
	base := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), hour, minute, 0, 0, time.UTC)
	for i := 1; i <= 7; i++ {
		candidate := base.AddDate(0, 0, i)
		if candidate.Weekday() == day {
			return candidate
		}
	}
	return base
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic directory user.
type UserFixture struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: fmt.Sprintf("User %03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID and derives the email from it.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
		f.Email = fmt.Sprintf("%s@example.com", id)
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserAdmin toggles the administrator flag.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// Persistence converts the fixture into a persistence model.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room configuration.
type RoomFixture struct {
	persistence.Room
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns an active, open, unrestricted room.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	fixture := RoomFixture{Room: persistence.Room{
		ID:       id,
		Email:    fmt.Sprintf("%s@rooms.example.com", id),
		Name:     fmt.Sprintf("Room %03d", idx),
		Capacity: 6,
		Active:   true,
		Timezone: "UTC",
	}}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the ID and derives the mailbox from it.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
		f.Email = fmt.Sprintf("%s@rooms.example.com", id)
	}
}

// WithRoomName overrides the display name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomLocation sets the physical location.
func WithRoomLocation(location string) RoomOption {
	return func(f *RoomFixture) {
		f.Location = location
	}
}

// WithRoomAutoAccept toggles auto acceptance.
func WithRoomAutoAccept(autoAccept bool) RoomOption {
	return func(f *RoomFixture) {
		f.AutoAccept = autoAccept
	}
}

// WithRoomInactive marks the room inactive.
func WithRoomInactive() RoomOption {
	return func(f *RoomFixture) {
		f.Active = false
	}
}

// WithRoomHorizon sets the maximum booking horizon in days.
func WithRoomHorizon(days int) RoomOption {
	return func(f *RoomFixture) {
		f.MaxBookingHorizonDays = days
	}
}

// WithRoomTimezone sets the room timezone.
func WithRoomTimezone(tz string) RoomOption {
	return func(f *RoomFixture) {
		f.Timezone = tz
	}
}

// WithRoomGroup assigns the room to a group.
func WithRoomGroup(groupID string) RoomOption {
	return func(f *RoomFixture) {
		f.GroupID = &groupID
	}
}

// WithRoomAvailability enables a single availability rule. Days use
// 0=Sunday..6=Saturday.
func WithRoomAvailability(start, end string, days ...int) RoomOption {
	return func(f *RoomFixture) {
		f.AvailabilityEnabled = true
		f.AvailabilityRules = append(f.AvailabilityRules, persistence.AvailabilityRule{
			Days:      append([]int(nil), days...),
			StartTime: start,
			EndTime:   end,
		})
	}
}

// WithRoomPermission adds an entry to one tier. The tier is one of viewer,
// booker or manager; ref is "user:<id>" or "group:<id>".
func WithRoomPermission(tier, ref string) RoomOption {
	return func(f *RoomFixture) {
		entry := parseEntry(ref)
		switch strings.ToLower(tier) {
		case "viewer":
			f.Permissions.Viewers = append(f.Permissions.Viewers, entry)
		case "booker":
			f.Permissions.Bookers = append(f.Permissions.Bookers, entry)
		case "manager":
			f.Permissions.Managers = append(f.Permissions.Managers, entry)
		}
	}
}

// Persistence returns the persistence model.
func (f RoomFixture) Persistence() persistence.Room {
	room := f.Room
	room.AvailabilityRules = append([]persistence.AvailabilityRule(nil), f.AvailabilityRules...)
	return room
}

// ----------------------------- Group fixtures -----------------------------

// NewGroupFixture returns a group containing the given members.
func NewGroupFixture(members ...string) persistence.Group {
	idx := atomic.AddUint64(&groupCounter, 1)
	return persistence.Group{
		ID:      fmt.Sprintf("group-%03d", idx),
		Name:    fmt.Sprintf("Group %03d", idx),
		Members: append([]string(nil), members...),
	}
}

func parseEntry(ref string) persistence.PermissionEntry {
	kind, id, ok := strings.Cut(ref, ":")
	if !ok {
		return persistence.PermissionEntry{Type: "user", ID: ref}
	}
	return persistence.PermissionEntry{Type: kind, ID: id}
}
