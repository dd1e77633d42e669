package application

import (
	"context"
	"time"

	"github.com/example/room-scheduler/internal/availability"
	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/permission"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/scheduler"
)

// RoomDirectory resolves room principals and loads room configuration.
type RoomDirectory interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	// ResolvePrincipal maps a calendar user address to a room id. ok is false
	// when the address does not belong to a room.
	ResolvePrincipal(ctx context.Context, address string) (roomID string, ok bool, err error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// IdentityResolver maps a scheduling sender to a directory user.
type IdentityResolver interface {
	ResolveSenderToUser(ctx context.Context, address string) (user User, ok bool, err error)
}

// UserDirectory loads directory users by id.
type UserDirectory interface {
	LookupUser(ctx context.Context, id string) (user User, ok bool, err error)
}

// Authorizer answers permission questions for rooms. *permission.Resolver
// satisfies it.
type Authorizer interface {
	EffectiveRole(ctx context.Context, subject permission.Subject, roomID string) (permission.Role, error)
	IsOpen(ctx context.Context, roomID string) (bool, error)
	ManagerUserIDs(ctx context.Context, roomID string) ([]string, error)
}

// AvailabilityChecker matches intervals against room opening hours.
// *availability.Evaluator satisfies it.
type AvailabilityChecker interface {
	IsWithinAvailability(set availability.RuleSet, timezone string, start, end time.Time) bool
	Location(timezone string) *time.Location
}

// HorizonChecker compares events against a booking horizon.
// *recurrence.HorizonEstimator satisfies it.
type HorizonChecker interface {
	IsWithinHorizon(maxDays int, event itip.EventInfo) bool
}

// BookingScanner enumerates room bookings and detects overlaps.
// *scheduler.Detector satisfies it.
type BookingScanner interface {
	Bookings(ctx context.Context, roomID, roomEmail string, loc *time.Location) ([]scheduler.Booking, error)
	HasConflict(ctx context.Context, roomID string, loc *time.Location, start, end time.Time, excludeUID string) (bool, error)
}

// CalendarStore persists iCalendar objects keyed by calendar and UID.
type CalendarStore interface {
	GetObject(ctx context.Context, calendarID, uri string) (persistence.CalendarObject, error)
	GetObjectByUID(ctx context.Context, calendarID, uid string) (persistence.CalendarObject, error)
	UpsertObject(ctx context.Context, object persistence.CalendarObject) (persistence.CalendarObject, error)
	DeleteObjectByUID(ctx context.Context, calendarID, uid string) (bool, error)
}

// Notifier delivers booking notifications. Failures are logged by callers and
// never change a decision.
type Notifier interface {
	SendAccepted(ctx context.Context, room Room, event itip.EventInfo) error
	SendDeclined(ctx context.Context, room Room, event itip.EventInfo) error
	SendConflict(ctx context.Context, room Room, event itip.EventInfo) error
	SendCancelled(ctx context.Context, room Room, event itip.EventInfo, managers []User) error
	NotifyManagers(ctx context.Context, room Room, event itip.EventInfo, managers []User) error
}
