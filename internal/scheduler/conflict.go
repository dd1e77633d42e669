// Package scheduler detects double bookings in a room calendar.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/persistence"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Booking is an event instance stored in a room calendar.
type Booking struct {
	UID            string
	Summary        string
	Description    string
	Location       string
	OrganizerEmail string
	OrganizerName  string
	Start          time.Time
	End            time.Time
	PartStat       itip.PartStat
	Status         itip.EventStatus
	RRule          string
	URI            string
}

// Cancelled reports whether the booking no longer occupies its slot.
func (b Booking) Cancelled() bool {
	return b.Status == itip.EventCancelled
}

// ParseBooking decodes a stored room calendar object. The room partstat is read
// from the attendee resolved by itip.ResolveRoomAttendee.
func ParseBooking(data []byte, roomEmail string, loc *time.Location) (Booking, error) {
	cal, err := itip.Parse(data)
	if err != nil {
		return Booking{}, err
	}
	event := itip.FirstEvent(cal)
	if event == nil {
		return Booking{}, itip.ErrNoEvent
	}
	info := itip.CalendarEventInfo(cal, event, loc)
	if info.UID == "" {
		return Booking{}, itip.ErrNoUID
	}

	booking := Booking{
		UID:            info.UID,
		Summary:        info.Summary,
		Description:    info.Description,
		Location:       info.Location,
		OrganizerEmail: info.OrganizerEmail,
		OrganizerName:  info.OrganizerName,
		Start:          info.Start,
		End:            info.End,
		Status:         info.Status,
		RRule:          info.RRule,
	}
	if !info.HasEnd {
		booking.End = info.Start
	}

	attendee := itip.ResolveRoomAttendee(event, roomEmail)
	booking.PartStat = itip.AttendeePartStat(attendee)
	return booking, nil
}

// ObjectLister lists the raw objects stored in a calendar.
type ObjectLister interface {
	ListObjects(ctx context.Context, calendarID string) ([]persistence.CalendarObject, error)
}

// Detector scans a room calendar for bookings that overlap a candidate slot.
type Detector struct {
	objects ObjectLister
	logger  *slog.Logger
}

// NewDetector constructs a detector over the provided calendar store.
func NewDetector(objects ObjectLister, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{objects: objects, logger: logger}
}

// Bookings parses every event stored in the room calendar. Objects that cannot
// be decoded are skipped; objects without a VEVENT are ignored silently.
func (d *Detector) Bookings(ctx context.Context, roomID, roomEmail string, loc *time.Location) ([]Booking, error) {
	if d == nil || d.objects == nil {
		return nil, fmt.Errorf("scheduler: detector not configured")
	}
	objects, err := d.objects.ListObjects(ctx, persistence.RoomCalendarID(roomID))
	if err != nil {
		return nil, fmt.Errorf("scheduler: list room calendar %s: %w", roomID, err)
	}

	bookings := make([]Booking, 0, len(objects))
	for _, object := range objects {
		booking, err := ParseBooking(object.Data, roomEmail, loc)
		if err != nil {
			if errors.Is(err, itip.ErrNoEvent) {
				continue
			}
			d.logger.WarnContext(ctx, "skipping unparsable room calendar object",
				"room_id", roomID,
				"uri", object.URI,
				"error", err,
			)
			continue
		}
		booking.URI = object.URI
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

// HasConflict reports whether [start, end) overlaps any non-cancelled booking
// in the room calendar other than excludeUID. Floating times in stored
// bookings are read in loc, which must be the zone the candidate was read in.
func (d *Detector) HasConflict(ctx context.Context, roomID string, loc *time.Location, start, end time.Time, excludeUID string) (bool, error) {
	if loc == nil {
		loc = time.UTC
	}
	bookings, err := d.Bookings(ctx, roomID, "", loc)
	if err != nil {
		return false, err
	}
	for _, booking := range bookings {
		if booking.Cancelled() {
			continue
		}
		if excludeUID != "" && booking.UID == excludeUID {
			continue
		}
		if Overlaps(start, end, booking.Start, booking.End) {
			return true, nil
		}
	}
	return false, nil
}
