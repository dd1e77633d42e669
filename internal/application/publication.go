package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-scheduler/internal/availability"
	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/persistence"
)

// AvailabilityPublisher stores each room's opening hours as a VAVAILABILITY
// document in the room calendar so clients can display them.
type AvailabilityPublisher struct {
	calendars CalendarStore
	locations func(timezone string) *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewAvailabilityPublisher constructs a publisher. A nil locations function
// resolves every room to UTC.
func NewAvailabilityPublisher(calendars CalendarStore, locations func(string) *time.Location, now func() time.Time, logger *slog.Logger) *AvailabilityPublisher {
	if now == nil {
		now = time.Now
	}
	if locations == nil {
		locations = func(string) *time.Location { return time.UTC }
	}
	return &AvailabilityPublisher{
		calendars: calendars,
		locations: locations,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// Publish writes the room's document, or removes it when the room accepts
// bookings at any time. It reports whether a document is now stored.
func (p *AvailabilityPublisher) Publish(ctx context.Context, room Room) (bool, error) {
	logger := serviceLogger(ctx, p.logger, "AvailabilityPublisher", "Publish", "room_id", room.ID)
	calendarID := persistence.RoomCalendarID(room.ID)

	cal := availability.BuildVAvailability(availability.Document{
		RoomName:  room.Name,
		RoomEmail: room.Email,
		Location:  p.locations(room.Timezone),
		Rules:     room.Availability,
	}, p.now())
	if cal == nil {
		removed, err := p.calendars.DeleteObjectByUID(ctx, calendarID, availability.DocumentUID)
		if err != nil {
			return false, fmt.Errorf("remove availability of room %s: %w", room.ID, err)
		}
		if removed {
			logger.InfoContext(ctx, "availability document removed")
		}
		return false, nil
	}

	data, err := itip.Encode(cal)
	if err != nil {
		return false, fmt.Errorf("encode availability of room %s: %w", room.ID, err)
	}
	_, err = p.calendars.UpsertObject(ctx, persistence.CalendarObject{
		CalendarID: calendarID,
		URI:        availabilityObjectURI,
		UID:        availability.DocumentUID,
		Data:       data,
	})
	if err != nil {
		return false, fmt.Errorf("store availability of room %s: %w", room.ID, mapStoreError(err))
	}
	logger.InfoContext(ctx, "availability document published", "rules", len(room.Availability.Rules))
	return true, nil
}
