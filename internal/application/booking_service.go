package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/permission"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/scheduler"
)

// BookingService lets room managers review and answer bookings.
type BookingService struct {
	rooms      RoomDirectory
	authorizer Authorizer
	bookings   BookingScanner
	calendars  CalendarStore
	notifier   Notifier
	ledger     *DecisionLedger
	locks      *RoomLocks
	location   func(Room) *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// NewBookingService constructs a booking service over the engine's
// collaborators, ledger and room locks.
func NewBookingService(engine *Engine, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(engine, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(engine *Engine, now func() time.Time, logger *slog.Logger) *BookingService {
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		rooms:      engine.rooms,
		authorizer: engine.authorizer,
		bookings:   engine.bookings,
		calendars:  engine.calendars,
		notifier:   engine.notifier,
		ledger:     engine.ledger,
		locks:      engine.locks,
		location:   engine.location,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// ListBookings returns the room's bookings ordered by start. From and To,
// when set, drop bookings that end before From or start after To.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []scheduler.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	room, err := s.authorize(ctx, params.Principal, params.RoomID)
	if err != nil {
		return nil, err
	}

	all, err := s.bookings.Bookings(ctx, room.ID, room.Email, s.location(room))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	bookings = make([]scheduler.Booking, 0, len(all))
	for _, booking := range all {
		if params.From != nil && booking.End.Before(*params.From) {
			continue
		}
		if params.To != nil && booking.Start.After(*params.To) {
			continue
		}
		bookings = append(bookings, booking)
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].UID < bookings[j].UID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
	return bookings, nil
}

// Respond accepts or declines a booking on behalf of the room. Accepting
// confirms the event, declining cancels it. The organizer is notified.
func (s *BookingService) Respond(ctx context.Context, params RespondParams) (booking scheduler.Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Respond",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
		"uid", params.UID,
		"action", string(params.Action),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to respond to booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking answered", "partstat", string(booking.PartStat))
	}()

	partstat, status, err := parseAction(params.Action)
	if err != nil {
		return scheduler.Booking{}, err
	}
	if strings.TrimSpace(params.UID) == "" {
		return scheduler.Booking{}, invalidField("uid", "uid is required")
	}

	room, err := s.authorize(ctx, params.Principal, params.RoomID)
	if err != nil {
		return scheduler.Booking{}, err
	}

	unlock := s.locks.Lock(room.ID)
	booking, err = s.rewriteLocked(ctx, room, params.UID, partstat, status)
	unlock()
	if err != nil {
		return scheduler.Booking{}, err
	}
	s.ledger.Record(booking.UID, room.Email, partstat)

	if s.notifier != nil {
		info := bookingInfo(booking)
		var sendErr error
		if partstat == itip.PartStatAccepted {
			sendErr = s.notifier.SendAccepted(ctx, room, info)
		} else {
			sendErr = s.notifier.SendDeclined(ctx, room, info)
		}
		if sendErr != nil {
			logger.WarnContext(ctx, "notification failed", "error", sendErr)
		}
	}
	return booking, nil
}

func (s *BookingService) rewriteLocked(ctx context.Context, room Room, uid string, partstat itip.PartStat, status itip.EventStatus) (scheduler.Booking, error) {
	calendarID := persistence.RoomCalendarID(room.ID)
	object, err := s.calendars.GetObjectByUID(ctx, calendarID, uid)
	if err != nil {
		return scheduler.Booking{}, mapStoreError(err)
	}
	cal, err := itip.Parse(object.Data)
	if err != nil {
		return scheduler.Booking{}, fmt.Errorf("parse booking %s: %w", uid, err)
	}
	event := itip.FirstEvent(cal)
	if event == nil {
		return scheduler.Booking{}, ErrNotFound
	}

	if attendee := itip.ResolveRoomAttendee(event, room.Email); attendee != nil {
		itip.SetPartStat(attendee, partstat)
	}
	itip.SetStatus(event, status)
	itip.Normalize(cal, s.now())

	data, err := itip.Encode(cal)
	if err != nil {
		return scheduler.Booking{}, err
	}
	object.Data = data
	if _, err := s.calendars.UpsertObject(ctx, object); err != nil {
		return scheduler.Booking{}, fmt.Errorf("store booking %s: %w", uid, mapStoreError(err))
	}

	booking, err := scheduler.ParseBooking(data, room.Email, s.location(room))
	if err != nil {
		return scheduler.Booking{}, err
	}
	booking.URI = object.URI
	return booking, nil
}

func (s *BookingService) authorize(ctx context.Context, principal Principal, roomID string) (Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapStoreError(err)
	}
	if principal.IsAdmin {
		return room, nil
	}
	if principal.UserID == "" || s.authorizer == nil {
		return Room{}, ErrUnauthorized
	}
	role, err := s.authorizer.EffectiveRole(ctx, permission.Subject{UserID: principal.UserID}, room.ID)
	if err != nil {
		return Room{}, err
	}
	if role < permission.RoleManager {
		return Room{}, ErrUnauthorized
	}
	return room, nil
}

func parseAction(action BookingAction) (itip.PartStat, itip.EventStatus, error) {
	switch BookingAction(strings.ToLower(strings.TrimSpace(string(action)))) {
	case BookingAccept:
		return itip.PartStatAccepted, itip.EventConfirmed, nil
	case BookingDecline:
		return itip.PartStatDeclined, itip.EventCancelled, nil
	default:
		return "", "", ErrInvalidAction
	}
}

func bookingInfo(b scheduler.Booking) itip.EventInfo {
	return itip.EventInfo{
		UID:            b.UID,
		Summary:        b.Summary,
		Description:    b.Description,
		Location:       b.Location,
		OrganizerEmail: b.OrganizerEmail,
		OrganizerName:  b.OrganizerName,
		Start:          b.Start,
		End:            b.End,
		HasStart:       !b.Start.IsZero(),
		HasEnd:         !b.End.IsZero(),
		RRule:          b.RRule,
		Status:         b.Status,
	}
}
