package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/availability"
	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/testfixtures"
)

func TestBookingService_ListBookings(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	manager := f.seedUser(testfixtures.WithUserID("mgr"))
	f.seedUser(testfixtures.WithUserID("viewer"))
	room := f.seedRoom(
		testfixtures.WithRoomPermission("manager", "user:"+manager.ID),
		testfixtures.WithRoomPermission("viewer", "user:viewer"),
	)

	days := []time.Weekday{time.Friday, time.Tuesday, time.Wednesday}
	uids := make(map[time.Weekday]string, len(days))
	for _, day := range days {
		start := testfixtures.NextWeekday(day, 9, 0)
		event := roomEvent(room, testfixtures.WithEventTimes(start, start.Add(time.Hour)))
		f.db.SeedObject(t, persistence.RoomCalendarID(room.ID), event.UID+".ics", event.UID, event.Bytes())
		uids[day] = event.UID
	}

	bookings, err := f.bookings.ListBookings(context.Background(), ListBookingsParams{
		Principal: Principal{UserID: manager.ID},
		RoomID:    room.ID,
	})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	want := []string{uids[time.Tuesday], uids[time.Wednesday], uids[time.Friday]}
	if len(bookings) != len(want) {
		t.Fatalf("expected %d bookings, got %d", len(want), len(bookings))
	}
	for i, booking := range bookings {
		if booking.UID != want[i] {
			t.Fatalf("booking %d: expected %s, got %s", i, want[i], booking.UID)
		}
	}

	from := testfixtures.NextWeekday(time.Wednesday, 0, 0)
	to := testfixtures.NextWeekday(time.Thursday, 0, 0)
	filtered, err := f.bookings.ListBookings(context.Background(), ListBookingsParams{
		Principal: Principal{UserID: manager.ID},
		RoomID:    room.ID,
		From:      &from,
		To:        &to,
	})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].UID != uids[time.Wednesday] {
		t.Fatalf("expected only the Wednesday booking, got %+v", filtered)
	}

	tests := []struct {
		name      string
		principal Principal
		roomID    string
		wantErr   error
	}{
		{name: "viewer", principal: Principal{UserID: "viewer"}, roomID: room.ID, wantErr: ErrUnauthorized},
		{name: "anonymous", principal: Principal{}, roomID: room.ID, wantErr: ErrUnauthorized},
		{name: "admin", principal: Principal{UserID: "root", IsAdmin: true}, roomID: room.ID},
		{name: "unknown room", principal: Principal{UserID: manager.ID}, roomID: "nowhere", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		_, err := f.bookings.ListBookings(context.Background(), ListBookingsParams{Principal: tt.principal, RoomID: tt.roomID})
		if tt.wantErr == nil && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestBookingService_RespondAccept(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	manager := f.seedUser(testfixtures.WithUserID("mgr"))
	room := f.seedRoom(testfixtures.WithRoomPermission("manager", "user:"+manager.ID))

	request := roomEvent(room)
	_, result := f.deliver(itip.MethodRequest, room, "mailto:mgr@example.com", request)
	if result.PartStat != itip.PartStatTentative {
		t.Fatalf("expected tentative booking, got %+v", result)
	}

	booking, err := f.bookings.Respond(context.Background(), RespondParams{
		Principal: Principal{UserID: manager.ID},
		RoomID:    room.ID,
		UID:       request.UID,
		Action:    "Accept",
	})
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if booking.PartStat != itip.PartStatAccepted || booking.Status != itip.EventConfirmed {
		t.Fatalf("expected accepted confirmed booking, got %+v", booking)
	}
	stored, _ := f.roomBooking(room, request.UID)
	if stored.PartStat != itip.PartStatAccepted {
		t.Fatalf("room copy not rewritten: %s", stored.PartStat)
	}
	if partstat, _ := f.engine.Ledger().Lookup(request.UID, room.Email); partstat != itip.PartStatAccepted {
		t.Fatalf("ledger not updated: %q", partstat)
	}
	if sent := f.notifier.last(); sent.kind != "accepted" || sent.uid != request.UID {
		t.Fatalf("expected acceptance notice, got %+v", sent)
	}
}

func TestBookingService_RespondDeclineFreesSlot(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	room := f.seedRoom()

	request := roomEvent(room)
	f.deliver(itip.MethodRequest, room, "mailto:organizer@example.com", request)

	booking, err := f.bookings.Respond(context.Background(), RespondParams{
		Principal: Principal{UserID: "root", IsAdmin: true},
		RoomID:    room.ID,
		UID:       request.UID,
		Action:    BookingDecline,
	})
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if booking.PartStat != itip.PartStatDeclined || !booking.Cancelled() {
		t.Fatalf("expected declined cancelled booking, got %+v", booking)
	}

	next := roomEvent(room)
	_, result := f.deliver(itip.MethodRequest, room, "mailto:organizer@example.com", next)
	if result.Code != itip.StatusDelivered {
		t.Fatalf("cancelled booking should not block the slot, got %+v", result)
	}
}

func TestBookingService_RespondErrors(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	f.seedUser(testfixtures.WithUserID("bob"))
	room := f.seedRoom(testfixtures.WithRoomPermission("booker", "user:bob"))
	admin := Principal{UserID: "root", IsAdmin: true}

	tests := []struct {
		name    string
		params  RespondParams
		wantErr error
	}{
		{name: "invalid action", params: RespondParams{Principal: admin, RoomID: room.ID, UID: "x", Action: "maybe"}, wantErr: ErrInvalidAction},
		{name: "unknown uid", params: RespondParams{Principal: admin, RoomID: room.ID, UID: "missing", Action: BookingAccept}, wantErr: ErrNotFound},
		{name: "booker cannot respond", params: RespondParams{Principal: Principal{UserID: "bob"}, RoomID: room.ID, UID: "x", Action: BookingAccept}, wantErr: ErrUnauthorized},
	}
	for _, tt := range tests {
		_, err := f.bookings.Respond(context.Background(), tt.params)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}

	_, err := f.bookings.Respond(context.Background(), RespondParams{Principal: admin, RoomID: room.ID, Action: BookingAccept})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty uid, got %v", err)
	}
}

func TestAvailabilityPublisher_Publish(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	room := f.seedRoom(testfixtures.WithRoomAvailability("08:00", "18:00", 1, 2, 3, 4, 5))
	publisher := NewAvailabilityPublisher(f.db.Objects, availability.NewEvaluator(time.UTC).Location, f.clock.NowFunc(), nil)

	stored, err := publisher.Publish(context.Background(), room)
	if err != nil || !stored {
		t.Fatalf("expected document stored, stored=%v err=%v", stored, err)
	}
	object, err := f.db.Objects.GetObject(context.Background(), persistence.RoomCalendarID(room.ID), availabilityObjectURI)
	if err != nil {
		t.Fatalf("availability document missing: %v", err)
	}
	if object.UID != availability.DocumentUID {
		t.Fatalf("unexpected uid %q", object.UID)
	}

	bookings, err := f.bookings.ListBookings(context.Background(), ListBookingsParams{
		Principal: Principal{IsAdmin: true},
		RoomID:    room.ID,
	})
	if err != nil || len(bookings) != 0 {
		t.Fatalf("availability document must not appear as a booking: %v %v", bookings, err)
	}

	room.Availability = availability.RuleSet{}
	stored, err = publisher.Publish(context.Background(), room)
	if err != nil || stored {
		t.Fatalf("expected document removed, stored=%v err=%v", stored, err)
	}
	if _, err := f.db.Objects.GetObject(context.Background(), persistence.RoomCalendarID(room.ID), availabilityObjectURI); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected document deleted, got %v", err)
	}
}
