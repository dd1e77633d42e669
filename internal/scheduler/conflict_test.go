package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/testfixtures"
)

type stubLister struct {
	objects map[string][]persistence.CalendarObject
	err     error
}

func (s *stubLister) ListObjects(_ context.Context, calendarID string) ([]persistence.CalendarObject, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.objects[calendarID], nil
}

func roomObjects(roomID string, fixtures ...testfixtures.EventFixture) *stubLister {
	objects := make([]persistence.CalendarObject, 0, len(fixtures))
	for _, f := range fixtures {
		objects = append(objects, persistence.CalendarObject{
			CalendarID: persistence.RoomCalendarID(roomID),
			URI:        f.UID + ".ics",
			UID:        f.UID,
			Data:       f.Bytes(),
		})
	}
	return &stubLister{objects: map[string][]persistence.CalendarObject{persistence.RoomCalendarID(roomID): objects}}
}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name         string
		aStart, aEnd time.Time
		bStart, bEnd time.Time
		want         bool
	}{
		{"partial overlap", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"containment", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"touching end to start", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"touching start to end", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %s", tc.name)
			}
		})
	}
}

func TestDetectorHasConflict(t *testing.T) {
	ctx := context.Background()
	existing := testfixtures.NewEventFixture(
		testfixtures.WithEventUID("existing"),
		testfixtures.WithEventTimes(at(10, 0), at(11, 0)),
		testfixtures.WithRoomAttendee("sunroom@rooms.example.com", "Sunroom", string(itip.PartStatAccepted)),
	)
	cancelled := testfixtures.NewEventFixture(
		testfixtures.WithEventUID("cancelled"),
		testfixtures.WithEventTimes(at(14, 0), at(15, 0)),
		testfixtures.WithEventStatus(string(itip.EventCancelled)),
	)
	tentative := testfixtures.NewEventFixture(
		testfixtures.WithEventUID("tentative"),
		testfixtures.WithEventTimes(at(16, 0), at(17, 0)),
		testfixtures.WithEventStatus(string(itip.EventTentative)),
	)
	detector := NewDetector(roomObjects("sunroom", existing, cancelled, tentative), nil)

	cases := []struct {
		name       string
		start, end time.Time
		exclude    string
		want       bool
	}{
		{"overlapping request", at(10, 30), at(11, 30), "", true},
		{"touching request", at(11, 0), at(12, 0), "", false},
		{"own booking excluded", at(10, 30), at(11, 30), "existing", false},
		{"cancelled bookings are free", at(14, 0), at(15, 0), "", false},
		{"tentative bookings occupy the slot", at(16, 30), at(17, 30), "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := detector.HasConflict(ctx, "sunroom", time.UTC, tc.start, tc.end, tc.exclude)
			if err != nil {
				t.Fatalf("HasConflict failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("HasConflict = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectorConflictIsSymmetric(t *testing.T) {
	ctx := context.Background()
	a := testfixtures.NewEventFixture(testfixtures.WithEventUID("a"), testfixtures.WithEventTimes(at(9, 0), at(10, 30)))
	b := testfixtures.NewEventFixture(testfixtures.WithEventUID("b"), testfixtures.WithEventTimes(at(10, 0), at(11, 0)))

	withA := NewDetector(roomObjects("r", a), nil)
	withB := NewDetector(roomObjects("r", b), nil)

	ab, err := withA.HasConflict(ctx, "r", time.UTC, b.Start, b.End, "")
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	ba, err := withB.HasConflict(ctx, "r", time.UTC, a.Start, a.End, "")
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if !ab || !ba {
		t.Fatalf("expected symmetric conflict, got %v and %v", ab, ba)
	}

	self, err := withA.HasConflict(ctx, "r", time.UTC, a.Start, a.End, a.UID)
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if self {
		t.Fatalf("a booking must not conflict with itself when excluded")
	}
}

func TestDetectorSkipsUnparsableObjects(t *testing.T) {
	ctx := context.Background()
	lister := roomObjects("r", testfixtures.NewEventFixture(
		testfixtures.WithEventUID("good"),
		testfixtures.WithEventTimes(at(13, 0), at(14, 0)),
	))
	calendarID := persistence.RoomCalendarID("r")
	lister.objects[calendarID] = append(lister.objects[calendarID],
		persistence.CalendarObject{URI: "broken.ics", UID: "broken", Data: []byte("not a calendar")},
		persistence.CalendarObject{URI: "availability.ics", UID: "room-availability", Data: []byte(
			"BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\nEND:VCALENDAR\r\n")},
	)

	detector := NewDetector(lister, nil)
	bookings, err := detector.Bookings(ctx, "r", "", time.UTC)
	if err != nil {
		t.Fatalf("Bookings failed: %v", err)
	}
	if len(bookings) != 1 || bookings[0].UID != "good" {
		t.Fatalf("expected only the parsable booking, got %#v", bookings)
	}

	conflict, err := detector.HasConflict(ctx, "r", time.UTC, at(13, 30), at(14, 30), "")
	if err != nil || !conflict {
		t.Fatalf("expected conflict with parsable booking, got %v (%v)", conflict, err)
	}
}

func TestDetectorReadsFloatingBookingsInRoomZone(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	detector := NewDetector(roomObjects("r", testfixtures.NewEventFixture(
		testfixtures.WithEventUID("floating"),
		testfixtures.WithEventWallClock("20250304T100000", "20250304T110000", ""),
	)), nil)

	cases := []struct {
		name string
		loc  *time.Location
		want bool
	}{
		{name: "room zone", loc: berlin, want: true},
		{name: "utc", loc: time.UTC, want: false},
		{name: "nil means utc", loc: nil, want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := detector.HasConflict(context.Background(), "r", tc.loc, at(9, 0), at(10, 0), "")
			if err != nil {
				t.Fatalf("HasConflict failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("HasConflict = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectorPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	detector := NewDetector(&stubLister{err: boom}, nil)
	if _, err := detector.HasConflict(context.Background(), "r", time.UTC, at(9, 0), at(10, 0), ""); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestParseBookingRoomPartStat(t *testing.T) {
	cases := []struct {
		name    string
		fixture testfixtures.EventFixture
		want    itip.PartStat
	}{
		{
			name: "room attendee",
			fixture: testfixtures.NewEventFixture(
				testfixtures.WithAttendee("person@example.com", "", itip.CUTypeIndividual, "ACCEPTED"),
				testfixtures.WithRoomAttendee("sunroom@rooms.example.com", "Sunroom", "TENTATIVE"),
			),
			want: itip.PartStatTentative,
		},
		{
			name: "attendee addressed to room",
			fixture: testfixtures.NewEventFixture(
				testfixtures.WithAttendee("person@example.com", "", itip.CUTypeIndividual, "ACCEPTED"),
				testfixtures.WithAttendee("sunroom@rooms.example.com", "", itip.CUTypeIndividual, "DECLINED"),
			),
			want: itip.PartStatDeclined,
		},
		{
			name: "first non organizer attendee",
			fixture: testfixtures.NewEventFixture(
				testfixtures.WithAttendee("organizer@example.com", "", "", "ACCEPTED"),
				testfixtures.WithAttendee("other@example.com", "", "", ""),
			),
			want: itip.PartStatNeedsAction,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			booking, err := ParseBooking(tc.fixture.Bytes(), "sunroom@rooms.example.com", time.UTC)
			if err != nil {
				t.Fatalf("ParseBooking failed: %v", err)
			}
			if booking.PartStat != tc.want {
				t.Fatalf("PartStat = %q, want %q", booking.PartStat, tc.want)
			}
		})
	}
}
