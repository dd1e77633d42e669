package recurrence

import (
	"strconv"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/testfixtures"
)

func recurring(start time.Time, rule string) itip.EventInfo {
	return itip.EventInfo{
		Start:    start,
		End:      start.Add(time.Hour),
		HasStart: true,
		HasEnd:   true,
		RRule:    rule,
	}
}

func TestIsWithinHorizon(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	estimator := NewHorizonEstimator(clock.NowFunc())
	tomorrow := clock.Days(1)

	cases := []struct {
		name    string
		maxDays int
		event   itip.EventInfo
		want    bool
	}{
		{
			name:    "unlimited horizon",
			maxDays: 0,
			event:   recurring(clock.Days(400), ""),
			want:    true,
		},
		{
			name:    "negative limit is unlimited",
			maxDays: -3,
			event:   recurring(clock.Days(400), "FREQ=DAILY"),
			want:    true,
		},
		{
			name:    "single event inside horizon",
			maxDays: 30,
			event:   recurring(clock.Days(10), ""),
			want:    true,
		},
		{
			name:    "single event ending past horizon",
			maxDays: 30,
			event:   itip.EventInfo{Start: clock.Days(30).Add(-30 * time.Minute), End: clock.Days(30).Add(30 * time.Minute), HasStart: true, HasEnd: true},
			want:    false,
		},
		{
			name:    "single event without end uses start",
			maxDays: 30,
			event:   itip.EventInfo{Start: clock.Days(29), HasStart: true},
			want:    true,
		},
		{
			name:    "event exactly at horizon",
			maxDays: 30,
			event:   itip.EventInfo{Start: clock.Days(29), End: clock.Days(30), HasStart: true, HasEnd: true},
			want:    true,
		},
		{
			name:    "weekly count six starting tomorrow",
			maxDays: 30,
			event:   recurring(tomorrow, "FREQ=WEEKLY;COUNT=6"),
			want:    false,
		},
		{
			name:    "weekly count four starting tomorrow",
			maxDays: 30,
			event:   recurring(tomorrow, "FREQ=WEEKLY;COUNT=4"),
			want:    true,
		},
		{
			name:    "daily with interval",
			maxDays: 30,
			event:   recurring(tomorrow, "FREQ=DAILY;INTERVAL=10;COUNT=4"),
			want:    false,
		},
		{
			name:    "monthly count",
			maxDays: 90,
			event:   recurring(tomorrow, "FREQ=MONTHLY;COUNT=3"),
			want:    true,
		},
		{
			name:    "yearly count",
			maxDays: 90,
			event:   recurring(tomorrow, "FREQ=YEARLY;COUNT=2"),
			want:    false,
		},
		{
			name:    "hourly count",
			maxDays: 1,
			event:   recurring(clock.Now().Add(time.Hour), "FREQ=HOURLY;COUNT=20"),
			want:    true,
		},
		{
			name:    "until within horizon",
			maxDays: 30,
			event:   recurring(tomorrow, "FREQ=DAILY;UNTIL=20250320T000000Z"),
			want:    true,
		},
		{
			name:    "until past horizon",
			maxDays: 30,
			event:   recurring(tomorrow, "FREQ=DAILY;UNTIL=20250601T000000Z"),
			want:    false,
		},
		{
			name:    "open ended recurrence",
			maxDays: 365,
			event:   recurring(tomorrow, "FREQ=WEEKLY"),
			want:    false,
		},
		{
			name:    "unparsable until fails open",
			maxDays: 30,
			event:   recurring(tomorrow, "FREQ=DAILY;UNTIL=someday"),
			want:    true,
		},
		{
			name:    "unparsable rule fails open",
			maxDays: 30,
			event:   recurring(tomorrow, "garbage"),
			want:    true,
		},
		{
			name:    "missing start fails open",
			maxDays: 30,
			event:   itip.EventInfo{RRule: "FREQ=DAILY"},
			want:    true,
		},
		{
			name:    "rule with prefix",
			maxDays: 30,
			event:   recurring(tomorrow, "RRULE:FREQ=WEEKLY;COUNT=2"),
			want:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := estimator.IsWithinHorizon(tc.maxDays, tc.event); got != tc.want {
				t.Fatalf("IsWithinHorizon = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFurthestIsMonotoneInCount(t *testing.T) {
	start := testfixtures.ReferenceTime()
	for _, freq := range []string{"YEARLY", "MONTHLY", "WEEKLY", "DAILY", "HOURLY", "MINUTELY", "SECONDLY"} {
		t.Run(freq, func(t *testing.T) {
			var previous time.Time
			for count := 1; count <= 40; count++ {
				rule := "FREQ=" + freq + ";INTERVAL=2;COUNT=" + strconv.Itoa(count)
				furthest, bound := Furthest(recurring(start, rule))
				if bound != BoundFinite {
					t.Fatalf("expected finite bound for %s, got %s", rule, bound)
				}
				if furthest.Before(previous) {
					t.Fatalf("estimate decreased at COUNT=%d: %v < %v", count, furthest, previous)
				}
				previous = furthest
			}
		})
	}
}

func TestFurthestWeeklyCountEstimate(t *testing.T) {
	start := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)
	furthest, bound := Furthest(recurring(start, "FREQ=WEEKLY;COUNT=6"))
	if bound != BoundFinite {
		t.Fatalf("expected finite bound, got %s", bound)
	}
	if want := start.AddDate(0, 0, 35); !furthest.Equal(want) {
		t.Fatalf("expected %v, got %v", want, furthest)
	}
}
