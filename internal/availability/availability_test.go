package availability

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/room-scheduler/internal/itip"
)

func mustRule(t *testing.T, days []int, start, end string) Rule {
	t.Helper()
	rule, err := NewRule(days, start, end)
	if err != nil {
		t.Fatalf("NewRule(%v, %q, %q) failed: %v", days, start, end, err)
	}
	return rule
}

func weekdays(t *testing.T, start, end string) RuleSet {
	t.Helper()
	return RuleSet{Enabled: true, Rules: []Rule{mustRule(t, []int{1, 2, 3, 4, 5}, start, end)}}
}

// 2025-03-03 is a Monday.
func day(d, hour, minute int) time.Time {
	return time.Date(2025, time.March, d, hour, minute, 0, 0, time.UTC)
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		input string
		want  TimeOfDay
		ok    bool
	}{
		{"00:00", 0, true},
		{"08:30", 8*60 + 30, true},
		{"9:05", 9*60 + 5, true},
		{"24:00", EndOfDay, true},
		{"24:01", 0, false},
		{"12:60", 0, false},
		{"1230", 0, false},
		{"ab:cd", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.input)
			if !tc.ok {
				if !errors.Is(err, ErrInvalidTime) {
					t.Fatalf("expected ErrInvalidTime, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseTimeOfDay = %d, want %d", got, tc.want)
			}
		})
	}

	if got := TimeOfDay(8*60 + 5).String(); got != "08:05" {
		t.Fatalf("String = %q", got)
	}
}

func TestNewRuleRejectsWeekdayOutOfRange(t *testing.T) {
	if _, err := NewRule([]int{7}, "08:00", "18:00"); err == nil {
		t.Fatal("expected error for weekday 7")
	}
}

func TestIsWithinAvailability(t *testing.T) {
	office := weekdays(t, "08:00", "18:00")
	allDay := RuleSet{Enabled: true, Rules: []Rule{mustRule(t, []int{0, 1, 2, 3, 4, 5, 6}, "00:00", "24:00")}}
	split := RuleSet{Enabled: true, Rules: []Rule{
		mustRule(t, []int{1, 3}, "08:00", "12:00"),
		mustRule(t, []int{2, 4}, "13:00", "17:00"),
	}}

	cases := []struct {
		name       string
		set        RuleSet
		start, end time.Time
		want       bool
	}{
		{"disabled rules accept everything", RuleSet{Rules: office.Rules}, day(8, 3, 0), day(8, 4, 0), true},
		{"enabled without rules accepts everything", RuleSet{Enabled: true}, day(8, 3, 0), day(8, 4, 0), true},
		{"tuesday morning", office, day(4, 9, 0), day(4, 10, 0), true},
		{"saturday", office, day(8, 9, 0), day(8, 10, 0), false},
		{"exactly the window", office, day(4, 8, 0), day(4, 18, 0), true},
		{"starts too early", office, day(4, 7, 59), day(4, 9, 0), false},
		{"ends too late", office, day(4, 17, 0), day(4, 18, 1), false},
		{"ends seconds past the window", office, day(4, 17, 0), day(4, 18, 0).Add(30 * time.Second), false},
		{"multi day ends seconds past the window", office, day(4, 9, 0), day(5, 18, 0).Add(time.Second), false},
		{"seconds inside the window", office, day(4, 8, 0).Add(30 * time.Second), day(4, 17, 59).Add(30 * time.Second), true},
		{"ends seconds before midnight", allDay, day(4, 20, 0), day(5, 0, 0).Add(-30 * time.Second), true},
		{"multi day weekdays", office, day(4, 9, 0), day(6, 17, 0), true},
		{"multi day first day too early", office, day(4, 7, 0), day(5, 10, 0), false},
		{"multi day last day too late", office, day(4, 9, 0), day(5, 19, 0), false},
		{"multi day through weekend", office, day(7, 9, 0), day(10, 10, 0), false},
		{"end at midnight belongs to previous day", allDay, day(4, 20, 0), day(5, 0, 0), true},
		{"midnight end outside office hours", office, day(4, 17, 0), day(5, 0, 0), false},
		{"full day until midnight", allDay, day(8, 0, 0), day(9, 0, 0), true},
		{"second rule matches", split, day(4, 14, 0), day(4, 15, 0), true},
		{"neither rule matches", split, day(4, 9, 0), day(4, 10, 0), false},
		{"inverted interval", office, day(4, 10, 0), day(4, 9, 0), false},
		{"empty day set never matches", RuleSet{Enabled: true, Rules: []Rule{{Start: 0, End: EndOfDay}}}, day(4, 9, 0), day(4, 10, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsWithinAvailability(tc.set, time.UTC, tc.start, tc.end); got != tc.want {
				t.Fatalf("IsWithinAvailability = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsWithinAvailabilityUsesRoomTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	office := weekdays(t, "08:00", "18:00")

	// Tuesday 00:00 UTC is Tuesday 09:00 in Tokyo.
	start := day(4, 0, 0)
	end := day(4, 1, 0)
	if !IsWithinAvailability(office, tokyo, start, end) {
		t.Fatal("expected booking to fit Tokyo office hours")
	}
	if IsWithinAvailability(office, time.UTC, start, end) {
		t.Fatal("expected booking outside UTC office hours")
	}

	evaluator := NewEvaluator(nil)
	if !evaluator.IsWithinAvailability(office, "Asia/Tokyo", start, end) {
		t.Fatal("evaluator should resolve the room timezone")
	}
	if evaluator.IsWithinAvailability(office, "Not/AZone", start, end) {
		t.Fatal("unknown timezone should fall back to UTC")
	}
}

func TestBuildVAvailability(t *testing.T) {
	now := day(3, 7, 0)
	set := RuleSet{Enabled: true, Rules: []Rule{
		mustRule(t, []int{5, 1, 3, 1}, "08:00", "12:00"),
		mustRule(t, nil, "08:00", "12:00"),
	}}
	cal := BuildVAvailability(Document{RoomName: "Sunroom", RoomEmail: "sunroom@rooms.example.com", Rules: set}, now)
	if cal == nil {
		t.Fatal("expected a document")
	}
	if len(cal.Children) != 1 || cal.Children[0].Name != componentAvailability {
		t.Fatalf("expected a single VAVAILABILITY, got %#v", cal.Children)
	}
	availability := cal.Children[0]
	if uid, _ := availability.Props.Text(ical.PropUID); uid != DocumentUID {
		t.Fatalf("unexpected uid %q", uid)
	}
	if len(availability.Children) != 1 {
		t.Fatalf("rules without days must be skipped, got %d components", len(availability.Children))
	}
	available := availability.Children[0]
	if got := available.Props.Get(ical.PropRecurrenceRule).Value; got != "FREQ=WEEKLY;BYDAY=MO,WE,FR" {
		t.Fatalf("unexpected RRULE %q", got)
	}
	start, err := available.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		t.Fatalf("DTSTART: %v", err)
	}
	if start.Weekday() != time.Monday || start.Hour() != 8 {
		t.Fatalf("DTSTART should fall on the first rule day at 08:00, got %v", start)
	}

	data, err := itip.Encode(cal)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(data), "BEGIN:VAVAILABILITY") {
		t.Fatalf("encoded document lacks VAVAILABILITY:\n%s", data)
	}
	if itip.FirstEvent(cal) != nil {
		t.Fatal("availability document must not contain a VEVENT")
	}
}

func TestBuildVAvailabilityUnrestricted(t *testing.T) {
	if cal := BuildVAvailability(Document{RoomName: "Open"}, day(3, 7, 0)); cal != nil {
		t.Fatal("expected no document for an unrestricted room")
	}
}
