package availability

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/room-scheduler/internal/itip"
)

// DocumentUID is the uid under which the room's availability document is
// stored in its calendar.
const DocumentUID = "room-availability"

const (
	componentAvailability = "VAVAILABILITY"
	componentAvailable    = "AVAILABLE"
)

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// anchorWeek starts on a Sunday; AVAILABLE components start on the first rule
// day within it.
var anchorWeek = time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

// Document describes the room whose opening hours are rendered.
type Document struct {
	RoomName  string
	RoomEmail string
	Location  *time.Location
	Rules     RuleSet
}

// BuildVAvailability renders the room's opening hours as an RFC 7953
// VAVAILABILITY calendar with one weekly AVAILABLE component per rule. It
// returns nil when the rule set does not restrict bookings.
func BuildVAvailability(doc Document, now time.Time) *ical.Calendar {
	if !doc.Rules.Restricted() {
		return nil
	}
	loc := doc.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := ical.NewCalendar()
	availability := ical.NewComponent(componentAvailability)
	availability.Props.SetText(ical.PropUID, DocumentUID)
	availability.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	if doc.RoomName != "" {
		availability.Props.SetText(ical.PropSummary, doc.RoomName+" opening hours")
	}
	if doc.RoomEmail != "" {
		organizer := ical.NewProp(ical.PropOrganizer)
		organizer.Value = itip.Mailto(doc.RoomEmail)
		if doc.RoomName != "" {
			organizer.Params.Set(ical.ParamCommonName, doc.RoomName)
		}
		availability.Props.Set(organizer)
	}

	for i, rule := range doc.Rules.Rules {
		days := rule.SortedDays()
		if len(days) == 0 || rule.End <= rule.Start {
			continue
		}
		first := anchorWeek.AddDate(0, 0, int(days[0]))
		start := at(first, rule.Start, loc)
		end := at(first, rule.End, loc)

		codes := make([]string, 0, len(days))
		for _, day := range days {
			codes = append(codes, weekdayCodes[day])
		}

		available := ical.NewComponent(componentAvailable)
		available.Props.SetText(ical.PropUID, DocumentUID+"-"+strconv.Itoa(i))
		available.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		available.Props.SetText(ical.PropSummary, "Available")
		available.Props.SetDateTime(ical.PropDateTimeStart, start)
		available.Props.SetDateTime(ical.PropDateTimeEnd, end)
		rrule := ical.NewProp(ical.PropRecurrenceRule)
		rrule.SetValueType(ical.ValueRecurrence)
		rrule.Value = "FREQ=WEEKLY;BYDAY=" + strings.Join(codes, ",")
		available.Props.Set(rrule)
		availability.Children = append(availability.Children, available)
	}

	itip.Normalize(cal, now)
	cal.Children = append(cal.Children, availability)
	return cal
}

func at(day time.Time, clock TimeOfDay, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).Add(time.Duration(clock) * time.Minute)
}
