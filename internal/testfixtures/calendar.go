package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/room-scheduler/internal/itip"
)

var eventCounter uint64

// AttendeeFixture describes an ATTENDEE line on a generated event.
type AttendeeFixture struct {
	Email    string
	Name     string
	CUType   string
	PartStat string
}

// EventFixture is a deterministic VEVENT that can be rendered as an
// *ical.Calendar or as iCalendar bytes.
type EventFixture struct {
	UID           string
	Summary       string
	Location      string
	Organizer     string
	OrganizerName string
	Start         time.Time
	End           time.Time
	RRule         string
	Status        string
	Attendees     []AttendeeFixture
	OmitStart     bool
	OmitEnd       bool
	// WallStart and WallEnd, when set, replace Start and End with local
	// date-time values carrying TZID, or floating values when TZID is empty.
	WallStart string
	WallEnd   string
	TZID      string
	Timezones []*ical.Component
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour event starting at ReferenceTime.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	fixture := EventFixture{
		UID:       fmt.Sprintf("event-%03d@example.com", idx),
		Summary:   fmt.Sprintf("Meeting %03d", idx),
		Organizer: "organizer@example.com",
		Start:     referenceTime,
		End:       referenceTime.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventUID overrides the generated UID.
func WithEventUID(uid string) EventOption {
	return func(f *EventFixture) {
		f.UID = uid
	}
}

// WithEventSummary overrides the summary.
func WithEventSummary(summary string) EventOption {
	return func(f *EventFixture) {
		f.Summary = summary
	}
}

// WithEventTimes overrides the start and end instants.
func WithEventTimes(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventLocation sets LOCATION.
func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) {
		f.Location = location
	}
}

// WithEventOrganizer overrides the organizer address. An empty email omits ORGANIZER.
func WithEventOrganizer(email, name string) EventOption {
	return func(f *EventFixture) {
		f.Organizer = email
		f.OrganizerName = name
	}
}

// WithEventRRule sets the RRULE value.
func WithEventRRule(rule string) EventOption {
	return func(f *EventFixture) {
		f.RRule = rule
	}
}

// WithEventStatus sets STATUS.
func WithEventStatus(status string) EventOption {
	return func(f *EventFixture) {
		f.Status = status
	}
}

// WithAttendee appends an attendee.
func WithAttendee(email, name, cutype, partstat string) EventOption {
	return func(f *EventFixture) {
		f.Attendees = append(f.Attendees, AttendeeFixture{Email: email, Name: name, CUType: cutype, PartStat: partstat})
	}
}

// WithRoomAttendee appends a CUTYPE=ROOM attendee with the given partstat.
func WithRoomAttendee(email, name, partstat string) EventOption {
	return WithAttendee(email, name, itip.CUTypeRoom, partstat)
}

// WithoutEventTimes drops DTSTART and DTEND.
func WithoutEventTimes() EventOption {
	return func(f *EventFixture) {
		f.OmitStart = true
		f.OmitEnd = true
	}
}

// WithEventWallClock renders DTSTART and DTEND as local times such as
// "20261124T100000". An empty tzid produces floating times.
func WithEventWallClock(start, end, tzid string) EventOption {
	return func(f *EventFixture) {
		f.WallStart = start
		f.WallEnd = end
		f.TZID = tzid
	}
}

// WithEventTimezone embeds a VTIMEZONE definition in the calendar.
func WithEventTimezone(def *ical.Component) EventOption {
	return func(f *EventFixture) {
		f.Timezones = append(f.Timezones, def)
	}
}

// WesternEuropeTimezone is the VTIMEZONE Outlook sends for
// "W. Europe Standard Time".
func WesternEuropeTimezone() *ical.Component {
	def := ical.NewComponent(ical.CompTimezone)
	def.Props.SetText(ical.PropTimezoneID, "W. Europe Standard Time")
	def.Children = append(def.Children,
		observance(ical.CompTimezoneStandard, "16010101T030000", "+0200", "+0100", "FREQ=YEARLY;INTERVAL=1;BYDAY=-1SU;BYMONTH=10"),
		observance(ical.CompTimezoneDaylight, "16010101T020000", "+0100", "+0200", "FREQ=YEARLY;INTERVAL=1;BYDAY=-1SU;BYMONTH=3"),
	)
	return def
}

func observance(name, start, from, to, rule string) *ical.Component {
	comp := ical.NewComponent(name)
	for _, kv := range [][2]string{
		{ical.PropDateTimeStart, start},
		{ical.PropTimezoneOffsetFrom, from},
		{ical.PropTimezoneOffsetTo, to},
		{ical.PropRecurrenceRule, rule},
	} {
		prop := ical.NewProp(kv[0])
		prop.Value = kv[1]
		comp.Props.Set(prop)
	}
	return comp
}

func wallClockProp(name, value, tzid string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = value
	if tzid != "" {
		prop.Params.Set(ical.ParamTimezoneID, tzid)
	}
	return prop
}

// Calendar renders the fixture as a VCALENDAR with a single VEVENT.
func (f EventFixture) Calendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Test//Fixtures//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, f.UID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, referenceTime)
	switch {
	case f.OmitStart:
	case f.WallStart != "":
		event.Props.Set(wallClockProp(ical.PropDateTimeStart, f.WallStart, f.TZID))
	default:
		event.Props.SetDateTime(ical.PropDateTimeStart, f.Start.UTC())
	}
	switch {
	case f.OmitEnd:
	case f.WallEnd != "":
		event.Props.Set(wallClockProp(ical.PropDateTimeEnd, f.WallEnd, f.TZID))
	default:
		event.Props.SetDateTime(ical.PropDateTimeEnd, f.End.UTC())
	}
	if f.Summary != "" {
		event.Props.SetText(ical.PropSummary, f.Summary)
	}
	if f.Location != "" {
		event.Props.SetText(ical.PropLocation, f.Location)
	}
	if f.Status != "" {
		event.Props.SetText(ical.PropStatus, strings.ToUpper(f.Status))
	}
	if f.RRule != "" {
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = f.RRule
		event.Props.Set(rule)
	}
	if f.Organizer != "" {
		itip.SetOrganizer(event.Component, f.Organizer, f.OrganizerName)
	}
	for _, attendee := range f.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = itip.Mailto(attendee.Email)
		if attendee.Name != "" {
			prop.Params.Set(ical.ParamCommonName, attendee.Name)
		}
		if attendee.CUType != "" {
			prop.Params.Set(ical.ParamCalendarUserType, attendee.CUType)
		}
		if attendee.PartStat != "" {
			prop.Params.Set(ical.ParamParticipationStatus, attendee.PartStat)
		}
		event.Props.Add(prop)
	}

	cal.Children = append(cal.Children, f.Timezones...)
	cal.Children = append(cal.Children, event.Component)
	return cal
}

// Bytes renders the fixture as iCalendar text. It panics when the fixture
// cannot be encoded.
func (f EventFixture) Bytes() []byte {
	data, err := itip.Encode(f.Calendar())
	if err != nil {
		panic(fmt.Sprintf("testfixtures: encode event %s: %v", f.UID, err))
	}
	return data
}
