package itip

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// EventInfo is the flattened view of a VEVENT used by policy checks and
// notifications.
type EventInfo struct {
	UID            string
	Summary        string
	Description    string
	Location       string
	OrganizerEmail string
	OrganizerName  string
	Start          time.Time
	End            time.Time
	HasStart       bool
	HasEnd         bool
	RRule          string
	Status         EventStatus
}

// Info extracts the event fields. Floating times are interpreted in loc; a nil
// loc means UTC. TZIDs unknown to the IANA database are resolved through
// Windows names and otherwise read in loc. Unparsable DTSTART or DTEND values
// are reported as absent.
func Info(event *ical.Component, loc *time.Location) EventInfo {
	return Zones{}.Info(event, loc)
}

// CalendarEventInfo is Info with the VTIMEZONE definitions of cal available
// for resolving the TZIDs of event.
func CalendarEventInfo(cal *ical.Calendar, event *ical.Component, loc *time.Location) EventInfo {
	return CalendarZones(cal).Info(event, loc)
}

// Info extracts the event fields, resolving TZIDs through z.
func (z Zones) Info(event *ical.Component, loc *time.Location) EventInfo {
	if event == nil {
		return EventInfo{}
	}
	if loc == nil {
		loc = time.UTC
	}

	info := EventInfo{
		UID:         propValue(event, ical.PropUID),
		Summary:     propValue(event, ical.PropSummary),
		Description: propValue(event, ical.PropDescription),
		Location:    propValue(event, ical.PropLocation),
		Status:      EventStatus(strings.ToUpper(strings.TrimSpace(propValue(event, ical.PropStatus)))),
	}
	info.OrganizerEmail, info.OrganizerName = Organizer(event)
	if prop := event.Props.Get(ical.PropRecurrenceRule); prop != nil {
		info.RRule = strings.TrimSpace(prop.Value)
	}
	info.Start, info.HasStart, info.End, info.HasEnd = z.eventTimes(event, loc)
	return info
}

// IsCancelled reports whether the event carries STATUS:CANCELLED.
func (e EventInfo) IsCancelled() bool {
	return e.Status == EventCancelled
}

// HasInterval reports whether both ends of the event are known and ordered.
func (e EventInfo) HasInterval() bool {
	return e.HasStart && e.HasEnd && e.End.After(e.Start)
}

// SetLocation writes LOCATION on the event.
func SetLocation(event *ical.Component, location string) {
	event.Props.SetText(ical.PropLocation, location)
}

// SetStatus writes STATUS on the event.
func SetStatus(event *ical.Component, status EventStatus) {
	event.Props.SetText(ical.PropStatus, string(status))
}
