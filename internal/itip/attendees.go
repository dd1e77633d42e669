package itip

import (
	"strings"

	"github.com/emersion/go-ical"
)

// StripMailto removes a leading mailto: scheme and surrounding whitespace.
func StripMailto(address string) string {
	address = strings.TrimSpace(address)
	if len(address) >= 7 && strings.EqualFold(address[:7], "mailto:") {
		return strings.TrimSpace(address[7:])
	}
	return address
}

// Mailto returns the address as a mailto: URI.
func Mailto(email string) string {
	email = StripMailto(email)
	if email == "" {
		return ""
	}
	return "mailto:" + email
}

// SameAddress compares two calendar user addresses ignoring scheme and case.
func SameAddress(a, b string) bool {
	a, b = StripMailto(a), StripMailto(b)
	return a != "" && strings.EqualFold(a, b)
}

// Attendees returns pointers to the ATTENDEE properties of the event so that
// callers can rewrite their parameters in place.
func Attendees(event *ical.Component) []*ical.Prop {
	if event == nil {
		return nil
	}
	props := event.Props[ical.PropAttendee]
	out := make([]*ical.Prop, 0, len(props))
	for i := range props {
		out = append(out, &props[i])
	}
	return out
}

// FindAttendee returns the attendee whose address matches email.
func FindAttendee(event *ical.Component, email string) *ical.Prop {
	for _, attendee := range Attendees(event) {
		if SameAddress(attendee.Value, email) {
			return attendee
		}
	}
	return nil
}

// RoomAttendee returns the first attendee flagged CUTYPE=ROOM.
func RoomAttendee(event *ical.Component) *ical.Prop {
	for _, attendee := range Attendees(event) {
		if strings.EqualFold(attendee.Params.Get(ical.ParamCalendarUserType), CUTypeRoom) {
			return attendee
		}
	}
	return nil
}

// ResolveRoomAttendee finds the attendee that stands for the room: the one
// addressed to roomEmail, else the first CUTYPE=ROOM attendee, else the first
// attendee other than the organizer.
func ResolveRoomAttendee(event *ical.Component, roomEmail string) *ical.Prop {
	if roomEmail != "" {
		if attendee := FindAttendee(event, roomEmail); attendee != nil {
			return attendee
		}
	}
	if attendee := RoomAttendee(event); attendee != nil {
		return attendee
	}
	organizer, _ := Organizer(event)
	for _, candidate := range Attendees(event) {
		if !SameAddress(candidate.Value, organizer) {
			return candidate
		}
	}
	return nil
}

// AttendeePartStat reads the PARTSTAT parameter, defaulting to NEEDS-ACTION.
func AttendeePartStat(attendee *ical.Prop) PartStat {
	if attendee == nil {
		return ""
	}
	value := strings.ToUpper(strings.TrimSpace(attendee.Params.Get(ical.ParamParticipationStatus)))
	if value == "" {
		return PartStatNeedsAction
	}
	return PartStat(value)
}

// SetPartStat writes the PARTSTAT parameter. It reports whether the value changed.
func SetPartStat(attendee *ical.Prop, partstat PartStat) bool {
	if attendee == nil || partstat == "" {
		return false
	}
	if attendee.Params == nil {
		attendee.Params = make(ical.Params)
	}
	if attendee.Params.Get(ical.ParamParticipationStatus) == string(partstat) {
		return false
	}
	attendee.Params.Set(ical.ParamParticipationStatus, string(partstat))
	return true
}

// SetRoomType forces CUTYPE=ROOM on the attendee. It reports whether the value changed.
func SetRoomType(attendee *ical.Prop) bool {
	if attendee == nil {
		return false
	}
	if attendee.Params == nil {
		attendee.Params = make(ical.Params)
	}
	if attendee.Params.Get(ical.ParamCalendarUserType) == CUTypeRoom {
		return false
	}
	attendee.Params.Set(ical.ParamCalendarUserType, CUTypeRoom)
	return true
}

// AddRoomAttendee appends a REQ-PARTICIPANT room attendee awaiting a response.
func AddRoomAttendee(event *ical.Component, email, name string) *ical.Prop {
	prop := ical.NewProp(ical.PropAttendee)
	prop.Value = Mailto(email)
	if name != "" {
		prop.Params.Set(ical.ParamCommonName, name)
	}
	prop.Params.Set(ical.ParamCalendarUserType, CUTypeRoom)
	prop.Params.Set(ical.ParamRole, "REQ-PARTICIPANT")
	prop.Params.Set(ical.ParamParticipationStatus, string(PartStatNeedsAction))
	event.Props.Add(prop)
	return FindAttendee(event, email)
}

// Organizer returns the ORGANIZER address without its scheme and its common name.
func Organizer(event *ical.Component) (email, name string) {
	if event == nil {
		return "", ""
	}
	prop := event.Props.Get(ical.PropOrganizer)
	if prop == nil {
		return "", ""
	}
	return StripMailto(prop.Value), prop.Params.Get(ical.ParamCommonName)
}

// SetOrganizer replaces the ORGANIZER property.
func SetOrganizer(event *ical.Component, email, name string) {
	prop := ical.NewProp(ical.PropOrganizer)
	prop.Value = Mailto(email)
	if name != "" {
		prop.Params.Set(ical.ParamCommonName, name)
	}
	event.Props.Set(prop)
}
