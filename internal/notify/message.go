package notify

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"gopkg.in/gomail.v2"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/itip"
)

const (
	attachmentName   = "invite.ics"
	startLayout      = "Monday, January 2, 2006 15:04"
	endLayout        = "15:04"
	unknownTime      = "Unknown"
	unnamedEvent     = "Unnamed event"
	subjectSeparator = " — "
)

type messageKind string

const (
	kindAccepted  messageKind = "accepted"
	kindDeclined  messageKind = "declined"
	kindConflict  messageKind = "conflict"
	kindApproval  messageKind = "approval"
	kindCancelled messageKind = "cancelled"
)

// eventView holds the strings rendered into subjects and bodies.
type eventView struct {
	Room           string
	Summary        string
	Start          string
	End            string
	OrganizerName  string
	OrganizerEmail string
}

func newEventView(room application.Room, event itip.EventInfo, loc *time.Location) eventView {
	if loc == nil {
		loc = time.UTC
	}
	view := eventView{
		Room:           room.Name,
		Summary:        strings.TrimSpace(event.Summary),
		Start:          unknownTime,
		End:            unknownTime,
		OrganizerName:  event.OrganizerName,
		OrganizerEmail: event.OrganizerEmail,
	}
	if view.Summary == "" {
		view.Summary = unnamedEvent
	}
	if view.OrganizerName == "" {
		view.OrganizerName = event.OrganizerEmail
	}
	if event.HasStart {
		view.Start = event.Start.In(loc).Format(startLayout)
	}
	if event.HasEnd {
		view.End = event.End.In(loc).Format(endLayout)
	}
	return view
}

func (k messageKind) subject(v eventView) string {
	var prefix string
	switch k {
	case kindAccepted:
		prefix = "Booking confirmed"
	case kindDeclined:
		prefix = "Booking declined"
	case kindConflict:
		prefix = "Booking conflict"
	case kindApproval:
		prefix = "Booking request"
	case kindCancelled:
		prefix = "Booking cancelled"
	}
	return prefix + ": " + v.Room + subjectSeparator + v.Summary
}

func (k messageKind) body(v eventView) string {
	var b strings.Builder
	switch k {
	case kindAccepted:
		b.WriteString("Your booking has been confirmed.\n\n")
	case kindDeclined:
		b.WriteString("Your booking request has been declined.\n\n")
	case kindConflict:
		b.WriteString("Your booking could not be processed due to a scheduling conflict.\n\n")
	case kindApproval:
		b.WriteString("A new booking request requires your approval.\n\n")
	case kindCancelled:
		b.WriteString("A booking has been cancelled.\n\n")
	}
	fmt.Fprintf(&b, "Room: %s\nEvent: %s\nDate: %s – %s\n", v.Room, v.Summary, v.Start, v.End)

	switch k {
	case kindAccepted:
		fmt.Fprintf(&b, "Organizer: %s\n\nThe room has been reserved for your event.", v.OrganizerName)
	case kindDeclined:
		b.WriteString("\nPlease contact the room manager for more information.")
	case kindConflict:
		b.WriteString("\nThe room is already booked for this time slot. Please choose a different time.")
	case kindApproval:
		fmt.Fprintf(&b, "Requested by: %s (%s)\n\nPlease accept or decline this request from the room bookings list.", v.OrganizerName, v.OrganizerEmail)
	case kindCancelled:
		fmt.Fprintf(&b, "Cancelled by: %s\n\nThe room is now available for this time slot.", v.OrganizerName)
	}
	return b.String()
}

// attachment renders the iTIP payload mailed to the organizer, or nil when
// the kind carries none.
func (k messageKind) attachment(room application.Room, event itip.EventInfo, now time.Time) (*icsAttachment, error) {
	var (
		method   itip.Method
		partstat itip.PartStat
	)
	switch k {
	case kindAccepted:
		method, partstat = itip.MethodReply, itip.PartStatAccepted
	case kindDeclined, kindConflict:
		method, partstat = itip.MethodReply, itip.PartStatDeclined
	case kindCancelled:
		method = itip.MethodCancel
	default:
		return nil, nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropMethod, string(method))

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	start, end := now.UTC(), now.UTC()
	if event.HasStart {
		start = event.Start.UTC()
	}
	if event.HasEnd {
		end = event.End.UTC()
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end)
	summary := event.Summary
	if strings.TrimSpace(summary) == "" {
		summary = unnamedEvent
	}
	vevent.Props.SetText(ical.PropSummary, summary)

	if method == itip.MethodCancel {
		itip.SetStatus(vevent.Component, itip.EventCancelled)
	} else {
		name := event.OrganizerName
		if name == "" {
			name = event.OrganizerEmail
		}
		itip.SetOrganizer(vevent.Component, event.OrganizerEmail, name)
		attendee := itip.AddRoomAttendee(vevent.Component, room.Email, room.Name)
		attendee.Params.Set(ical.ParamRole, "NON-PARTICIPANT")
		itip.SetPartStat(attendee, partstat)
	}

	cal.Children = append(cal.Children, vevent.Component)
	itip.Normalize(cal, now)
	data, err := itip.Encode(cal)
	if err != nil {
		return nil, err
	}
	return &icsAttachment{method: method, data: data}, nil
}

type icsAttachment struct {
	method itip.Method
	data   []byte
}

func attach(msg *gomail.Message, a *icsAttachment) {
	msg.Attach(attachmentName,
		gomail.SetHeader(map[string][]string{
			"Content-Type": {"text/calendar; charset=UTF-8; method=" + string(a.method)},
		}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(a.data)
			return err
		}),
	)
}
