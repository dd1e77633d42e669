// Package itip models the scheduling messages exchanged between calendar
// clients and room principals, together with the iCalendar helpers needed to
// read and rewrite their payloads.
//
// Parsing and serialization are delegated to github.com/emersion/go-ical; this
// package only adds the attendee, organizer and timing conventions used by the
// room scheduling engine.
package itip

import (
	"strings"

	"github.com/emersion/go-ical"
)

// Method is the iTIP method carried by a scheduling message.
type Method string

const (
	// MethodRequest creates or updates a booking.
	MethodRequest Method = "REQUEST"
	// MethodCancel removes a booking.
	MethodCancel Method = "CANCEL"
	// MethodReply carries an attendee response.
	MethodReply Method = "REPLY"
)

// ParseMethod normalizes a raw method token.
func ParseMethod(raw string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(raw)))
}

// Status is an iTIP REQUEST-STATUS code describing the delivery outcome.
type Status string

const (
	// StatusDelivered reports successful delivery to the room calendar.
	StatusDelivered Status = "1.2"
	// StatusRefused reports a policy refusal (permission, availability, horizon).
	StatusRefused Status = "3.7"
	// StatusConflict reports that the requested slot is already booked.
	StatusConflict Status = "3.0"
	// StatusError reports a storage failure while delivering.
	StatusError Status = "5.0"
)

// Description returns the human readable meaning of the status code.
func (s Status) Description() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRefused:
		return "delivery refused"
	case StatusConflict:
		return "delivery failed — conflict"
	case StatusError:
		return "delivery error"
	default:
		return ""
	}
}

// PartStat is an attendee participation status.
type PartStat string

const (
	PartStatNeedsAction PartStat = "NEEDS-ACTION"
	PartStatAccepted    PartStat = "ACCEPTED"
	PartStatTentative   PartStat = "TENTATIVE"
	PartStatDeclined    PartStat = "DECLINED"
)

// EventStatus is the STATUS property of a VEVENT.
type EventStatus string

const (
	EventConfirmed EventStatus = "CONFIRMED"
	EventTentative EventStatus = "TENTATIVE"
	EventCancelled EventStatus = "CANCELLED"
)

// Calendar user types used on attendee properties.
const (
	CUTypeRoom       = "ROOM"
	CUTypeIndividual = "INDIVIDUAL"
)

// Message is an incoming scheduling message addressed to a principal.
//
// ResultCode and ResultPartStat are written by the engine once the message has
// been processed.
type Message struct {
	Method    Method
	Sender    string
	Recipient string
	Calendar  *ical.Calendar

	ResultCode     Status
	ResultPartStat PartStat
}

// Event returns the first VEVENT of the payload, if any.
func (m *Message) Event() *ical.Component {
	if m == nil {
		return nil
	}
	return FirstEvent(m.Calendar)
}
