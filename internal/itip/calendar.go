package itip

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

// ProductID is written on calendars that reach storage without one.
const ProductID = "-//Room Scheduler//Reconciliation Engine//EN"

var (
	// ErrNoEvent is returned when a payload carries no VEVENT.
	ErrNoEvent = errors.New("itip: payload has no VEVENT")
	// ErrNoUID is returned when the VEVENT carries no UID.
	ErrNoUID = errors.New("itip: VEVENT has no UID")
)

// Parse decodes a single VCALENDAR object.
func Parse(data []byte) (*ical.Calendar, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a single VCALENDAR object from r.
func Decode(r io.Reader) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("itip: decode calendar: %w", err)
	}
	return cal, nil
}

// Encode serializes the calendar to its iCalendar text form.
func Encode(cal *ical.Calendar) ([]byte, error) {
	if cal == nil {
		return nil, errors.New("itip: nil calendar")
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("itip: encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// FirstEvent returns the first VEVENT child of the calendar.
func FirstEvent(cal *ical.Calendar) *ical.Component {
	if cal == nil || cal.Component == nil {
		return nil
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			return child
		}
	}
	return nil
}

// UID returns the UID of the first VEVENT.
func UID(cal *ical.Calendar) (string, error) {
	event := FirstEvent(cal)
	if event == nil {
		return "", ErrNoEvent
	}
	uid := propValue(event, ical.PropUID)
	if uid == "" {
		return "", ErrNoUID
	}
	return uid, nil
}

// Normalize fills in the properties required for the payload to serialize:
// PRODID and VERSION on the calendar, DTSTAMP on every event.
func Normalize(cal *ical.Calendar, now time.Time) {
	if cal == nil || cal.Component == nil {
		return
	}
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, ProductID)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if child.Props.Get(ical.PropDateTimeStamp) == nil {
			child.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		}
	}
}

// Clone returns a deep copy of the calendar so callers can rewrite it without
// touching the original.
func Clone(cal *ical.Calendar) *ical.Calendar {
	if cal == nil {
		return nil
	}
	return &ical.Calendar{Component: cloneComponent(cal.Component)}
}

func cloneComponent(comp *ical.Component) *ical.Component {
	if comp == nil {
		return nil
	}
	out := &ical.Component{
		Name:  comp.Name,
		Props: make(ical.Props, len(comp.Props)),
	}
	for name, props := range comp.Props {
		copied := make([]ical.Prop, len(props))
		for i, prop := range props {
			copied[i] = ical.Prop{
				Name:   prop.Name,
				Value:  prop.Value,
				Params: cloneParams(prop.Params),
			}
		}
		out.Props[name] = copied
	}
	if len(comp.Children) > 0 {
		out.Children = make([]*ical.Component, len(comp.Children))
		for i, child := range comp.Children {
			out.Children[i] = cloneComponent(child)
		}
	}
	return out
}

func cloneParams(params ical.Params) ical.Params {
	if params == nil {
		return nil
	}
	out := make(ical.Params, len(params))
	for name, values := range params {
		copied := make([]string, len(values))
		copy(copied, values)
		out[name] = copied
	}
	return out
}

func propValue(comp *ical.Component, name string) string {
	if comp == nil {
		return ""
	}
	text, err := comp.Props.Text(name)
	if err != nil {
		if prop := comp.Props.Get(name); prop != nil {
			return prop.Value
		}
		return ""
	}
	return text
}
