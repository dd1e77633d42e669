package application

import (
	"strings"
	"time"

	"github.com/example/room-scheduler/internal/availability"
	"github.com/example/room-scheduler/internal/itip"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// SMTPSettings configures a room specific mail relay.
type SMTPSettings struct {
	Host              string
	Port              int
	Username          string
	PasswordEncrypted string
	Encryption        string
}

// Room is a bookable resource exposed as a scheduling principal.
type Room struct {
	ID                    string
	Email                 string
	Name                  string
	Location              string
	Capacity              int
	AutoAccept            bool
	Availability          availability.RuleSet
	MaxBookingHorizonDays int
	GroupID               string
	Active                bool
	Timezone              string
	SMTP                  *SMTPSettings
}

// PrincipalUserID is the service account id under which the room is exposed.
func (r Room) PrincipalUserID() string {
	return roomUserPrefix + r.ID
}

// CanonicalLocation is the LOCATION text written on events booked in the room.
func (r Room) CanonicalLocation() string {
	if strings.TrimSpace(r.Location) == "" {
		return r.Name
	}
	return r.Name + locationSeparator + r.Location
}

// User is a directory entry.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
}

// Result is the outcome of processing a scheduling message. Handled is false
// when the message was not addressed to an active room or carried a method the
// engine leaves to default delivery.
type Result struct {
	Handled  bool
	Code     itip.Status
	PartStat itip.PartStat
}

// ObjectPath addresses an organizer calendar object:
// calendars/<owner>/<calendar>/<object>.
type ObjectPath struct {
	Owner    string
	Calendar string
	Object   string
}

// CalendarID returns the store calendar identifier of the path.
func (p ObjectPath) CalendarID() string {
	return p.Owner + "/" + p.Calendar
}

// String renders the path in its calendars/... form.
func (p ObjectPath) String() string {
	return "calendars/" + p.Owner + "/" + p.Calendar + "/" + p.Object
}

// BookingAction is a manager response to a pending booking.
type BookingAction string

const (
	BookingAccept  BookingAction = "accept"
	BookingDecline BookingAction = "decline"
)

// ListBookingsParams wraps the data required to list a room's bookings.
type ListBookingsParams struct {
	Principal Principal
	RoomID    string
	From      *time.Time
	To        *time.Time
}

// RespondParams wraps the data required to accept or decline a booking.
type RespondParams struct {
	Principal Principal
	RoomID    string
	UID       string
	Action    BookingAction
}
