package persistence

import "time"

// User is a directory entry for a person who can organize or manage bookings.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Group collects users and carries a permission set inherited by its rooms.
type Group struct {
	ID          string
	Name        string
	Members     []string
	Permissions PermissionSet
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionEntry references a user or a group.
type PermissionEntry struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PermissionSet is the stored form of a role assignment.
type PermissionSet struct {
	Viewers  []PermissionEntry `json:"viewers,omitempty"`
	Bookers  []PermissionEntry `json:"bookers,omitempty"`
	Managers []PermissionEntry `json:"managers,omitempty"`
}

// AvailabilityRule is a weekly window in room local time.
type AvailabilityRule struct {
	Days      []int  `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// SMTPSettings configures a room specific mail relay. The password is stored
// encrypted.
type SMTPSettings struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username,omitempty"`
	PasswordEncrypted string `json:"password,omitempty"`
	Encryption        string `json:"encryption,omitempty"`
}

// Room is a bookable resource exposed as a calendar principal.
type Room struct {
	ID                    string
	Email                 string
	Name                  string
	Location              string
	Capacity              int
	AutoAccept            bool
	AvailabilityEnabled   bool
	AvailabilityRules     []AvailabilityRule
	MaxBookingHorizonDays int
	GroupID               *string
	Active                bool
	Timezone              string
	SMTP                  *SMTPSettings
	Permissions           PermissionSet
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CalendarObject is a stored iCalendar object. UID is unique within a calendar
// and so is URI.
type CalendarObject struct {
	ID         string
	CalendarID string
	URI        string
	UID        string
	Data       []byte
	ETag       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomCalendarID returns the calendar that holds the authoritative copies of a
// room's bookings.
func RoomCalendarID(roomID string) string {
	return "rooms/" + roomID
}

// UserCalendarID returns the calendar identifier for an owner's named calendar.
func UserCalendarID(owner, calendar string) string {
	return owner + "/" + calendar
}
