package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/room-scheduler/internal/itip"
)

const (
	roomUserPrefix        = "rb_"
	userPrincipalPrefix   = "principals/users/"
	roomPrincipalPrefix   = "principals/calendar-rooms/"
	locationSeparator     = " — "
	objectPathRoot        = "calendars"
	roomCalendarOwner     = "rooms"
	calendarObjectSuffix  = ".ics"
	availabilityObjectURI = "room-availability" + calendarObjectSuffix
)

// RoomSource loads room configuration.
type RoomSource interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByEmail(ctx context.Context, email string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserSource loads directory users.
type UserSource interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// Directory resolves principal addresses against the room and user stores.
// It implements RoomDirectory, IdentityResolver and UserDirectory.
type Directory struct {
	rooms RoomSource
	users UserSource
}

// NewDirectory constructs a directory.
func NewDirectory(rooms RoomSource, users UserSource) *Directory {
	return &Directory{rooms: rooms, users: users}
}

// GetRoom implements RoomDirectory.
func (d *Directory) GetRoom(ctx context.Context, id string) (Room, error) {
	room, err := d.rooms.GetRoom(ctx, id)
	if err != nil {
		return Room{}, mapStoreError(err)
	}
	return room, nil
}

// ListRooms implements RoomDirectory.
func (d *Directory) ListRooms(ctx context.Context) ([]Room, error) {
	return d.rooms.ListRooms(ctx)
}

// ResolvePrincipal accepts principals/users/rb_<id>, principals/calendar-rooms/<id>
// and mailto:<room email>, with or without a leading slash.
func (d *Directory) ResolvePrincipal(ctx context.Context, address string) (string, bool, error) {
	address = strings.TrimSpace(address)
	path := strings.TrimSuffix(strings.TrimPrefix(address, "/"), "/")

	var roomID string
	switch {
	case strings.HasPrefix(path, userPrincipalPrefix):
		name := strings.TrimPrefix(path, userPrincipalPrefix)
		if !strings.HasPrefix(name, roomUserPrefix) {
			return "", false, nil
		}
		roomID = strings.TrimPrefix(name, roomUserPrefix)
	case strings.HasPrefix(path, roomPrincipalPrefix):
		roomID = strings.TrimPrefix(path, roomPrincipalPrefix)
	default:
		email := itip.StripMailto(address)
		if !strings.Contains(email, "@") {
			return "", false, nil
		}
		room, err := d.rooms.GetRoomByEmail(ctx, email)
		if err != nil {
			if isNotFoundError(err) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("resolve room %s: %w", email, err)
		}
		return room.ID, true, nil
	}

	if roomID == "" || strings.Contains(roomID, "/") {
		return "", false, nil
	}
	if _, err := d.rooms.GetRoom(ctx, roomID); err != nil {
		if isNotFoundError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve room %s: %w", roomID, err)
	}
	return roomID, true, nil
}

// ResolveSenderToUser implements IdentityResolver for principals/users/<id>
// and mailto: addresses.
func (d *Directory) ResolveSenderToUser(ctx context.Context, address string) (User, bool, error) {
	if d.users == nil {
		return User{}, false, nil
	}
	address = strings.TrimSpace(address)
	path := strings.TrimSuffix(strings.TrimPrefix(address, "/"), "/")

	var (
		user User
		err  error
	)
	if strings.HasPrefix(path, userPrincipalPrefix) {
		id := strings.TrimPrefix(path, userPrincipalPrefix)
		if id == "" || strings.HasPrefix(id, roomUserPrefix) {
			return User{}, false, nil
		}
		user, err = d.users.GetUser(ctx, id)
	} else {
		email := itip.StripMailto(address)
		if !strings.Contains(email, "@") {
			return User{}, false, nil
		}
		user, err = d.users.GetUserByEmail(ctx, email)
	}
	if err != nil {
		if isNotFoundError(err) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("resolve sender %s: %w", address, err)
	}
	return user, true, nil
}

// LookupUser implements UserDirectory.
func (d *Directory) LookupUser(ctx context.Context, id string) (User, bool, error) {
	if d.users == nil || id == "" {
		return User{}, false, nil
	}
	user, err := d.users.GetUser(ctx, id)
	if err != nil {
		if isNotFoundError(err) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return user, true, nil
}

// ParseObjectPath parses calendars/<owner>/<calendar>/<object>.ics. Room
// calendars and room principals are not writable through object paths.
func ParseObjectPath(raw string) (ObjectPath, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(raw), "/"), "/")
	if len(parts) != 4 || parts[0] != objectPathRoot {
		return ObjectPath{}, invalidField("path", "expected calendars/<owner>/<calendar>/<object>.ics")
	}
	p := ObjectPath{Owner: parts[1], Calendar: parts[2], Object: parts[3]}
	vErr := &ValidationError{}
	switch owner := strings.ToLower(p.Owner); {
	case owner == "":
		vErr.Add("owner", "owner is required")
	case owner == roomCalendarOwner || strings.HasPrefix(owner, roomUserPrefix):
		vErr.Add("owner", "room calendars are maintained by the scheduler")
	}
	if p.Calendar == "" {
		vErr.Add("calendar", "calendar is required")
	}
	if !strings.HasSuffix(p.Object, calendarObjectSuffix) || p.Object == calendarObjectSuffix {
		vErr.Add("object", "object must be an .ics name")
	}
	if err := vErr.Err(); err != nil {
		return ObjectPath{}, err
	}
	return p, nil
}
