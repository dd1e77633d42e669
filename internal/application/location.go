package application

import (
	"context"
	"strings"
)

// RoomLister enumerates configured rooms.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]Room, error)
}

// LocationMatcher maps free-text LOCATION values to rooms for clients that
// name the room without inviting it.
type LocationMatcher struct {
	rooms RoomLister
}

// NewLocationMatcher constructs a matcher over the listed rooms.
func NewLocationMatcher(rooms RoomLister) *LocationMatcher {
	return &LocationMatcher{rooms: rooms}
}

// Match compares the trimmed location case-insensitively with each active
// room's name, email, email local part and CanonicalLocation.
func (m *LocationMatcher) Match(ctx context.Context, location string) (Room, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(location))
	if needle == "" || m == nil || m.rooms == nil {
		return Room{}, false, nil
	}
	rooms, err := m.rooms.ListRooms(ctx)
	if err != nil {
		return Room{}, false, err
	}
	for _, room := range rooms {
		if room.Active && matchesRoom(needle, room) {
			return room, true, nil
		}
	}
	return Room{}, false, nil
}

func matchesRoom(needle string, room Room) bool {
	email := strings.ToLower(room.Email)
	local, _, _ := strings.Cut(email, "@")
	candidates := []string{strings.ToLower(room.Name), email, local}
	if strings.TrimSpace(room.Location) != "" {
		candidates = append(candidates, strings.ToLower(room.CanonicalLocation()))
	}
	for _, candidate := range candidates {
		if candidate != "" && candidate == needle {
			return true
		}
	}
	return false
}
