package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/room-scheduler/internal/persistence"
)

// RoomReader loads room configuration.
type RoomReader interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
}

// GroupReader loads groups and answers membership questions.
type GroupReader interface {
	GetGroup(ctx context.Context, id string) (persistence.Group, error)
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

// Store reads permission sets and group membership from persistence.
type Store struct {
	rooms  RoomReader
	groups GroupReader
}

// NewStore constructs a persistence backed SetSource and GroupDirectory.
func NewStore(rooms RoomReader, groups GroupReader) *Store {
	return &Store{rooms: rooms, groups: groups}
}

// EffectiveSet unions the room set with the set of the room's group. A group
// that no longer exists contributes nothing.
func (s *Store) EffectiveSet(ctx context.Context, roomID string) (Set, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Set{}, fmt.Errorf("load room: %w", err)
	}
	set := FromPersistence(room.Permissions)
	if room.GroupID == nil || *room.GroupID == "" {
		return set, nil
	}
	group, err := s.groups.GetGroup(ctx, *room.GroupID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return set, nil
		}
		return Set{}, fmt.Errorf("load group: %w", err)
	}
	return Union(set, FromPersistence(group.Permissions)), nil
}

// IsMember implements GroupDirectory.
func (s *Store) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	return s.groups.IsMember(ctx, userID, groupID)
}

// Members implements GroupDirectory.
func (s *Store) Members(ctx context.Context, groupID string) ([]string, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return group.Members, nil
}

// FromPersistence converts a stored permission set.
func FromPersistence(stored persistence.PermissionSet) Set {
	return Union(Set{
		Viewers:  entriesFrom(stored.Viewers),
		Bookers:  entriesFrom(stored.Bookers),
		Managers: entriesFrom(stored.Managers),
	})
}

// ToPersistence converts a set to its stored form.
func ToPersistence(set Set) persistence.PermissionSet {
	return persistence.PermissionSet{
		Viewers:  entriesTo(set.Viewers),
		Bookers:  entriesTo(set.Bookers),
		Managers: entriesTo(set.Managers),
	}
}

func entriesFrom(stored []persistence.PermissionEntry) []Entry {
	if len(stored) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(stored))
	for _, e := range stored {
		out = append(out, Entry{Type: EntryType(e.Type), ID: e.ID})
	}
	return out
}

func entriesTo(entries []Entry) []persistence.PermissionEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]persistence.PermissionEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, persistence.PermissionEntry{Type: string(e.Type), ID: e.ID})
	}
	return out
}
