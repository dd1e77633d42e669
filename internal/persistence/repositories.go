package persistence

import "context"

// UserRepository stores directory users.
type UserRepository interface {
	UpsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// GroupRepository stores groups, their members and their permission sets.
type GroupRepository interface {
	UpsertGroup(ctx context.Context, group Group) error
	GetGroup(ctx context.Context, id string) (Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
	DeleteGroup(ctx context.Context, id string) error
}

// RoomRepository stores room configuration.
type RoomRepository interface {
	UpsertRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByEmail(ctx context.Context, email string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// CalendarObjectRepository stores iCalendar objects keyed by calendar and UID.
type CalendarObjectRepository interface {
	ListObjects(ctx context.Context, calendarID string) ([]CalendarObject, error)
	GetObject(ctx context.Context, calendarID, uri string) (CalendarObject, error)
	GetObjectByUID(ctx context.Context, calendarID, uid string) (CalendarObject, error)
	// UpsertObject creates the object or replaces the data of the object with
	// the same calendar and UID. The stored URI of an existing object is kept.
	UpsertObject(ctx context.Context, object CalendarObject) (CalendarObject, error)
	// DeleteObjectByUID reports whether an object was removed.
	DeleteObjectByUID(ctx context.Context, calendarID, uid string) (bool, error)
}
