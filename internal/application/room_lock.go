package application

import "sync"

// RoomLocks serializes conflict checks and writes per room.
type RoomLocks struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewRoomLocks constructs an empty lock table.
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{rooms: make(map[string]*roomLock)}
}

// Lock blocks until the room is free and returns the matching unlock. Entries
// are dropped once no goroutine holds or waits for them.
func (l *RoomLocks) Lock(roomID string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.rooms[roomID]
	if !ok {
		lock = &roomLock{}
		l.rooms[roomID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.rooms, roomID)
		}
		l.mu.Unlock()
	}
}

func (l *RoomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
