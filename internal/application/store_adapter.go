package application

import (
	"context"
	"fmt"

	"github.com/example/room-scheduler/internal/availability"
	"github.com/example/room-scheduler/internal/persistence"
)

// StoreRooms adapts a persistence.RoomRepository to RoomSource.
type StoreRooms struct {
	repo persistence.RoomRepository
}

// NewStoreRooms wraps the repository.
func NewStoreRooms(repo persistence.RoomRepository) *StoreRooms {
	return &StoreRooms{repo: repo}
}

// GetRoom implements RoomSource.
func (s *StoreRooms) GetRoom(ctx context.Context, id string) (Room, error) {
	stored, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}
	return RoomFromPersistence(stored)
}

// GetRoomByEmail implements RoomSource.
func (s *StoreRooms) GetRoomByEmail(ctx context.Context, email string) (Room, error) {
	stored, err := s.repo.GetRoomByEmail(ctx, email)
	if err != nil {
		return Room{}, err
	}
	return RoomFromPersistence(stored)
}

// ListRooms implements RoomSource.
func (s *StoreRooms) ListRooms(ctx context.Context) ([]Room, error) {
	stored, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]Room, 0, len(stored))
	for _, item := range stored {
		room, err := RoomFromPersistence(item)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// StoreUsers adapts a persistence.UserRepository to UserSource.
type StoreUsers struct {
	repo persistence.UserRepository
}

// NewStoreUsers wraps the repository.
func NewStoreUsers(repo persistence.UserRepository) *StoreUsers {
	return &StoreUsers{repo: repo}
}

// GetUser implements UserSource.
func (s *StoreUsers) GetUser(ctx context.Context, id string) (User, error) {
	stored, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	return userFromPersistence(stored), nil
}

// GetUserByEmail implements UserSource.
func (s *StoreUsers) GetUserByEmail(ctx context.Context, email string) (User, error) {
	stored, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	return userFromPersistence(stored), nil
}

// RoomFromPersistence converts a stored room, parsing its availability rules.
func RoomFromPersistence(stored persistence.Room) (Room, error) {
	room := Room{
		ID:                    stored.ID,
		Email:                 stored.Email,
		Name:                  stored.Name,
		Location:              stored.Location,
		Capacity:              stored.Capacity,
		AutoAccept:            stored.AutoAccept,
		MaxBookingHorizonDays: stored.MaxBookingHorizonDays,
		Active:                stored.Active,
		Timezone:              stored.Timezone,
	}
	if stored.GroupID != nil {
		room.GroupID = *stored.GroupID
	}
	if stored.SMTP != nil {
		room.SMTP = &SMTPSettings{
			Host:              stored.SMTP.Host,
			Port:              stored.SMTP.Port,
			Username:          stored.SMTP.Username,
			PasswordEncrypted: stored.SMTP.PasswordEncrypted,
			Encryption:        stored.SMTP.Encryption,
		}
	}

	room.Availability.Enabled = stored.AvailabilityEnabled
	for i, rule := range stored.AvailabilityRules {
		parsed, err := availability.NewRule(rule.Days, rule.StartTime, rule.EndTime)
		if err != nil {
			return Room{}, fmt.Errorf("room %s availability rule %d: %w", stored.ID, i, err)
		}
		room.Availability.Rules = append(room.Availability.Rules, parsed)
	}
	return room, nil
}

func userFromPersistence(stored persistence.User) User {
	return User{
		ID:          stored.ID,
		Email:       stored.Email,
		DisplayName: stored.DisplayName,
		IsAdmin:     stored.IsAdmin,
	}
}
