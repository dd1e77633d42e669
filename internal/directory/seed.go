package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/secrets"
)

// Sealer encrypts SMTP passwords before storage. *secrets.Box satisfies it.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Publisher stores a room's opening hours document.
// *application.AvailabilityPublisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, room application.Room) (bool, error)
}

// Summary counts what a seed run stored.
type Summary struct {
	Users     int
	Groups    int
	Rooms     int
	Published int
}

// Seeder writes a seed file into the repositories.
type Seeder struct {
	users     persistence.UserRepository
	groups    persistence.GroupRepository
	rooms     persistence.RoomRepository
	sealer    Sealer
	publisher Publisher
	timezone  string
	logger    *slog.Logger
}

// SeederOptions configures a Seeder.
type SeederOptions struct {
	Users     persistence.UserRepository
	Groups    persistence.GroupRepository
	Rooms     persistence.RoomRepository
	Sealer    Sealer
	Publisher Publisher
	// DefaultTimezone applies to rooms that name none.
	DefaultTimezone string
	Logger          *slog.Logger
}

// NewSeeder constructs a seeder.
func NewSeeder(opts SeederOptions) *Seeder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timezone := strings.TrimSpace(opts.DefaultTimezone)
	if timezone == "" {
		timezone = "UTC"
	}
	return &Seeder{
		users:     opts.Users,
		groups:    opts.Groups,
		rooms:     opts.Rooms,
		sealer:    opts.Sealer,
		publisher: opts.Publisher,
		timezone:  timezone,
		logger:    logger,
	}
}

// Seed upserts users, then groups, then rooms, and publishes each room's
// availability. Existing records with the same ids are replaced.
func (s *Seeder) Seed(ctx context.Context, file File) (Summary, error) {
	var summary Summary
	if err := file.Validate(); err != nil {
		return summary, err
	}

	for _, spec := range file.Users {
		if err := s.users.UpsertUser(ctx, persistence.User{
			ID:          spec.ID,
			Email:       spec.Email,
			DisplayName: spec.DisplayName,
			IsAdmin:     spec.Admin,
		}); err != nil {
			return summary, fmt.Errorf("directory: store user %s: %w", spec.ID, err)
		}
		summary.Users++
	}

	for _, spec := range file.Groups {
		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		if err := s.groups.UpsertGroup(ctx, persistence.Group{
			ID:          spec.ID,
			Name:        name,
			Members:     append([]string(nil), spec.Members...),
			Permissions: permissionSet(spec.Permissions),
		}); err != nil {
			return summary, fmt.Errorf("directory: store group %s: %w", spec.ID, err)
		}
		summary.Groups++
	}

	for _, spec := range file.Rooms {
		stored, err := s.room(spec)
		if err != nil {
			return summary, err
		}
		if err := s.rooms.UpsertRoom(ctx, stored); err != nil {
			return summary, fmt.Errorf("directory: store room %s: %w", spec.ID, err)
		}
		summary.Rooms++

		if s.publisher == nil {
			continue
		}
		room, err := application.RoomFromPersistence(stored)
		if err != nil {
			return summary, err
		}
		published, err := s.publisher.Publish(ctx, room)
		if err != nil {
			return summary, fmt.Errorf("directory: publish availability of room %s: %w", spec.ID, err)
		}
		if published {
			summary.Published++
		}
	}

	s.logger.InfoContext(ctx, "directory seeded",
		"users", summary.Users,
		"groups", summary.Groups,
		"rooms", summary.Rooms,
		"availability_published", summary.Published,
	)
	return summary, nil
}

func (s *Seeder) room(spec RoomSpec) (persistence.Room, error) {
	room := persistence.Room{
		ID:                    spec.ID,
		Email:                 spec.Email,
		Name:                  spec.Name,
		Location:              spec.Location,
		Capacity:              spec.Capacity,
		AutoAccept:            spec.AutoAccept,
		MaxBookingHorizonDays: spec.MaxBookingHorizonDays,
		Active:                !spec.Inactive,
		Timezone:              spec.Timezone,
		Permissions:           permissionSet(spec.Permissions),
	}
	if room.Timezone == "" {
		room.Timezone = s.timezone
	}
	if spec.Group != "" {
		group := spec.Group
		room.GroupID = &group
	}
	if spec.Availability != nil {
		room.AvailabilityEnabled = spec.Availability.Enabled
		for _, rule := range spec.Availability.Rules {
			room.AvailabilityRules = append(room.AvailabilityRules, persistence.AvailabilityRule{
				Days:      append([]int(nil), rule.Days...),
				StartTime: rule.Start,
				EndTime:   rule.End,
			})
		}
	}
	if spec.SMTP != nil {
		password, err := s.seal(spec.ID, spec.SMTP.Password)
		if err != nil {
			return persistence.Room{}, err
		}
		room.SMTP = &persistence.SMTPSettings{
			Host:              spec.SMTP.Host,
			Port:              spec.SMTP.Port,
			Username:          spec.SMTP.Username,
			PasswordEncrypted: password,
			Encryption:        spec.SMTP.Encryption,
		}
	}
	return room, nil
}

func (s *Seeder) seal(roomID, password string) (string, error) {
	if password == "" || secrets.IsSealed(password) {
		return password, nil
	}
	if s.sealer == nil {
		return "", fmt.Errorf("directory: room %s has an SMTP password but no secret key is configured", roomID)
	}
	sealed, err := s.sealer.Seal(password)
	if err != nil {
		return "", fmt.Errorf("directory: seal SMTP password of room %s: %w", roomID, err)
	}
	return sealed, nil
}

func permissionSet(spec PermissionSpec) persistence.PermissionSet {
	return persistence.PermissionSet{
		Viewers:  entries(spec.Viewers),
		Bookers:  entries(spec.Bookers),
		Managers: entries(spec.Managers),
	}
}

func entries(refs []string) []persistence.PermissionEntry {
	if len(refs) == 0 {
		return nil
	}
	out := make([]persistence.PermissionEntry, 0, len(refs))
	for _, ref := range refs {
		kind, id, _ := strings.Cut(ref, ":")
		out = append(out, persistence.PermissionEntry{Type: kind, ID: id})
	}
	return out
}
