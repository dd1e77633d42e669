// Package directory loads the users, groups and rooms of a deployment from a
// YAML seed file and stores them.
package directory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/room-scheduler/internal/availability"
)

// File is the root of a seed document.
type File struct {
	Users  []UserSpec  `yaml:"users" validate:"dive"`
	Groups []GroupSpec `yaml:"groups" validate:"dive"`
	Rooms  []RoomSpec  `yaml:"rooms" validate:"dive"`
}

// UserSpec declares a directory user.
type UserSpec struct {
	ID          string `yaml:"id" validate:"required,excludes=/"`
	Email       string `yaml:"email" validate:"required,email"`
	DisplayName string `yaml:"displayName"`
	Admin       bool   `yaml:"admin"`
}

// GroupSpec declares a group, its members and the permissions it passes on to
// its rooms.
type GroupSpec struct {
	ID          string         `yaml:"id" validate:"required,excludes=/"`
	Name        string         `yaml:"name"`
	Members     []string       `yaml:"members" validate:"dive,required"`
	Permissions PermissionSpec `yaml:"permissions"`
}

// PermissionSpec lists "user:<id>" or "group:<id>" references per tier.
type PermissionSpec struct {
	Viewers  []string `yaml:"viewers" validate:"dive,entry"`
	Bookers  []string `yaml:"bookers" validate:"dive,entry"`
	Managers []string `yaml:"managers" validate:"dive,entry"`
}

// RoomSpec declares a bookable room.
type RoomSpec struct {
	ID                    string            `yaml:"id" validate:"required,excludes=/"`
	Email                 string            `yaml:"email" validate:"required,email"`
	Name                  string            `yaml:"name" validate:"required"`
	Location              string            `yaml:"location"`
	Capacity              int               `yaml:"capacity" validate:"min=0"`
	AutoAccept            bool              `yaml:"autoAccept"`
	Timezone              string            `yaml:"timezone" validate:"omitempty,timezone"`
	MaxBookingHorizonDays int               `yaml:"maxBookingHorizonDays" validate:"min=0"`
	Group                 string            `yaml:"group"`
	Inactive              bool              `yaml:"inactive"`
	Availability          *AvailabilitySpec `yaml:"availability"`
	SMTP                  *SMTPSpec         `yaml:"smtp"`
	Permissions           PermissionSpec    `yaml:"permissions"`
}

// AvailabilitySpec declares opening hours in the room timezone.
type AvailabilitySpec struct {
	Enabled bool       `yaml:"enabled"`
	Rules   []RuleSpec `yaml:"rules" validate:"dive"`
}

// RuleSpec is one weekly window. Days use 0=Sunday..6=Saturday.
type RuleSpec struct {
	Days  []int  `yaml:"days" validate:"required,min=1,dive,min=0,max=6"`
	Start string `yaml:"start" validate:"required,clock"`
	End   string `yaml:"end" validate:"required,clock"`
}

// SMTPSpec configures a room specific relay. Password may be plain text or a
// value already sealed with the deployment key.
type SMTPSpec struct {
	Host       string `yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port       int    `yaml:"port" validate:"min=0,max=65535"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Encryption string `yaml:"encryption" validate:"omitempty,oneof=none tls ssl"`
}

// LoadFile reads and validates a seed file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("directory: read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("directory: decode seed file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

// ValidationError lists every problem found in a seed document.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "directory: invalid seed file: " + strings.Join(v.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := availability.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("entry", func(fl validator.FieldLevel) bool {
		kind, id, ok := strings.Cut(fl.Field().String(), ":")
		return ok && id != "" && (kind == "user" || kind == "group")
	})
	return v
}

// Validate checks field constraints, identifier uniqueness and references
// between rooms and groups.
func (f File) Validate() error {
	var problems []string
	if err := validate.Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("directory: validate seed file: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", strings.TrimPrefix(fe.Namespace(), "File."), fe.Tag()))
		}
	}

	groups := make(map[string]bool, len(f.Groups))
	problems = append(problems, duplicates("user", len(f.Users), func(i int) string { return f.Users[i].ID })...)
	problems = append(problems, duplicates("group", len(f.Groups), func(i int) string { return f.Groups[i].ID })...)
	problems = append(problems, duplicates("room", len(f.Rooms), func(i int) string { return f.Rooms[i].ID })...)
	problems = append(problems, duplicates("room email", len(f.Rooms), func(i int) string { return strings.ToLower(f.Rooms[i].Email) })...)
	for _, group := range f.Groups {
		groups[group.ID] = true
	}

	for _, group := range f.Groups {
		problems = append(problems, danglingGroups("group "+group.ID, group.Permissions, groups)...)
	}
	for _, room := range f.Rooms {
		if room.Group != "" && !groups[room.Group] {
			problems = append(problems, fmt.Sprintf("room %s references unknown group %s", room.ID, room.Group))
		}
		problems = append(problems, danglingGroups("room "+room.ID, room.Permissions, groups)...)
		if room.Availability == nil {
			continue
		}
		for i, rule := range room.Availability.Rules {
			parsed, err := availability.NewRule(rule.Days, rule.Start, rule.End)
			switch {
			case err != nil:
				problems = append(problems, fmt.Sprintf("room %s availability rule %d: %v", room.ID, i, err))
			case parsed.End <= parsed.Start:
				problems = append(problems, fmt.Sprintf("room %s availability rule %d: end must be after start", room.ID, i))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return &ValidationError{Problems: problems}
	}
	return nil
}

func duplicates(kind string, n int, key func(int) string) []string {
	seen := make(map[string]bool, n)
	var problems []string
	for i := 0; i < n; i++ {
		k := key(i)
		if k == "" {
			continue
		}
		if seen[k] {
			problems = append(problems, fmt.Sprintf("duplicate %s %s", kind, k))
		}
		seen[k] = true
	}
	return problems
}

func danglingGroups(owner string, set PermissionSpec, groups map[string]bool) []string {
	var problems []string
	for _, tier := range [][]string{set.Viewers, set.Bookers, set.Managers} {
		for _, ref := range tier {
			kind, id, _ := strings.Cut(ref, ":")
			if kind == "group" && id != "" && !groups[id] {
				problems = append(problems, fmt.Sprintf("%s references unknown group %s", owner, id))
			}
		}
	}
	return problems
}
