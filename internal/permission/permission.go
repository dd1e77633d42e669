// Package permission resolves a user's role for a room from the room's own
// permission set and the set inherited from its group.
package permission

import (
	"context"
	"fmt"
	"strings"
)

// Role is a permission tier. Higher tiers include the capabilities of lower ones.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleBooker
	RoleManager
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleBooker:
		return "booker"
	case RoleManager:
		return "manager"
	default:
		return "none"
	}
}

// EntryType tags a permission entry.
type EntryType string

const (
	EntryUser  EntryType = "user"
	EntryGroup EntryType = "group"
)

// Entry grants a tier to a user or to every member of a group.
type Entry struct {
	Type EntryType
	ID   string
}

func (e Entry) key() string {
	return strings.ToLower(string(e.Type)) + ":" + e.ID
}

// Set assigns entries to tiers.
type Set struct {
	Viewers  []Entry
	Bookers  []Entry
	Managers []Entry
}

// IsEmpty reports whether no entry is configured on any tier.
func (s Set) IsEmpty() bool {
	return len(s.Viewers) == 0 && len(s.Bookers) == 0 && len(s.Managers) == 0
}

// Union merges the sets tier by tier, dropping duplicate entries.
func Union(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		out.Viewers = appendUnique(out.Viewers, s.Viewers...)
		out.Bookers = appendUnique(out.Bookers, s.Bookers...)
		out.Managers = appendUnique(out.Managers, s.Managers...)
	}
	return out
}

func appendUnique(dst []Entry, entries ...Entry) []Entry {
	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		duplicate := false
		for _, existing := range dst {
			if existing.key() == entry.key() {
				duplicate = true
				break
			}
		}
		if !duplicate {
			dst = append(dst, entry)
		}
	}
	return dst
}

// Subject is the user whose role is evaluated. An empty UserID is an
// unresolved sender.
type Subject struct {
	UserID  string
	IsAdmin bool
}

// SetSource returns the effective permission set of a room.
type SetSource interface {
	EffectiveSet(ctx context.Context, roomID string) (Set, error)
}

// GroupDirectory answers membership questions.
type GroupDirectory interface {
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
	Members(ctx context.Context, groupID string) ([]string, error)
}

// Resolver computes effective roles.
type Resolver struct {
	sets   SetSource
	groups GroupDirectory
}

// NewResolver constructs a resolver.
func NewResolver(sets SetSource, groups GroupDirectory) *Resolver {
	return &Resolver{sets: sets, groups: groups}
}

// EffectiveRole returns the highest tier with a matching entry. Administrators
// are always managers.
func (r *Resolver) EffectiveRole(ctx context.Context, subject Subject, roomID string) (Role, error) {
	if subject.IsAdmin {
		return RoleManager, nil
	}
	if subject.UserID == "" {
		return RoleNone, nil
	}
	set, err := r.sets.EffectiveSet(ctx, roomID)
	if err != nil {
		return RoleNone, fmt.Errorf("permission: effective set for room %s: %w", roomID, err)
	}
	return r.RoleIn(ctx, subject, set)
}

// RoleIn evaluates the subject against an already resolved set.
func (r *Resolver) RoleIn(ctx context.Context, subject Subject, set Set) (Role, error) {
	if subject.IsAdmin {
		return RoleManager, nil
	}
	if subject.UserID == "" {
		return RoleNone, nil
	}
	tiers := []struct {
		role    Role
		entries []Entry
	}{
		{RoleManager, set.Managers},
		{RoleBooker, set.Bookers},
		{RoleViewer, set.Viewers},
	}
	for _, tier := range tiers {
		ok, err := r.matchesAny(ctx, subject.UserID, tier.entries)
		if err != nil {
			return RoleNone, err
		}
		if ok {
			return tier.role, nil
		}
	}
	return RoleNone, nil
}

func (r *Resolver) matchesAny(ctx context.Context, userID string, entries []Entry) (bool, error) {
	for _, entry := range entries {
		switch entry.Type {
		case EntryUser:
			if entry.ID == userID {
				return true, nil
			}
		case EntryGroup:
			if r.groups == nil {
				continue
			}
			member, err := r.groups.IsMember(ctx, userID, entry.ID)
			if err != nil {
				return false, fmt.Errorf("permission: membership of %s in %s: %w", userID, entry.ID, err)
			}
			if member {
				return true, nil
			}
		}
	}
	return false, nil
}

// CanView reports whether the subject holds at least the viewer tier.
func (r *Resolver) CanView(ctx context.Context, subject Subject, roomID string) (bool, error) {
	return r.atLeast(ctx, subject, roomID, RoleViewer)
}

// CanBook reports whether the subject holds at least the booker tier.
func (r *Resolver) CanBook(ctx context.Context, subject Subject, roomID string) (bool, error) {
	return r.atLeast(ctx, subject, roomID, RoleBooker)
}

// CanManage reports whether the subject holds the manager tier.
func (r *Resolver) CanManage(ctx context.Context, subject Subject, roomID string) (bool, error) {
	return r.atLeast(ctx, subject, roomID, RoleManager)
}

func (r *Resolver) atLeast(ctx context.Context, subject Subject, roomID string, min Role) (bool, error) {
	role, err := r.EffectiveRole(ctx, subject, roomID)
	if err != nil {
		return false, err
	}
	return role >= min, nil
}

// IsOpen reports whether the room has no permission entries at all, in which
// case anyone may book it.
func (r *Resolver) IsOpen(ctx context.Context, roomID string) (bool, error) {
	set, err := r.sets.EffectiveSet(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("permission: effective set for room %s: %w", roomID, err)
	}
	return set.IsEmpty(), nil
}

// ManagerUserIDs expands the room's manager entries into user ids, in entry
// order and without duplicates.
func (r *Resolver) ManagerUserIDs(ctx context.Context, roomID string) ([]string, error) {
	set, err := r.sets.EffectiveSet(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("permission: effective set for room %s: %w", roomID, err)
	}
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, entry := range set.Managers {
		switch entry.Type {
		case EntryUser:
			add(entry.ID)
		case EntryGroup:
			if r.groups == nil {
				continue
			}
			members, err := r.groups.Members(ctx, entry.ID)
			if err != nil {
				return nil, fmt.Errorf("permission: members of %s: %w", entry.ID, err)
			}
			for _, member := range members {
				add(member)
			}
		}
	}
	return ids, nil
}
