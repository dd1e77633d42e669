package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/scheduler"
)

// Reconciler keeps organizer copies of room bookings consistent with the
// room calendar: it repairs room attendees, patches in decided partstats and
// books rooms that were only named in LOCATION.
type Reconciler struct {
	rooms     RoomDirectory
	users     UserDirectory
	calendars CalendarStore
	matcher   *LocationMatcher
	engine    *Engine
	now       func() time.Time
	logger    *slog.Logger
}

// NewReconciler constructs a reconciler sharing the engine's decision ledger.
func NewReconciler(engine *Engine, matcher *LocationMatcher, now func() time.Time) *Reconciler {
	return NewReconcilerWithLogger(engine, matcher, now, nil)
}

// NewReconcilerWithLogger constructs a reconciler with a specified logger.
func NewReconcilerWithLogger(engine *Engine, matcher *LocationMatcher, now func() time.Time, logger *slog.Logger) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		rooms:     engine.rooms,
		users:     engine.users,
		calendars: engine.calendars,
		matcher:   matcher,
		engine:    engine,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (r *Reconciler) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "Reconciler", operation, attrs...)
}

// ReconcileOrganizerCopy returns a rewritten copy of the organizer's payload.
// For every attendee addressed to a room it forces CUTYPE=ROOM and applies
// the decided partstat, taken from the ledger or else from the room calendar
// copy. An empty LOCATION is filled with the first room's canonical string.
// The input calendar is never modified.
func (r *Reconciler) ReconcileOrganizerCopy(ctx context.Context, cal *ical.Calendar) (*ical.Calendar, bool, error) {
	out := itip.Clone(cal)
	changed, _, err := r.reconcile(ctx, out)
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

// reconcile rewrites cal in place and reports how many room attendees it found.
func (r *Reconciler) reconcile(ctx context.Context, cal *ical.Calendar) (bool, int, error) {
	event := itip.FirstEvent(cal)
	if event == nil {
		return false, 0, nil
	}
	uid, _ := event.Props.Text(ical.PropUID)

	changed := false
	var first *Room
	found := 0
	for _, attendee := range itip.Attendees(event) {
		roomID, ok, err := r.rooms.ResolvePrincipal(ctx, attendee.Value)
		if err != nil {
			return false, 0, err
		}
		if !ok {
			continue
		}
		room, err := r.rooms.GetRoom(ctx, roomID)
		if err != nil {
			if isNotFoundError(err) {
				continue
			}
			return false, 0, fmt.Errorf("load room %s: %w", roomID, err)
		}
		found++
		if first == nil {
			first = &room
		}

		if itip.SetRoomType(attendee) {
			changed = true
		}
		partstat, ok, err := r.decidedPartStat(ctx, room, uid)
		if err != nil {
			return false, 0, err
		}
		if ok && itip.SetPartStat(attendee, partstat) {
			changed = true
		}
	}

	if first != nil {
		if location, _ := event.Props.Text(ical.PropLocation); strings.TrimSpace(location) == "" {
			itip.SetLocation(event, first.CanonicalLocation())
			changed = true
		}
	}
	return changed, found, nil
}

func (r *Reconciler) decidedPartStat(ctx context.Context, room Room, uid string) (itip.PartStat, bool, error) {
	if uid == "" {
		return "", false, nil
	}
	if partstat, ok := r.engine.ledger.Lookup(uid, room.Email); ok {
		return partstat, true, nil
	}
	object, err := r.calendars.GetObjectByUID(ctx, persistence.RoomCalendarID(room.ID), uid)
	if err != nil {
		if isNotFoundError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load room copy %s: %w", uid, err)
	}
	booking, err := scheduler.ParseBooking(object.Data, room.Email, r.engine.location(room))
	if err != nil || booking.PartStat == "" {
		return "", false, nil
	}
	return booking.PartStat, true, nil
}

// SynthesizeFromLocation books the room named in LOCATION when the payload
// has no room attendee. It infers a missing ORGANIZER from the calendar owner,
// adds the room attendee, rewrites LOCATION, persists the organizer object
// and runs the REQUEST path without the permission gate. It returns nil when
// no room matched.
func (r *Reconciler) SynthesizeFromLocation(ctx context.Context, path ObjectPath, cal *ical.Calendar) (*ical.Calendar, error) {
	if r.matcher == nil {
		return nil, nil
	}
	event := itip.FirstEvent(cal)
	if event == nil {
		return nil, nil
	}
	location, _ := event.Props.Text(ical.PropLocation)
	room, ok, err := r.matcher.Match(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("match location: %w", err)
	}
	if !ok {
		return nil, nil
	}

	logger := r.loggerWith(ctx, "SynthesizeFromLocation", "room_id", room.ID, "path", path.String())

	out := itip.Clone(cal)
	event = itip.FirstEvent(out)
	if organizer, _ := itip.Organizer(event); organizer == "" {
		email, name := r.ownerAddress(ctx, path.Owner)
		itip.SetOrganizer(event, email, name)
	}
	if itip.FindAttendee(event, room.Email) == nil {
		itip.AddRoomAttendee(event, room.Email, room.Name)
	}
	itip.SetLocation(event, room.CanonicalLocation())
	itip.Normalize(out, r.now())

	if err := r.saveOrganizerCopy(ctx, path, out); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "room attendee synthesized from location")

	result := r.engine.processRequest(ctx, room, itip.Clone(out), requestOptions{checkPermission: false})
	logger.InfoContext(ctx, "location booking processed",
		"result_code", string(result.Code),
		"partstat", string(result.PartStat),
	)
	return out, nil
}

func (r *Reconciler) ownerAddress(ctx context.Context, owner string) (string, string) {
	if r.users != nil {
		user, ok, err := r.users.LookupUser(ctx, owner)
		if err == nil && ok && user.Email != "" {
			return user.Email, user.DisplayName
		}
	}
	return owner, ""
}

// HandleObjectWrite is the organizer calendar object write hook. It applies
// write-back, or the location fallback when the payload names no room
// attendee, stores the organizer object and returns the final payload.
func (r *Reconciler) HandleObjectWrite(ctx context.Context, rawPath string, data []byte) (out []byte, err error) {
	if r == nil {
		return nil, fmt.Errorf("Reconciler is nil")
	}
	logger := r.loggerWith(ctx, "HandleObjectWrite", "path", rawPath)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to handle object write", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	path, pathErr := ParseObjectPath(rawPath)
	vErr.Merge(pathErr)
	cal, parseErr := itip.Parse(data)
	if parseErr != nil {
		vErr.Add("payload", "payload is not a valid iCalendar object")
	} else if _, uidErr := itip.UID(cal); uidErr != nil {
		vErr.Add("payload", uidErr.Error())
	}
	if err = vErr.Err(); err != nil {
		return
	}

	current := itip.Clone(cal)
	changed, rooms, err := r.reconcile(ctx, current)
	if err != nil {
		return nil, err
	}
	if rooms == 0 {
		synthesized, synthErr := r.SynthesizeFromLocation(ctx, path, current)
		if synthErr != nil {
			err = synthErr
			return
		}
		if synthesized != nil {
			current = synthesized
			changed, _, err = r.reconcile(ctx, current)
			if err != nil {
				return nil, err
			}
			if !changed {
				return itip.Encode(current)
			}
		}
	}

	if err = r.saveOrganizerCopy(ctx, path, current); err != nil {
		return nil, err
	}
	if changed {
		logger.InfoContext(ctx, "organizer copy reconciled")
	}
	return itip.Encode(current)
}

// ReadObject loads an organizer object, applies write-back and stores the
// result when it changed.
func (r *Reconciler) ReadObject(ctx context.Context, rawPath string) ([]byte, error) {
	path, err := ParseObjectPath(rawPath)
	if err != nil {
		return nil, err
	}
	object, err := r.calendars.GetObject(ctx, path.CalendarID(), path.Object)
	if err != nil {
		return nil, mapStoreError(err)
	}
	cal, err := itip.Parse(object.Data)
	if err != nil {
		// Unparsable objects are served as stored.
		return object.Data, nil
	}
	changed, _, err := r.reconcile(ctx, cal)
	if err != nil {
		return nil, err
	}
	if !changed {
		return object.Data, nil
	}
	if err := r.saveOrganizerCopy(ctx, path, cal); err != nil {
		return nil, err
	}
	r.loggerWith(ctx, "ReadObject", "path", path.String()).InfoContext(ctx, "organizer copy reconciled on read")
	return itip.Encode(cal)
}

func (r *Reconciler) saveOrganizerCopy(ctx context.Context, path ObjectPath, cal *ical.Calendar) error {
	uid, err := itip.UID(cal)
	if err != nil {
		return invalidField("payload", err.Error())
	}
	itip.Normalize(cal, r.now())
	data, err := itip.Encode(cal)
	if err != nil {
		return err
	}
	_, err = r.calendars.UpsertObject(ctx, persistence.CalendarObject{
		CalendarID: path.CalendarID(),
		URI:        path.Object,
		UID:        uid,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("store organizer object: %w", mapStoreError(err))
	}
	return nil
}
