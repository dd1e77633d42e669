package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/permission"
	"github.com/example/room-scheduler/internal/persistence"
)

// EngineDeps lists the collaborators of the reconciliation engine.
type EngineDeps struct {
	Rooms        RoomDirectory
	Identities   IdentityResolver
	Users        UserDirectory
	Authorizer   Authorizer
	Availability AvailabilityChecker
	Horizon      HorizonChecker
	Bookings     BookingScanner
	Calendars    CalendarStore
	Notifier     Notifier
	Ledger       *DecisionLedger
	Locks        *RoomLocks
}

// Engine processes scheduling messages addressed to rooms.
type Engine struct {
	rooms        RoomDirectory
	identities   IdentityResolver
	users        UserDirectory
	authorizer   Authorizer
	availability AvailabilityChecker
	horizon      HorizonChecker
	bookings     BookingScanner
	calendars    CalendarStore
	notifier     Notifier
	ledger       *DecisionLedger
	locks        *RoomLocks
	now          func() time.Time
	logger       *slog.Logger
}

// NewEngine constructs an engine with the provided dependencies.
func NewEngine(deps EngineDeps, now func() time.Time) *Engine {
	return NewEngineWithLogger(deps, now, nil)
}

// NewEngineWithLogger constructs an engine with a specified logger.
func NewEngineWithLogger(deps EngineDeps, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if deps.Ledger == nil {
		deps.Ledger = NewDecisionLedger(0, 0)
	}
	if deps.Locks == nil {
		deps.Locks = NewRoomLocks()
	}
	return &Engine{
		rooms:        deps.Rooms,
		identities:   deps.Identities,
		users:        deps.Users,
		authorizer:   deps.Authorizer,
		availability: deps.Availability,
		horizon:      deps.Horizon,
		bookings:     deps.Bookings,
		calendars:    deps.Calendars,
		notifier:     deps.Notifier,
		ledger:       deps.Ledger,
		locks:        deps.Locks,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (e *Engine) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, e.logger, "Engine", operation, attrs...)
}

// Ledger exposes the decision ledger shared with write-back.
func (e *Engine) Ledger() *DecisionLedger {
	return e.ledger
}

// ProcessSchedulingMessage classifies and, for REQUEST and CANCEL messages
// addressed to an active room, processes the message. The outcome is written
// onto the message as well as returned. An error is returned only when the
// recipient cannot be classified because a lookup failed.
func (e *Engine) ProcessSchedulingMessage(ctx context.Context, msg *itip.Message) (Result, error) {
	if e == nil {
		return Result{}, fmt.Errorf("Engine is nil")
	}
	if msg == nil {
		return Result{}, errors.New("application: nil scheduling message")
	}

	logger := e.loggerWith(ctx, "ProcessSchedulingMessage",
		"method", string(msg.Method),
		"recipient", msg.Recipient,
	)

	room, ok, err := e.classify(ctx, msg.Recipient)
	if err != nil {
		logger.ErrorContext(ctx, "failed to classify recipient", "error", err, "error_kind", ErrorKind(err))
		return Result{}, err
	}
	if !ok {
		logger.DebugContext(ctx, "recipient is not an active room")
		return Result{}, nil
	}

	var result Result
	switch itip.ParseMethod(string(msg.Method)) {
	case itip.MethodRequest:
		result = e.processRequest(ctx, room, msg.Calendar, requestOptions{
			sender:          msg.Sender,
			checkPermission: true,
		})
	case itip.MethodCancel:
		result = e.processCancel(ctx, room, msg.Calendar)
	default:
		logger.DebugContext(ctx, "method left to default delivery")
		return Result{}, nil
	}

	msg.ResultCode = result.Code
	msg.ResultPartStat = result.PartStat
	return result, nil
}

func (e *Engine) classify(ctx context.Context, recipient string) (Room, bool, error) {
	roomID, ok, err := e.rooms.ResolvePrincipal(ctx, recipient)
	if err != nil || !ok {
		return Room{}, false, err
	}
	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFoundError(err) {
			return Room{}, false, nil
		}
		return Room{}, false, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if !room.Active {
		return Room{}, false, nil
	}
	return room, true, nil
}

type requestOptions struct {
	sender          string
	checkPermission bool
}

// processRequest runs the REQUEST path against cal, rewriting the room
// attendee of cal with the decided partstat.
func (e *Engine) processRequest(ctx context.Context, room Room, cal *ical.Calendar, opts requestOptions) Result {
	logger := e.loggerWith(ctx, "ProcessRequest", "room_id", room.ID, "sender", opts.sender)

	event := itip.FirstEvent(cal)
	if event == nil {
		logger.WarnContext(ctx, "request payload has no VEVENT")
		return Result{Handled: true, Code: itip.StatusError}
	}
	loc := e.location(room)
	info := itip.CalendarEventInfo(cal, event, loc)
	if info.UID == "" {
		logger.WarnContext(ctx, "request payload has no UID")
		return Result{Handled: true, Code: itip.StatusError}
	}
	logger = logger.With("uid", info.UID)

	if opts.checkPermission {
		allowed, err := e.senderMayBook(ctx, room, opts.sender)
		if err != nil {
			logger.ErrorContext(ctx, "permission lookup failed", "error", err, "error_kind", ErrorKind(err))
			return Result{Handled: true, Code: itip.StatusError}
		}
		if !allowed {
			logger.InfoContext(ctx, "booking refused", "reason", "permission")
			return e.refuse(event, room, info.UID, itip.StatusRefused)
		}
	}

	if info.HasInterval() && e.availability != nil &&
		!e.availability.IsWithinAvailability(room.Availability, room.Timezone, info.Start, info.End) {
		logger.InfoContext(ctx, "booking refused", "reason", "availability")
		return e.refuse(event, room, info.UID, itip.StatusRefused)
	}

	if e.horizon != nil && !e.horizon.IsWithinHorizon(room.MaxBookingHorizonDays, info) {
		logger.InfoContext(ctx, "booking refused", "reason", "horizon", "max_days", room.MaxBookingHorizonDays)
		return e.refuse(event, room, info.UID, itip.StatusRefused)
	}

	unlock := e.locks.Lock(room.ID)
	result, conflict := e.deliverLocked(ctx, logger, room, cal, event, info)
	unlock()

	switch {
	case conflict:
		e.notify(ctx, logger, "conflict", func(ctx context.Context) error {
			return e.notifier.SendConflict(ctx, room, info)
		})
	case result.Code != itip.StatusDelivered:
	case result.PartStat == itip.PartStatAccepted:
		e.notify(ctx, logger, "accepted", func(ctx context.Context) error {
			return e.notifier.SendAccepted(ctx, room, info)
		})
	default:
		managers := e.managers(ctx, logger, room)
		e.notify(ctx, logger, "approval request", func(ctx context.Context) error {
			return e.notifier.NotifyManagers(ctx, room, info, managers)
		})
	}
	return result
}

// deliverLocked checks for conflicts, decides, enriches and upserts. The
// caller holds the room lock.
func (e *Engine) deliverLocked(ctx context.Context, logger *slog.Logger, room Room, cal *ical.Calendar, event *ical.Component, info itip.EventInfo) (Result, bool) {
	if info.HasInterval() && e.bookings != nil {
		conflict, err := e.bookings.HasConflict(ctx, room.ID, e.location(room), info.Start, info.End, info.UID)
		if err != nil {
			logger.ErrorContext(ctx, "conflict scan failed", "error", err, "error_kind", ErrorKind(err))
			return Result{Handled: true, Code: itip.StatusError}, false
		}
		if conflict {
			logger.InfoContext(ctx, "booking refused", "reason", "conflict")
			return e.refuse(event, room, info.UID, itip.StatusConflict), true
		}
	}

	partstat := itip.PartStatTentative
	if room.AutoAccept {
		partstat = itip.PartStatAccepted
	}

	enrich(event, room, partstat)
	itip.Normalize(cal, e.now())

	if err := e.upsertRoomCopy(ctx, room, info.UID, cal); err != nil {
		logger.ErrorContext(ctx, "failed to deliver to room calendar", "error", err, "error_kind", ErrorKind(err))
		return Result{Handled: true, Code: itip.StatusError, PartStat: partstat}, false
	}

	e.ledger.Record(info.UID, room.Email, partstat)
	logger.InfoContext(ctx, "booking delivered", "partstat", string(partstat))
	return Result{Handled: true, Code: itip.StatusDelivered, PartStat: partstat}, false
}

func (e *Engine) refuse(event *ical.Component, room Room, uid string, code itip.Status) Result {
	if attendee := itip.FindAttendee(event, room.Email); attendee != nil {
		itip.SetPartStat(attendee, itip.PartStatDeclined)
	}
	e.ledger.Record(uid, room.Email, itip.PartStatDeclined)
	return Result{Handled: true, Code: code, PartStat: itip.PartStatDeclined}
}

// enrich marks the room attendee as a room with the decided partstat and
// fills an empty LOCATION.
func enrich(event *ical.Component, room Room, partstat itip.PartStat) {
	attendee := itip.FindAttendee(event, room.Email)
	if attendee == nil {
		attendee = itip.AddRoomAttendee(event, room.Email, room.Name)
	}
	itip.SetRoomType(attendee)
	itip.SetPartStat(attendee, partstat)

	if location, _ := event.Props.Text(ical.PropLocation); location == "" {
		itip.SetLocation(event, room.CanonicalLocation())
	}
}

func (e *Engine) upsertRoomCopy(ctx context.Context, room Room, uid string, cal *ical.Calendar) error {
	data, err := itip.Encode(cal)
	if err != nil {
		return err
	}
	_, err = e.calendars.UpsertObject(ctx, persistence.CalendarObject{
		CalendarID: persistence.RoomCalendarID(room.ID),
		URI:        roomObjectURI(uid),
		UID:        uid,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("upsert room object: %w", err)
	}
	return nil
}

func (e *Engine) senderMayBook(ctx context.Context, room Room, sender string) (bool, error) {
	if e.authorizer == nil {
		return true, nil
	}
	open, err := e.authorizer.IsOpen(ctx, room.ID)
	if err != nil {
		return false, err
	}
	if open {
		return true, nil
	}
	if e.identities == nil {
		return false, nil
	}
	user, ok, err := e.identities.ResolveSenderToUser(ctx, sender)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	role, err := e.authorizer.EffectiveRole(ctx, permission.Subject{UserID: user.ID, IsAdmin: user.IsAdmin}, room.ID)
	if err != nil {
		return false, err
	}
	return role >= permission.RoleBooker, nil
}

func (e *Engine) processCancel(ctx context.Context, room Room, cal *ical.Calendar) Result {
	logger := e.loggerWith(ctx, "ProcessCancel", "room_id", room.ID)

	info := itip.CalendarEventInfo(cal, itip.FirstEvent(cal), e.location(room))
	if info.UID != "" {
		logger = logger.With("uid", info.UID)

		unlock := e.locks.Lock(room.ID)
		removed, err := e.calendars.DeleteObjectByUID(ctx, persistence.RoomCalendarID(room.ID), info.UID)
		unlock()
		if err != nil {
			logger.ErrorContext(ctx, "failed to remove booking", "error", err, "error_kind", ErrorKind(err))
			return Result{Handled: true, Code: itip.StatusError}
		}
		e.ledger.Forget(info.UID, room.Email)
		logger.InfoContext(ctx, "booking cancelled", "removed", removed)
	}

	managers := e.managers(ctx, logger, room)
	e.notify(ctx, logger, "cancellation", func(ctx context.Context) error {
		return e.notifier.SendCancelled(ctx, room, info, managers)
	})
	return Result{Handled: true, Code: itip.StatusDelivered}
}

func (e *Engine) managers(ctx context.Context, logger *slog.Logger, room Room) []User {
	return resolveManagers(ctx, logger, e.authorizer, e.users, room)
}

func (e *Engine) notify(ctx context.Context, logger *slog.Logger, kind string, send func(context.Context) error) {
	if e.notifier == nil {
		return
	}
	if err := send(ctx); err != nil {
		logger.WarnContext(ctx, "notification failed", "notification", kind, "error", err)
	}
}

func (e *Engine) location(room Room) *time.Location {
	if e.availability == nil {
		return time.UTC
	}
	return e.availability.Location(room.Timezone)
}

// resolveManagers expands the room's managers into directory users. Lookup
// failures are logged and yield the managers resolved so far.
func resolveManagers(ctx context.Context, logger *slog.Logger, authorizer Authorizer, users UserDirectory, room Room) []User {
	if authorizer == nil || users == nil {
		return nil
	}
	ids, err := authorizer.ManagerUserIDs(ctx, room.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve room managers", "error", err)
		return nil
	}
	managers := make([]User, 0, len(ids))
	for _, id := range ids {
		user, ok, err := users.LookupUser(ctx, id)
		if err != nil {
			logger.WarnContext(ctx, "failed to load manager", "user_id", id, "error", err)
			continue
		}
		if ok {
			managers = append(managers, user)
		}
	}
	return managers
}

func roomObjectURI(uid string) string {
	return url.PathEscape(uid) + calendarObjectSuffix
}
