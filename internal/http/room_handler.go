package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/scheduler"
)

type bookingService interface {
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]scheduler.Booking, error)
	Respond(ctx context.Context, params application.RespondParams) (scheduler.Booking, error)
}

// RoomHandler serves the booking views of a room.
type RoomHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service bookingService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

// ListBookings returns the bookings of a room, optionally bounded by from/to.
func (h *RoomHandler) ListBookings(c echo.Context) error {
	if h == nil || h.service == nil {
		return c.NoContent(http.StatusInternalServerError)
	}
	ctx := c.Request().Context()
	principal, _ := PrincipalFromContext(ctx)
	roomID := c.Param("id")

	vErr := &application.ValidationError{}
	from := parseBound(vErr, "from", c.QueryParam("from"))
	to := parseBound(vErr, "to", c.QueryParam("to"))
	if from != nil && to != nil && to.Before(*from) {
		vErr.Add("to", "must not be before from")
	}
	if err := vErr.Err(); err != nil {
		return h.responder.handleServiceError(c, err)
	}

	logger := h.log(ctx, "ListBookings", "principal_id", principal.UserID, "room_id", roomID)
	bookings, err := h.service.ListBookings(ctx, application.ListBookingsParams{
		Principal: principal,
		RoomID:    roomID,
		From:      from,
		To:        to,
	})
	if err != nil {
		logger.ErrorContext(ctx, "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		return h.responder.handleServiceError(c, err)
	}

	logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	return c.JSON(http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

// Respond accepts or declines a pending booking.
func (h *RoomHandler) Respond(c echo.Context) error {
	if h == nil || h.service == nil {
		return c.NoContent(http.StatusInternalServerError)
	}
	ctx := c.Request().Context()
	principal, _ := PrincipalFromContext(ctx)
	roomID := c.Param("id")
	uid := c.Param("uid")

	var req respondRequest
	if err := c.Bind(&req); err != nil {
		h.log(ctx, "Respond", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(ctx, "failed to decode booking response", "error", err)
		return h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
	}
	if err := c.Validate(&req); err != nil {
		return h.responder.handleServiceError(c, err)
	}

	logger := h.log(ctx, "Respond", "principal_id", principal.UserID, "room_id", roomID, "uid", uid, "action", req.Action)
	booking, err := h.service.Respond(ctx, application.RespondParams{
		Principal: principal,
		RoomID:    roomID,
		UID:       uid,
		Action:    application.BookingAction(strings.TrimSpace(req.Action)),
	})
	if err != nil {
		logger.ErrorContext(ctx, "booking response failed", "error", err, "error_kind", application.ErrorKind(err))
		return h.responder.handleServiceError(c, err)
	}

	logger.InfoContext(ctx, "booking response recorded")
	return c.JSON(http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func parseBound(vErr *application.ValidationError, field, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		vErr.Add(field, "must be an RFC 3339 timestamp")
		return nil
	}
	return &t
}

type respondRequest struct {
	Action string `json:"action" validate:"required"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type organizerDTO struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type bookingDTO struct {
	UID         string        `json:"uid"`
	Summary     string        `json:"summary,omitempty"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Organizer   *organizerDTO `json:"organizer,omitempty"`
	Start       string        `json:"start,omitempty"`
	End         string        `json:"end,omitempty"`
	PartStat    string        `json:"partstat"`
	Status      string        `json:"status,omitempty"`
	RRule       string        `json:"rrule,omitempty"`
}

func toBookingDTO(b scheduler.Booking) bookingDTO {
	dto := bookingDTO{
		UID:         b.UID,
		Summary:     b.Summary,
		Description: b.Description,
		Location:    b.Location,
		Start:       formatTime(b.Start),
		End:         formatTime(b.End),
		PartStat:    string(b.PartStat),
		Status:      string(b.Status),
		RRule:       b.RRule,
	}
	if b.OrganizerEmail != "" {
		dto.Organizer = &organizerDTO{Email: b.OrganizerEmail, Name: b.OrganizerName}
	}
	return dto
}

func toBookingDTOs(bookings []scheduler.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
