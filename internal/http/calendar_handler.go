package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/room-scheduler/internal/application"
)

const (
	calendarContentType = "text/calendar; charset=utf-8"
	maxObjectSize       = 1 << 20
)

type objectReconciler interface {
	HandleObjectWrite(ctx context.Context, rawPath string, data []byte) ([]byte, error)
	ReadObject(ctx context.Context, rawPath string) ([]byte, error)
}

// CalendarHandler fronts organizer calendar objects.
type CalendarHandler struct {
	reconciler objectReconciler
	responder  responder
	logger     *slog.Logger
}

func NewCalendarHandler(reconciler objectReconciler, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{reconciler: reconciler, responder: newResponder(base), logger: base}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Put runs the write hook and stores the object.
func (h *CalendarHandler) Put(c echo.Context) error {
	if h == nil || h.reconciler == nil {
		return c.NoContent(http.StatusInternalServerError)
	}
	ctx := c.Request().Context()
	path := objectPath(c)
	logger := h.log(ctx, "Put", "path", path)

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxObjectSize+1))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read object body", "error", err)
		return h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
	}
	if len(data) > maxObjectSize {
		return h.responder.writeError(c, http.StatusRequestEntityTooLarge, errBodyTooLarge)
	}

	out, err := h.reconciler.HandleObjectWrite(ctx, path, data)
	if err != nil {
		logger.ErrorContext(ctx, "object write failed", "error", err, "error_kind", application.ErrorKind(err))
		return h.responder.handleServiceError(c, err)
	}
	logger.InfoContext(ctx, "object stored")
	return c.Blob(http.StatusOK, calendarContentType, out)
}

// Get serves an object after applying pending room decisions.
func (h *CalendarHandler) Get(c echo.Context) error {
	if h == nil || h.reconciler == nil {
		return c.NoContent(http.StatusInternalServerError)
	}
	ctx := c.Request().Context()
	path := objectPath(c)

	out, err := h.reconciler.ReadObject(ctx, path)
	if err != nil {
		h.log(ctx, "Get", "path", path).ErrorContext(ctx, "object read failed", "error", err, "error_kind", application.ErrorKind(err))
		return h.responder.handleServiceError(c, err)
	}
	return c.Blob(http.StatusOK, calendarContentType, out)
}

func objectPath(c echo.Context) string {
	return "calendars/" + c.Param("owner") + "/" + c.Param("calendar") + "/" + c.Param("object")
}
