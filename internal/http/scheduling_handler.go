package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/itip"
)

type schedulingEngine interface {
	ProcessSchedulingMessage(ctx context.Context, msg *itip.Message) (application.Result, error)
}

// SchedulingHandler receives iTIP messages routed to room principals.
type SchedulingHandler struct {
	engine    schedulingEngine
	responder responder
	logger    *slog.Logger
}

func NewSchedulingHandler(engine schedulingEngine, logger *slog.Logger) *SchedulingHandler {
	base := defaultLogger(logger)
	return &SchedulingHandler{engine: engine, responder: newResponder(base), logger: base}
}

func (h *SchedulingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SchedulingHandler", operation, attrs...)
}

// Deliver processes one scheduling message.
func (h *SchedulingHandler) Deliver(c echo.Context) error {
	if h == nil || h.engine == nil {
		return c.NoContent(http.StatusInternalServerError)
	}
	ctx := c.Request().Context()

	var req schedulingMessageRequest
	if err := c.Bind(&req); err != nil {
		h.log(ctx, "Deliver", "error_kind", "bad_request").ErrorContext(ctx, "failed to decode scheduling message", "error", err)
		return h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
	}
	if err := c.Validate(&req); err != nil {
		return h.responder.handleServiceError(c, err)
	}

	cal, err := itip.Parse([]byte(req.Calendar))
	if err != nil {
		return h.responder.handleServiceError(c, &application.ValidationError{
			FieldErrors: map[string]string{"calendar": "is not a valid iCalendar object"},
		})
	}

	msg := &itip.Message{
		Method:    itip.ParseMethod(req.Method),
		Sender:    strings.TrimSpace(req.Sender),
		Recipient: strings.TrimSpace(req.Recipient),
		Calendar:  cal,
	}
	logger := h.log(ctx, "Deliver", "method", string(msg.Method), "recipient", msg.Recipient)

	result, err := h.engine.ProcessSchedulingMessage(ctx, msg)
	if err != nil {
		logger.ErrorContext(ctx, "scheduling message failed", "error", err, "error_kind", application.ErrorKind(err))
		return h.responder.handleServiceError(c, err)
	}

	resp := schedulingMessageResponse{
		Handled:    result.Handled,
		ResultCode: string(result.Code),
		PartStat:   string(result.PartStat),
	}
	if result.Handled {
		resp.Status = result.Code.Description()
		data, err := itip.Encode(msg.Calendar)
		if err != nil {
			logger.ErrorContext(ctx, "failed to encode rewritten payload", "error", err)
			return h.responder.handleServiceError(c, err)
		}
		resp.Calendar = string(data)
	}

	logger.With("handled", result.Handled, "result_code", resp.ResultCode).InfoContext(ctx, "scheduling message processed")
	return c.JSON(http.StatusOK, resp)
}

type schedulingMessageRequest struct {
	Method    string `json:"method" validate:"required"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient" validate:"required"`
	Calendar  string `json:"calendar" validate:"required"`
}

type schedulingMessageResponse struct {
	Handled    bool   `json:"handled"`
	ResultCode string `json:"result_code,omitempty"`
	Status     string `json:"status,omitempty"`
	PartStat   string `json:"partstat,omitempty"`
	Calendar   string `json:"calendar,omitempty"`
}
