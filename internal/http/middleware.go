package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/logging"
)

// RemoteUserHeader carries the caller's user id as asserted by the fronting proxy.
const RemoteUserHeader = "X-Remote-User"

// UserLookup resolves a caller id to a directory user.
type UserLookup interface {
	LookupUser(ctx context.Context, id string) (application.User, bool, error)
}

// RequestLogger attaches a request scoped logger to the request context and
// logs the start and completion of every request.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", req.Method,
				"path", req.URL.Path,
			)

			ctx := logging.ContextWithLogger(req.Context(), logger)
			c.SetRequest(req.WithContext(ctx))
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.InfoContext(ctx, "request completed",
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}

// IdentifyCaller resolves the X-Remote-User header into an application
// principal. Requests without the header proceed as an anonymous principal;
// ids unknown to the directory keep their id without admin rights.
func IdentifyCaller(users UserLookup, logger *slog.Logger) echo.MiddlewareFunc {
	responder := newResponder(logger)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := strings.TrimSpace(req.Header.Get(RemoteUserHeader))
			principal := application.Principal{UserID: id}
			if id != "" && users != nil {
				user, ok, err := users.LookupUser(req.Context(), id)
				if err != nil {
					responder.loggerFor(c).ErrorContext(req.Context(), "failed to look up caller", "user_id", id, "error", err)
					return c.JSON(http.StatusInternalServerError, errorResponse{Message: "failed to identify caller"})
				}
				if ok {
					principal.IsAdmin = user.IsAdmin
				}
			}
			c.SetRequest(req.WithContext(ContextWithPrincipal(req.Context(), principal)))
			return next(c)
		}
	}
}
