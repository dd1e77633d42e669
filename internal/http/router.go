package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

type RouterConfig struct {
	Scheduling *SchedulingHandler
	Calendars  *CalendarHandler
	Rooms      *RoomHandler
	// Users resolves X-Remote-User on room routes. Without it every caller is
	// treated as the bare id from the header.
	Users      UserLookup
	Logger     *slog.Logger
	Middleware []echo.MiddlewareFunc
}

func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = goJSONSerializer{}
	e.Validator = newRequestValidator()

	e.Use(RequestLogger(cfg.Logger))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			e.Use(mw)
		}
	}

	if cfg.Scheduling != nil {
		e.POST("/scheduling/messages", cfg.Scheduling.Deliver)
	}

	if cfg.Calendars != nil {
		objects := e.Group("/calendars/:owner/:calendar")
		objects.PUT("/:object", cfg.Calendars.Put)
		objects.GET("/:object", cfg.Calendars.Get)
	}

	if cfg.Rooms != nil {
		rooms := e.Group("/rooms/:id", IdentifyCaller(cfg.Users, cfg.Logger))
		rooms.GET("/bookings", cfg.Rooms.ListBookings)
		rooms.POST("/bookings/:uid/respond", cfg.Rooms.Respond)
	}

	return e
}
