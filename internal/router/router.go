package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-inventory/internal/handler"
)

// RegisterRoutes registers the health check at /healthz.  It sits outside
// the API prefix and any rate limiting so probes always reach it.
func RegisterRoutes(e *echo.Echo, p handler.Pinger) {
	e.GET("/healthz", handler.Health(p))
}

// RegisterEvents registers the event and seat endpoints under prefix
// (empty for the root).  mw is applied to every route in the group, e.g.
// the rate limiter.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, prefix string, mw ...echo.MiddlewareFunc) {
	g := e.Group(prefix+"/events", mw...)
	g.POST("", h.CreateEvent)
	g.GET("/:eventId/available-seats", h.ListAvailableSeats)
	g.GET("/:eventId/seats/:seatId", h.GetSeat)
	g.POST("/:eventId/seats/:seatId/hold", h.HoldSeat)
	g.POST("/:eventId/seats/:seatId/reserve", h.ReserveSeat)
	g.POST("/:eventId/seats/:seatId/refresh", h.RefreshHold)
}
