package handler // package handler contains the HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a dependency is reachable.  *store.Store
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is a health-check endpoint used by load balancers and monitoring
// systems.  It returns "ok" with 200 while Redis answers a PING within one
// second, and 503 otherwise; without Redis the service cannot serve a
// single seat request.
func Health(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "redis unavailable")
		}
		return c.String(http.StatusOK, "ok")
	}
}
