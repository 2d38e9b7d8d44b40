package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-inventory/internal/config"
)

func newLimitedEcho(t *testing.T, cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb))
	e.GET("/events/:eventId/available-seats", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := newLimitedEcho(t, cfg, rdb)

	rec := get(e, "/events/e1/available-seats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = get(e, "/events/e2/available-seats")
	assert.Equal(t, http.StatusOK, rec.Code, "same route pattern shares the bucket")
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = get(e, "/events/e1/available-seats")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	assert.True(t, mr.Exists("rl:ip:10.0.0.1:route:GET /events/:eventId/available-seats"))
}

func TestTokenBucket_FailsOpenWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute}
	e := newLimitedEcho(t, cfg, rdb)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(e, "/events/e1/available-seats").Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	e := newLimitedEcho(t, config.RateLimitConfig{Enabled: false}, nil)
	for i := 0; i < 3; i++ {
		rec := get(e, "/events/e1/available-seats")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/events/e1/seats/seat4/hold", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/events/:eventId/seats/:seatId/hold")
	c.SetParamNames("eventId", "seatId")
	c.SetParamValues("e1", "seat4")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:192.0.2.7", buildRateKey(cfg, c))
	cfg.KeyStrategy = "route"
	assert.Equal(t, "rl:route:POST /events/:eventId/seats/:seatId/hold", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip_seat"
	assert.Equal(t, "rl:ip:192.0.2.7:event:e1:seat:seat4", buildRateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:192.0.2.7:route:POST /events/:eventId/seats/:seatId/hold", buildRateKey(cfg, c))
}
