package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/event-seat-inventory/internal/config"
	"github.com/iliyamo/event-seat-inventory/internal/expiry"
	"github.com/iliyamo/event-seat-inventory/internal/handler"
	"github.com/iliyamo/event-seat-inventory/internal/middleware"
	"github.com/iliyamo/event-seat-inventory/internal/queue"
	"github.com/iliyamo/event-seat-inventory/internal/repository"
	"github.com/iliyamo/event-seat-inventory/internal/router"
	"github.com/iliyamo/event-seat-inventory/internal/service"
	"github.com/iliyamo/event-seat-inventory/internal/store"
)

func main() {
	cfg := config.Load()

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	st := store.New(rdb)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Redis.ConfigureNotifications {
		if err := st.EnableExpiryNotifications(ctx); err != nil {
			// Managed Redis often forbids CONFIG SET; the server may already
			// be configured with notify-keyspace-events=Ex.
			log.Printf("redis: could not enable expiry notifications: %v", err)
		}
	}

	repo := repository.NewEventRepo(st, repository.WithHoldTTL(cfg.HoldTTL))

	var (
		svcPublisher service.EventPublisher
		notifierOpts = []expiry.Option{expiry.WithDB(cfg.Redis.DB)}
	)
	if cfg.Queue.Enabled {
		pub := service.NewAMQPPublisher(cfg.Queue.URL, cfg.Queue.Name)
		defer pub.Close()
		svcPublisher = pub
		notifierOpts = append(notifierOpts, expiry.WithPublisher(pub))
		log.Printf("queue: publishing seat events to %q", cfg.Queue.Name)
	}
	if cfg.Queue.ConsumerEnabled {
		go queue.StartSeatEventConsumer(ctx, cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.LogDir)
	}

	notifier := expiry.NewNotifier(st, repo, notifierOpts...)
	go notifier.Run(ctx)

	svc := service.NewEventService(repo, svcPublisher)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency.Round(time.Microsecond))
			return nil
		},
	}))

	router.RegisterRoutes(e, st)
	router.RegisterEvents(e, handler.NewEventHandler(svc), cfg.APIPrefix,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, hold ttl=%s)", addr, cfg.Env, cfg.HoldTTL)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- e.Start(addr)
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
		stop()
	case <-ctx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}
