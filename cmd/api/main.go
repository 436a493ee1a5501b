package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/http/handlers"
	"github.com/diagnosis/streetink-bookings/internal/mailer"
	"github.com/diagnosis/streetink-bookings/internal/notify"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/internal/repo/memstore"
	"github.com/diagnosis/streetink-bookings/internal/repo/postgres"
	"github.com/diagnosis/streetink-bookings/internal/service"
	"github.com/diagnosis/streetink-bookings/pkg/config"
	"github.com/diagnosis/streetink-bookings/pkg/database"
	"github.com/diagnosis/streetink-bookings/pkg/events"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
	mw "github.com/diagnosis/streetink-bookings/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		logger.Error("API exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	bus, err := openBus(cfg.NATS)
	if err != nil {
		return err
	}
	defer bus.Close()

	idem, closeIdem, err := idempotencyStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeIdem()

	transport, err := mailer.New(cfg.Email)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	renderer, err := notify.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	dispatcher := notify.NewDispatcher(renderer, transport, cfg.Notify.SendTimeout)

	inline := cfg.Notify.Mode != "async"
	if !inline {
		worker := notify.NewWorker(store, dispatcher, cfg.Notify.SendTimeout+5*time.Second)
		if err := worker.Start(bus, cfg.Notify.QueueGroup); err != nil {
			return err
		}
	}

	lifecycle := service.NewLifecycle(store, bus, cfg.Booking.Location())
	bookings := service.NewBookingService(store, service.NewScheduler(), lifecycle, dispatcher, service.BookingOptions{
		OpTimeout:    cfg.Booking.OpTimeout,
		AutoConfirm:  cfg.Booking.AutoConfirm,
		NotifyInline: inline,
	})
	clients := service.NewClientService(store, lifecycle, dispatcher)
	authSvc := service.NewAuthService(store.Artists(), cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	analyzer := service.NewActivityAnalyzer(store, bus, cfg.Activity.Concurrency)

	if cfg.Auth.SeedUsername != "" && cfg.Auth.SeedPassword != "" {
		seed := domain.TattooArtist{Username: cfg.Auth.SeedUsername, FirstName: cfg.Auth.SeedUsername, Email: cfg.Auth.SeedEmail}
		if _, err := authSvc.SeedArtist(ctx, seed, cfg.Auth.SeedPassword); err != nil {
			return fmt.Errorf("seed artist: %w", err)
		}
	}

	job := service.NewActivityJob(analyzer, cfg.Activity.Schedule, cfg.Activity.ThresholdYears)
	if err := job.Start(); err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		JWTSecret:    cfg.Auth.JWTSecret,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Ping:         store.Ping,
		Counters:     &mw.Counters{},
		LoginLimiter: mw.RateLimitByIP(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		Auth:         handlers.NewAuthHandler(authSvc),
		Bookings:     handlers.NewBookingHandler(bookings, mw.IdempotencyMiddleware(idem, cfg.Redis.IdempotencyTTL)),
		Clients:      handlers.NewClientHandler(clients, analyzer, cfg.Activity.ThresholdYears),
		Account:      handlers.NewAccountHandler(notify.NewEmailOwnership(store.Artists())),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting API", "port", cfg.Server.Port, "store", cfg.Database.Driver, "notify_mode", cfg.Notify.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		job.Stop(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repo.Store, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		return memstore.New(), nil
	case "postgres", "":
		pool, err := database.Connect(ctx, cfg.URL, database.Options{
			MinConns:    int32(cfg.MinConns),
			MaxConns:    int32(cfg.MaxConns),
			MaxLifetime: cfg.MaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
}

func openBus(cfg config.NATSConfig) (events.EventBus, error) {
	if cfg.URL == "" {
		logger.Info("NATS_URL not set, using in-process event bus")
		return events.NewLocalBus(true), nil
	}
	bus, err := events.NewNATSEventBus(cfg.URL, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return bus, nil
}

func idempotencyStore(ctx context.Context, cfg config.RedisConfig) (mw.IdempotencyStore, func(), error) {
	if cfg.URL == "" {
		return mw.NewMemoryIdempotencyStore(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return mw.NewRedisIdempotencyStore(client), func() { _ = client.Close() }, nil
}
