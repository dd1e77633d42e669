// Command roomschedd runs the room scheduling reconciliation service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/availability"
	"github.com/example/room-scheduler/internal/config"
	"github.com/example/room-scheduler/internal/directory"
	httptransport "github.com/example/room-scheduler/internal/http"
	"github.com/example/room-scheduler/internal/logging"
	"github.com/example/room-scheduler/internal/notify"
	"github.com/example/room-scheduler/internal/permission"
	"github.com/example/room-scheduler/internal/persistence/sqlite"
	"github.com/example/room-scheduler/internal/recurrence"
	"github.com/example/room-scheduler/internal/scheduler"
	"github.com/example/room-scheduler/internal/secrets"
)

func main() {
	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = logging.New(os.Stdout, cfg.LogLevel)

	service, err := newService(ctx, cfg, serviceOptions{Logger: logger})
	if err != nil {
		logger.Error("failed to start service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := service.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           service.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("room scheduler listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

type serviceOptions struct {
	Logger    *slog.Logger
	Transport notify.Transport
	Now       func() time.Time
	// KeyParams overrides the key derivation cost, mainly for tests.
	KeyParams *secrets.KeyParams
}

type service struct {
	storage *sqlite.Storage
	engine  *application.Engine
	router  *echo.Echo
}

func (s *service) Close() error {
	return s.storage.Close()
}

// newService opens storage, seeds the directory and wires the engine behind
// the HTTP router.
func newService(ctx context.Context, cfg config.Config, opts serviceOptions) (*service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	defaultLocation, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load default timezone: %w", err)
	}

	var box *secrets.Box
	if opts.KeyParams != nil {
		box, err = secrets.NewBoxWithParams(cfg.SecretKey, *opts.KeyParams)
	} else {
		box, err = secrets.NewBox(cfg.SecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("derive secret key: %w", err)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	evaluator := availability.NewEvaluator(defaultLocation)
	rooms := application.NewDirectory(application.NewStoreRooms(storage), application.NewStoreUsers(storage))
	permissions := permission.NewStore(storage, storage)

	mailer := notify.NewMailer(notify.Options{
		Default: notify.Relay{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			Encryption: cfg.SMTP.Encryption,
			From:       cfg.SMTP.From,
		},
		Secrets:   box,
		Transport: opts.Transport,
		Location:  evaluator.Location,
		Now:       now,
		Logger:    logger,
	})

	engine := application.NewEngineWithLogger(application.EngineDeps{
		Rooms:        rooms,
		Identities:   rooms,
		Users:        rooms,
		Authorizer:   permission.NewResolver(permissions, permissions),
		Availability: evaluator,
		Horizon:      recurrence.NewHorizonEstimator(now),
		Bookings:     scheduler.NewDetector(storage, logger),
		Calendars:    storage,
		Notifier:     mailer,
		Ledger:       application.NewDecisionLedger(cfg.DecisionCacheSize, cfg.DecisionTTL),
	}, now, logger)

	publisher := application.NewAvailabilityPublisher(storage, evaluator.Location, now, logger)
	if cfg.SeedFile != "" {
		file, err := directory.LoadFile(cfg.SeedFile)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
		seeder := directory.NewSeeder(directory.SeederOptions{
			Users:           storage,
			Groups:          storage,
			Rooms:           storage,
			Sealer:          box,
			Publisher:       publisher,
			DefaultTimezone: cfg.DefaultTimezone,
			Logger:          logger,
		})
		if _, err := seeder.Seed(ctx, file); err != nil {
			_ = storage.Close()
			return nil, err
		}
	}

	reconciler := application.NewReconcilerWithLogger(engine, application.NewLocationMatcher(rooms), now, logger)
	bookings := application.NewBookingServiceWithLogger(engine, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Scheduling: httptransport.NewSchedulingHandler(engine, logger),
		Calendars:  httptransport.NewCalendarHandler(reconciler, logger),
		Rooms:      httptransport.NewRoomHandler(bookings, logger),
		Users:      rooms,
		Logger:     logger,
	})

	return &service{storage: storage, engine: engine, router: router}, nil
}
