package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/app"
	"github.com/Freeeeeet/tutor_scheduler/internal/cache"
	"github.com/Freeeeeet/tutor_scheduler/internal/config"
	"github.com/Freeeeeet/tutor_scheduler/internal/controller/rest"
	"github.com/Freeeeeet/tutor_scheduler/internal/notify"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"go.uber.org/zap"
)

const serviceName = "tutor_scheduler"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Sugar().Infow("Starting tutor scheduler",
		"environment", cfg.Environment,
		"storage", cfg.StorageDriver,
		"timezone", cfg.Timezone)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Shutdown finished")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownTracing, err := app.SetupTracing(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var (
		store  service.Store
		health func(context.Context) error
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	default:
		pool, err := app.NewPostgresPool(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("Connected to PostgreSQL")

		if cfg.MigrateOnStart {
			if err := migrate(ctx, pool, logger); err != nil {
				return err
			}
		}
		store = repository.NewStore(pool)
		health = pool.Ping
	}

	var slotCache service.SlotCache
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		slotCache = cache.NewSlotCache(client, cfg.SlotCacheTTL)
		logger.Info("Slot cache enabled", zap.String("redis", cfg.RedisAddr))
	}

	notifiers := []service.Notifier{notify.NewLogNotifier(logger)}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.Location())
		if err != nil {
			return err
		}
		notifiers = append(notifiers, tg)
		logger.Info("Telegram notifications enabled", zap.Int64("chat_id", cfg.TelegramChatID))
	}

	engine := service.EngineConfig{
		DefaultSlotMinutes: cfg.SlotMinutes,
		MaxRangeDays:       cfg.MaxRangeDays,
		Location:           cfg.Location(),
	}

	publisher := service.NewPublisher(notify.NewMulti(notifiers...), store, engine, logger)
	reservations := service.NewReservationService(store, slotCache, publisher, engine, logger)
	handler := rest.NewHandler(rest.Services{
		Slots:        service.NewSlotGenerator(store, slotCache, engine, logger),
		Reservations: reservations,
		Appointments: service.NewLifecycleService(store, reservations, slotCache, publisher, engine, logger),
		Availability: service.NewAvailabilityService(store, slotCache, engine, logger),
	}, rest.Options{
		JWTSecret:    cfg.JWTSecret,
		Timeout:      cfg.HTTPTimeout,
		Location:     cfg.Location(),
		CalendarDays: cfg.MaxRangeDays,
		Health:       health,
	}, logger)

	relay, err := app.NewRelay(publisher, cfg.RelaySchedule, cfg.RelayBatch, time.Minute, logger)
	if err != nil {
		return err
	}
	relay.Start(ctx)
	defer relay.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:       time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server", zap.Duration("timeout", cfg.ShutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
