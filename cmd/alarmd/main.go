// Command alarmd runs the alarm scheduling daemon: it persists alarm
// definitions in SQLite, keeps an in-process timer armed for every enabled
// alarm, and serves the HTTP API used to manage them. A ringing alarm is
// dismissed by plugging in a charger, detected through the power supply
// sysfs tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/alarmd/internal/application"
	"github.com/example/alarmd/internal/config"
	"github.com/example/alarmd/internal/http"
	"github.com/example/alarmd/internal/occurrence"
	"github.com/example/alarmd/internal/power"
	"github.com/example/alarmd/internal/ringing"
	"github.com/example/alarmd/internal/timer"

	sqlitestore "github.com/example/alarmd/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		"http_port", cfg.HTTPPort,
		"timezone", cfg.Timezone,
		"poll_interval", cfg.PollInterval)

	store, err := sqlitestore.Open(cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", "dsn", cfg.SQLiteDSN)

	calc := occurrence.NewCalculator(cfg.Location())
	retry := timer.RetryConfig{
		MaxRetries:    cfg.ArmMaxRetries,
		InitialDelay:  cfg.ArmRetryDelay,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
	}

	// The registry fires into the service and the service arms the registry,
	// so the registry's callback closes over a variable assigned below.
	var service *application.AlarmService
	registry := timer.NewRegistry(func(id int64, at time.Time) {
		service.HandleFired(context.Background(), id, at)
	}, logger, time.Now)

	monitor := power.NewMonitor(power.NewSysfsProbe(cfg.PowerSupplyRoot), cfg.PollInterval, logger)

	coordinator := &serviceCoordinator{}
	controller := ringing.NewController(
		&logPresenter{logger: logger},
		ringing.NewWakeLatch(),
		monitor,
		coordinator,
		logger,
		time.Now,
	)

	service = application.NewAlarmService(store, registry, controller, calc, retry, logger, time.Now)
	coordinator.service = service

	armed, err := service.RearmAll(ctx)
	if err != nil {
		// RearmAll arms what it can; the rest is retried on the next save.
		logger.Error("boot recovery completed with errors", "armed", armed, "error", err)
	} else {
		logger.Info("boot recovery completed", "armed", armed)
	}

	router := http.NewRouter(http.RouterConfig{
		Alarms:  http.NewAlarmHandler(service, logger),
		Ringing: http.NewRingingHandler(controller, logger),
		Events:  http.NewEventsHandler(store.Changes(), logger),
		Metrics: promhttp.Handler(),
		Health:  store.Ping,
		Middleware: []func(nethttp.Handler) nethttp.Handler{
			http.RequestLogger(logger),
		},
	})

	// WriteTimeout stays zero so the event stream endpoint can hold its
	// connection open indefinitely.
	server := &nethttp.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}

		registry.Close()
		controller.Shutdown()
	}()

	logger.Info("http server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	<-shutdownDone
	logger.Info("daemon stopped")
	return nil
}

// serviceCoordinator forwards session-end callbacks to the alarm service.
// The controller is constructed before the service exists, so the target is
// assigned after wiring completes and before any alarm can fire.
type serviceCoordinator struct {
	service *application.AlarmService
}

func (c *serviceCoordinator) AlarmDismissed(ctx context.Context, alarmID int64, oneTime bool) error {
	return c.service.AlarmDismissed(ctx, alarmID, oneTime)
}

func (c *serviceCoordinator) ArmSnooze(ctx context.Context, alarmID int64, at time.Time) error {
	return c.service.ArmSnooze(ctx, alarmID, at)
}

// logPresenter announces alert state through the structured log. A deployment
// with real audio hardware would swap in a presenter that drives the sound
// and vibration devices.
type logPresenter struct {
	logger *slog.Logger
}

func (p *logPresenter) StartAlert(ctx context.Context, req ringing.Request) error {
	p.logger.Info("alarm alert started",
		"alarm_id", req.AlarmID,
		"sound", req.Sound,
		"vibration", req.Vibration,
		"label", req.Label)
	return nil
}

func (p *logPresenter) StopAlert(ctx context.Context, alarmID int64) error {
	p.logger.Info("alarm alert stopped", "alarm_id", alarmID)
	return nil
}
