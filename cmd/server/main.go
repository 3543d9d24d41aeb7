/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the timesheet server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Configure structured logging
  3. Open the store (SQLite, or memory for ":memory:")
  4. Start the notification dispatcher (log sink, plus Slack when configured)
  5. Create the service, API handler, router and reminder scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -port    HTTP server port, overrides the configuration
  -db      SQLite database path, overrides the configuration
           Use ":memory:" for the in-memory store

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler
  2. Stop accepting new connections and wait for active requests
  3. Drain queued notifications
  4. Close the database

EXAMPLES:
  ./server -config=./config.yaml
  ./server -db=":memory:" -port=3000
  TIMESHEET_SLACK_BOT_TOKEN=xoxb-... TIMESHEET_SLACK_REVIEW_CHANNEL=C0123 ./server

SEE ALSO:
  - config/config.go: Configuration sources and environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/williambergmann/timesheet/api"
	"github.com/williambergmann/timesheet/config"
	"github.com/williambergmann/timesheet/notify"
	"github.com/williambergmann/timesheet/store/memory"
	"github.com/williambergmann/timesheet/store/sqlite"
	"github.com/williambergmann/timesheet/timesheet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path, or :memory: (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// Store
	store, closeStore, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer closeStore()

	// Notifications
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.SlackEnabled() {
		sinks = append(sinks, notify.NewSlack(cfg.Slack.Token, store, notify.SlackOption{
			ReviewChannelID: cfg.Slack.ReviewChannel,
		}))
		logger.Info("slack notifications enabled", "review_channel", cfg.Slack.ReviewChannel)
	}
	dispatcher := notify.NewDispatcher(logger, cfg.Notify.QueueSize, sinks...)
	dispatcher.Start()
	defer dispatcher.Close()

	// Service
	payPeriods, err := cfg.PayPeriods()
	if err != nil {
		return err
	}
	svc := timesheet.NewService(store, timesheet.UserRoles{Users: store}, dispatcher, logger)
	svc.PayPeriods = payPeriods

	// HTTP
	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.Server.CORSOrigins})

	scheduler := api.NewReminderScheduler(svc, logger)
	scheduler.Enabled = cfg.Reminders.Enabled
	scheduler.CheckInterval = cfg.Reminders.Interval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func openStore(path string) (timesheet.TxStore, func(), error) {
	if path == ":memory:" {
		return memory.New(), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	s, err := sqlite.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, func() { s.Close() }, nil
}
