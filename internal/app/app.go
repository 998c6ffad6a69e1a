package app

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

	httpapi "github.com/talhabektas/smartdesk-sub000/internal/http"
	"github.com/talhabektas/smartdesk-sub000/internal/service"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the session daemon: the session layer, the control API
// and the housekeeping worker.
type Application struct {
	cfg    Config
	logger *slog.Logger

	components   *Components
	housekeeping *service.HousekeepingService // nil without a database

	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "deskd",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	components, err := Open(context.Background(), cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.components = components

	if components.DB != nil {
		app.housekeeping = service.NewHousekeepingService(
			components.DB,
			app.logger,
			cfg.HousekeepingInterval,
			cfg.InboxCapacity,
			cfg.NotificationRetention,
		)
	}

	if cfg.ControlToken == "" && !cfg.ControlOnLoopback() {
		app.logger.Warn("control API is reachable off-host without a control token", "addr", cfg.ControlAddr)
	}

	app.initHTTP()
	return app, nil
}

// Handler exposes the control API, mostly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeeping != nil {
		app.housekeeping.Start()
	}

	app.logger.Info("deskd starting", "addr", app.cfg.ControlAddr, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	app.autoConnect()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// autoConnect opens the realtime connection when a session was restored.
func (app *Application) autoConnect() {
	if app.cfg.WSURL == "" {
		app.logger.Info("realtime disabled, DESKD_WS_URL is not set")
		return
	}

	ctx := context.Background()
	token, err := app.components.Session.Tokens.AccessToken(ctx)
	if err != nil || token == "" {
		app.logger.Info("no stored session, waiting for login")
		return
	}
	if err := app.components.Session.Connect(ctx); err != nil {
		app.logger.Warn("initial realtime connect failed", "error", err)
	}
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down deskd...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeeping != nil {
		app.housekeeping.Stop()
	}

	if err := app.components.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("deskd stopped")
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	var db httpapi.Pinger
	if app.components.DB != nil {
		db = app.components.DB
	}

	router := httpapi.NewRouter(
		app.components.Session,
		app.components.Inbox,
		db,
		app.cfg.ControlToken,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.ControlAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
