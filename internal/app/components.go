package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talhabektas/smartdesk-sub000/internal/inbox"
	"github.com/talhabektas/smartdesk-sub000/internal/store"
	"github.com/talhabektas/smartdesk-sub000/internal/store/drivers/sqlite"
	"github.com/talhabektas/smartdesk-sub000/pkg/cryptox"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// sealSalt is fixed so a key file keeps opening the records it sealed.
var sealSalt = []byte("deskd/credentials/v1")

var errRealtimeDisabled = errors.New("realtime disabled: DESKD_WS_URL is not set")

// Components is the session layer with its storage. The daemon and the
// one-shot CLI commands build the same thing.
type Components struct {
	DB      store.Store // nil for MemoryDatabase
	Session *session.Session
	Inbox   *inbox.Inbox
	Logger  *slog.Logger
}

// Open builds the components and restores the persisted session.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Components{Logger: logger}

	var creds session.CredentialStore
	if cfg.DatabaseFile != MemoryDatabase {
		db, err := initDatabase(cfg.DatabaseFile, logger)
		if err != nil {
			return nil, err
		}
		c.DB = db

		sealer, err := initSealer(cfg)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		creds = store.NewCredentialStoreAdapter(db, sealer, nil)
	}

	transport, err := initTransport(cfg, logger)
	if err != nil {
		c.closeDB()
		return nil, err
	}

	sess, err := session.New(session.Config{
		APIBaseURL:           cfg.APIBaseURL,
		Store:                creds, // nil falls back to memory
		Transport:            transport,
		HTTPTimeout:          cfg.HTTPTimeout,
		RefreshWindow:        cfg.RefreshWindow,
		RefreshTimeout:       cfg.RefreshTimeout,
		OpaqueRefreshTokens:  cfg.OpaqueRefreshTokens,
		TOTPSecret:           cfg.TOTPSecret,
		ReconnectBase:        cfg.ReconnectBase,
		MaxReconnectAttempts: cfg.ReconnectMaxAttempts,
		Destinations:         cfg.Destinations,
		Boundary:             &headlessBoundary{log: logger},
		OnUnavailable: func(err error) {
			logger.Error("realtime unavailable, run connect to retry", "error", err)
		},
		Logger: logger,
	})
	if err != nil {
		c.closeDB()
		return nil, err
	}
	c.Session = sess

	if err := sess.Init(ctx); err != nil {
		sess.Shutdown()
		c.closeDB()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	ib := inbox.Config{Capacity: cfg.InboxCapacity, Logger: logger}
	if c.DB != nil {
		ib.Store = c.DB.Notifications()
	}
	c.Inbox = inbox.New(ib)
	if err := c.Inbox.Restore(ctx); err != nil {
		logger.Warn("failed to restore notifications", "error", err)
	}
	c.Inbox.Attach(sess.Events)

	return c, nil
}

// Close stops the session and closes the database.
func (c *Components) Close() error {
	c.Inbox.Detach()
	c.Session.Shutdown()
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *Components) closeDB() {
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

// initDatabase opens the sqlite file and applies migrations
func initDatabase(file string, logger *slog.Logger) (*sqlite.Store, error) {
	db, err := sqlite.NewStore(sqlite.DSN(file))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	logger.Debug("database migrations applied", "file", file)
	return db, nil
}

func initSealer(cfg Config) (*cryptox.Sealer, error) {
	if cfg.MasterKey == "" && cfg.MasterKeyPath == "" {
		// No key configured at all: tokens are stored in plaintext.
		return nil, nil
	}
	material, err := cryptox.LoadKeyMaterial(cfg.MasterKey, cfg.MasterKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load master key: %w", err)
	}
	return cryptox.NewSealer(material, sealSalt)
}

func initTransport(cfg Config, logger *slog.Logger) (session.Transport, error) {
	if cfg.WSURL == "" {
		return disabledTransport{}, nil
	}
	return session.NewStompTransport(session.StompConfig{
		URL:      cfg.WSURL,
		Host:     cfg.StompHost,
		Login:    cfg.StompLogin,
		Passcode: cfg.StompPasscode,
		Logger:   logger,
	})
}

// disabledTransport stands in when no realtime endpoint is configured.
type disabledTransport struct{}

func (disabledTransport) Dial(context.Context, session.DialOptions) (session.Conn, error) {
	return nil, errRealtimeDisabled
}

// headlessBoundary is the login boundary of a process without a login
// screen: a forced logout is logged and the next login comes through the
// control API or the CLI.
type headlessBoundary struct {
	log *slog.Logger
}

func (b *headlessBoundary) AtLogin() bool { return false }

func (b *headlessBoundary) RedirectToLogin(cause error) {
	b.log.Warn("session ended, login required", "cause", cause)
}
