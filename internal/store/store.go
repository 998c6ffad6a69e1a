package store

import (
	"context"
	"errors"
	"time"

	"github.com/talhabektas/smartdesk-sub000/internal/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Sub-repositories hang off it as
// methods so a Tx can expose the same surface without allowing nested
// transactions.
type Store interface {
	Credentials() Credentials
	Notifications() Notifications

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Credentials interface {
	// GetCredentials returns the credential row, or ErrNotFound before the
	// first write.
	GetCredentials(ctx context.Context) (domain.Credentials, error)

	// SaveTokens writes both tokens in one statement and bumps the revision.
	SaveTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error

	// SaveUserProfile replaces the cached profile and bumps the revision.
	// An empty profile clears it.
	SaveUserProfile(ctx context.Context, profile string, at time.Time) error

	// ClearCredentials removes tokens and profile and bumps the revision.
	ClearCredentials(ctx context.Context, at time.Time) error
}

type Notifications interface {
	// CreateNotification inserts an inbox entry. The id is provided by the caller.
	CreateNotification(ctx context.Context, n domain.Notification) error

	// ListNotifications returns up to limit entries, newest first.
	ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error)

	// CountUnread returns how many entries have no read_at.
	CountUnread(ctx context.Context) (int, error)

	// MarkAllRead stamps read_at on every unread entry.
	MarkAllRead(ctx context.Context, at time.Time) (int64, error)

	// PruneNotifications keeps the newest keep entries.
	PruneNotifications(ctx context.Context, keep int) (int64, error)

	// DeleteNotificationsBefore removes entries received before cutoff.
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
