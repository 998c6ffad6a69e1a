package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type credentialsRow struct {
	AccessToken  string
	RefreshToken string
	UserProfile  sql.NullString
	Revision     int64
	UpdatedAt    time.Time
}

const getCredentials = `
SELECT access_token, refresh_token, user_profile, revision, updated_at
FROM credentials
WHERE id = 1`

func (q *queries) GetCredentials(ctx context.Context) (credentialsRow, error) {
	var row credentialsRow
	err := q.db.QueryRowContext(ctx, getCredentials).Scan(
		&row.AccessToken,
		&row.RefreshToken,
		&row.UserProfile,
		&row.Revision,
		&row.UpdatedAt,
	)
	return row, err
}

const saveTokens = `
INSERT INTO credentials (id, access_token, refresh_token, revision, updated_at)
VALUES (1, ?, ?, 1, ?)
ON CONFLICT (id) DO UPDATE SET
    access_token  = excluded.access_token,
    refresh_token = excluded.refresh_token,
    revision      = credentials.revision + 1,
    updated_at    = excluded.updated_at`

func (q *queries) SaveTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, saveTokens, accessToken, refreshToken, at)
	return err
}

const saveUserProfile = `
INSERT INTO credentials (id, user_profile, revision, updated_at)
VALUES (1, ?, 1, ?)
ON CONFLICT (id) DO UPDATE SET
    user_profile = excluded.user_profile,
    revision     = credentials.revision + 1,
    updated_at   = excluded.updated_at`

func (q *queries) SaveUserProfile(ctx context.Context, profile sql.NullString, at time.Time) error {
	_, err := q.db.ExecContext(ctx, saveUserProfile, profile, at)
	return err
}

const clearCredentials = `
INSERT INTO credentials (id, revision, updated_at)
VALUES (1, 1, ?)
ON CONFLICT (id) DO UPDATE SET
    access_token  = '',
    refresh_token = '',
    user_profile  = NULL,
    revision      = credentials.revision + 1,
    updated_at    = excluded.updated_at`

func (q *queries) ClearCredentials(ctx context.Context, at time.Time) error {
	_, err := q.db.ExecContext(ctx, clearCredentials, at)
	return err
}

type notificationRow struct {
	ID          string
	Type        string
	Destination string
	Payload     string
	ReceivedAt  time.Time
	ReadAt      sql.NullTime
}

const createNotification = `
INSERT INTO notifications (id, type, destination, payload, received_at, read_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *queries) CreateNotification(ctx context.Context, row notificationRow) error {
	_, err := q.db.ExecContext(ctx, createNotification,
		row.ID, row.Type, row.Destination, row.Payload, row.ReceivedAt, row.ReadAt)
	return err
}

const listNotifications = `
SELECT id, type, destination, payload, received_at, read_at
FROM notifications
ORDER BY received_at DESC, id DESC
LIMIT ?`

func (q *queries) ListNotifications(ctx context.Context, limit int) ([]notificationRow, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notificationRow
	for rows.Next() {
		var row notificationRow
		if err := rows.Scan(
			&row.ID,
			&row.Type,
			&row.Destination,
			&row.Payload,
			&row.ReceivedAt,
			&row.ReadAt,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

const countUnread = `SELECT COUNT(*) FROM notifications WHERE read_at IS NULL`

func (q *queries) CountUnread(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countUnread).Scan(&n)
	return n, err
}

const markAllRead = `UPDATE notifications SET read_at = ? WHERE read_at IS NULL`

func (q *queries) MarkAllRead(ctx context.Context, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markAllRead, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const pruneNotifications = `
DELETE FROM notifications
WHERE id NOT IN (
    SELECT id FROM notifications
    ORDER BY received_at DESC, id DESC
    LIMIT ?
)`

func (q *queries) PruneNotifications(ctx context.Context, keep int) (int64, error) {
	res, err := q.db.ExecContext(ctx, pruneNotifications, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteNotificationsBefore = `DELETE FROM notifications WHERE received_at < ?`

func (q *queries) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteNotificationsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
