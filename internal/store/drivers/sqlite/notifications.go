package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/talhabektas/smartdesk-sub000/internal/domain"
)

type notificationsRepo struct {
	q *queries
}

func (r *notificationsRepo) CreateNotification(ctx context.Context, n domain.Notification) error {
	payload := string(n.Payload)
	if payload == "" {
		payload = "null"
	}
	var readAt sql.NullTime
	if n.ReadAt != nil {
		readAt = sql.NullTime{Time: n.ReadAt.UTC(), Valid: true}
	}
	return r.q.CreateNotification(ctx, notificationRow{
		ID:          n.ID,
		Type:        n.Type,
		Destination: n.Destination,
		Payload:     payload,
		ReceivedAt:  n.ReceivedAt.UTC(),
		ReadAt:      readAt,
	})
}

func (r *notificationsRepo) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := r.q.ListNotifications(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Notification, len(rows))
	for i, row := range rows {
		out[i] = mapNotification(row)
	}
	return out, nil
}

func (r *notificationsRepo) CountUnread(ctx context.Context) (int, error) {
	return r.q.CountUnread(ctx)
}

func (r *notificationsRepo) MarkAllRead(ctx context.Context, at time.Time) (int64, error) {
	return r.q.MarkAllRead(ctx, at.UTC())
}

func (r *notificationsRepo) PruneNotifications(ctx context.Context, keep int) (int64, error) {
	return r.q.PruneNotifications(ctx, keep)
}

func (r *notificationsRepo) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.q.DeleteNotificationsBefore(ctx, cutoff.UTC())
}

func mapNotification(row notificationRow) domain.Notification {
	return domain.Notification{
		ID:          row.ID,
		Type:        row.Type,
		Destination: row.Destination,
		Payload:     json.RawMessage(row.Payload),
		ReceivedAt:  row.ReceivedAt,
		ReadAt:      mapNullTimePtr(row.ReadAt),
	}
}
