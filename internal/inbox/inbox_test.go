package inbox_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/talhabektas/smartdesk-sub000/internal/inbox"
	"github.com/talhabektas/smartdesk-sub000/internal/store/drivers/sqlite"
	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
	"github.com/talhabektas/smartdesk-sub000/pkg/slogx"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func frame(eventType string, n int) []byte {
	return []byte(`{"type":"` + eventType + `","data":{"n":` + string(rune('0'+n)) + `}}`)
}

func TestInboxRecordsRelevantEvents(t *testing.T) {
	t.Parallel()

	d := session.NewDispatcher(slogx.Discard())
	box := inbox.New(inbox.Config{Capacity: 3, Clock: clock.Fake(epoch), Logger: slogx.Discard()})
	box.Attach(d)

	require.NoError(t, d.DispatchFrame("/topic/user/7/notifications", frame(session.EventNotification, 1)))
	require.NoError(t, d.DispatchFrame("/topic/global", frame(session.EventBroadcast, 2)))
	require.NoError(t, d.DispatchFrame("/topic/user/7/tickets", frame(session.EventTicketUpdate, 3)))

	list := box.List()
	require.Len(t, list, 2, "broadcasts are not inbox material")
	require.Equal(t, session.EventTicketUpdate, list[0].Type, "newest first")
	require.Equal(t, "/topic/user/7/notifications", list[1].Destination)
	require.Equal(t, 2, box.Unread())

	// Ring keeps the newest Capacity entries.
	for n := 4; n <= 7; n++ {
		require.NoError(t, d.DispatchFrame("/topic/user/7/notifications", frame(session.EventNotification, n)))
	}
	list = box.List()
	require.Len(t, list, 3)
	require.JSONEq(t, `{"n":7}`, string(list[0].Data))
	require.JSONEq(t, `{"n":5}`, string(list[2].Data))

	changed, err := box.MarkAllRead(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, changed)
	require.Zero(t, box.Unread())

	box.Detach()
	require.Zero(t, d.Listeners(session.EventNotification))
	require.NoError(t, d.DispatchFrame("/topic/user/7/notifications", frame(session.EventNotification, 8)))
	require.Len(t, box.List(), 3)
}

func TestInboxPersistsAndRestores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "deskd.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	fake := clock.Fake(epoch)
	d := session.NewDispatcher(slogx.Discard())
	box := inbox.New(inbox.Config{Capacity: 10, Store: db.Notifications(), Clock: fake, Logger: slogx.Discard()})
	box.Attach(d)

	for n := 1; n <= 3; n++ {
		fake.Advance(time.Second)
		require.NoError(t, d.DispatchFrame("/topic/user/7/notifications", frame(session.EventNotification, n)))
	}
	_, err = box.MarkAllRead(ctx)
	require.NoError(t, err)
	fake.Advance(time.Second)
	require.NoError(t, d.DispatchFrame("/topic/user/7/tickets", frame(session.EventTicketUpdate, 4)))

	restored := inbox.New(inbox.Config{Capacity: 2, Store: db.Notifications(), Clock: fake, Logger: slogx.Discard()})
	require.NoError(t, restored.Restore(ctx))

	list := restored.List()
	require.Len(t, list, 2)
	require.Equal(t, session.EventTicketUpdate, list[0].Type)
	require.False(t, list[0].Read)
	require.True(t, list[1].Read)
	require.Equal(t, 1, restored.Unread())

	var data struct{ N int }
	require.NoError(t, json.Unmarshal(list[1].Data, &data))
	require.Equal(t, 3, data.N)
}
