package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

type recorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *recorder) handle(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) at(i int) session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[i]
}

func TestBaselineTopicsRoundTrip(t *testing.T) {
	wsURL := setupBroker(t)
	ctx := context.Background()

	listener := newSession(t, wsURL)
	var got recorder
	listener.Events.AddEventListener(session.EventNotification, got.handle)
	require.NoError(t, listener.Connect(ctx))
	require.Equal(t, session.StateConnected, listener.Realtime.State())

	sender := newSession(t, wsURL)
	require.NoError(t, sender.Connect(ctx))

	err := sender.Realtime.Send(ctx, "/topic/user.42.notifications", map[string]any{
		"type": session.EventNotification,
		"data": map[string]any{"title": "ticket assigned"},
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return got.len() == 1 }, 10*time.Second, 50*time.Millisecond)
	ev := got.at(0)
	require.Equal(t, "/topic/user.42.notifications", ev.Destination)
	require.JSONEq(t, `{"title":"ticket assigned"}`, string(ev.Data))
}

func TestSubscriptionSurvivesReconnect(t *testing.T) {
	wsURL := setupBroker(t)
	ctx := context.Background()

	s := newSession(t, wsURL)
	frames := make(chan session.Message, 4)
	_, err := s.Realtime.Subscribe("/topic/ticket.7", func(m session.Message) { frames <- m })
	require.NoError(t, err)

	require.NoError(t, s.Connect(ctx))
	s.Realtime.Disconnect()
	require.Equal(t, session.StateDisconnected, s.Realtime.State())

	// Dropped, not queued.
	err = s.Realtime.Send(ctx, "/topic/ticket.7", `{"n":0}`, nil)
	require.ErrorIs(t, err, session.ErrNotConnected)

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Realtime.Send(ctx, "/topic/ticket.7", `{"n":1}`, nil))

	select {
	case m := <-frames:
		require.JSONEq(t, `{"n":1}`, string(m.Body))
	case <-time.After(10 * time.Second):
		t.Fatal("no frame after reconnect")
	}
}
