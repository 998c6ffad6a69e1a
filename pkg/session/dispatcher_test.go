package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

func TestDispatcherOrderAndDuplicates(t *testing.T) {
	t.Parallel()
	d := session.NewDispatcher(nil)

	var calls []string
	record := func(tag string) session.HandlerFunc {
		return func(session.Event) { calls = append(calls, tag) }
	}

	shared := record("shared")
	d.AddEventListener("NOTIFICATION", record("first"))
	r1 := d.AddEventListener("NOTIFICATION", shared)
	d.AddEventListener("NOTIFICATION", shared)
	d.AddEventListener("NOTIFICATION", record("last"))
	d.AddEventListener("OTHER", record("other"))

	d.Dispatch("NOTIFICATION", session.Event{})
	require.Equal(t, []string{"first", "shared", "shared", "last"}, calls)

	calls = nil
	require.True(t, d.RemoveEventListener(r1))
	d.Dispatch("NOTIFICATION", session.Event{})
	require.Equal(t, []string{"first", "shared", "last"}, calls)

	require.False(t, d.RemoveEventListener(r1))
	require.False(t, d.RemoveEventListener(nil))
	require.Equal(t, 3, d.Listeners("NOTIFICATION"))
}

func TestDispatcherIsolatesPanics(t *testing.T) {
	t.Parallel()
	d := session.NewDispatcher(nil)

	var reached []int
	d.AddEventListener("X", func(session.Event) { reached = append(reached, 1) })
	d.AddEventListener("X", func(session.Event) { panic("boom") })
	d.AddEventListener("X", func(session.Event) { reached = append(reached, 3) })

	require.NotPanics(t, func() { d.Dispatch("X", session.Event{}) })
	require.Equal(t, []int{1, 3}, reached)
}

func TestDispatcherWildcard(t *testing.T) {
	t.Parallel()
	d := session.NewDispatcher(nil)

	var calls []string
	d.AddEventListener(session.AnyEvent, func(e session.Event) { calls = append(calls, "any:"+e.Type) })
	d.AddEventListener("A", func(e session.Event) { calls = append(calls, "a") })

	d.Dispatch("A", session.Event{})
	d.Dispatch("B", session.Event{})
	require.Equal(t, []string{"a", "any:A", "any:B"}, calls)
}

func TestDispatcherListenersMayUnregisterThemselves(t *testing.T) {
	t.Parallel()
	d := session.NewDispatcher(nil)

	count := 0
	var reg *session.Registration
	reg = d.AddEventListener("ONCE", func(session.Event) {
		count++
		d.RemoveEventListener(reg)
	})

	d.Dispatch("ONCE", session.Event{})
	d.Dispatch("ONCE", session.Event{})
	require.Equal(t, 1, count)
}

func TestDispatchFrame(t *testing.T) {
	t.Parallel()
	d := session.NewDispatcher(nil)

	var got []session.Event
	d.AddEventListener(session.EventTicketUpdate, func(e session.Event) { got = append(got, e) })

	require.NoError(t, d.DispatchFrame("/topic/user/42/tickets",
		[]byte(`{"type":"TICKET_UPDATE","data":{"id":9,"status":"OPEN"},"timestamp":"2026-03-01T09:00:00Z"}`)))
	require.NoError(t, d.DispatchFrame("/topic/user/42/tickets",
		[]byte(`{"type":"TICKET_UPDATE","data":{"id":9,"status":"CLOSED"},"timestamp":1772355600000}`)))

	require.Len(t, got, 2)
	require.Equal(t, "/topic/user/42/tickets", got[0].Destination)
	require.True(t, got[0].Timestamp.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	require.True(t, got[1].Timestamp.Equal(time.UnixMilli(1772355600000)))

	var ticket struct {
		ID     int    `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, got[1].Decode(&ticket))
	require.Equal(t, "CLOSED", ticket.Status)

	t.Run("malformed frames are rejected", func(t *testing.T) {
		for _, body := range []string{`nope`, `{"data":{}}`, `{"type":""}`} {
			require.ErrorIs(t, d.DispatchFrame("/topic/global", []byte(body)), session.ErrMalformedFrame, body)
		}
		require.Len(t, got, 2)
	})

	t.Run("unknown timestamps are zero", func(t *testing.T) {
		ev, err := session.ParseEvent("/topic/global", []byte(`{"type":"BROADCAST","timestamp":"yesterday"}`))
		require.NoError(t, err)
		require.True(t, ev.Timestamp.IsZero())
		require.Error(t, ev.Decode(&ticket))
	})
}
