// Package inbox keeps the notification center: the most recent
// NOTIFICATION and TICKET_UPDATE events with an unread counter, optionally
// mirrored into the store so it survives restarts.
package inbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/talhabektas/smartdesk-sub000/internal/domain"
	"github.com/talhabektas/smartdesk-sub000/internal/store"
	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/idx"
	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

const (
	DefaultCapacity = 100

	persistTimeout = 5 * time.Second
)

// Entry is one inbox item.
type Entry struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	Read        bool            `json:"read"`
}

type Config struct {
	Capacity int
	Store    store.Notifications // optional
	Clock    clock.Clock
	Logger   *slog.Logger
}

type Inbox struct {
	capacity int
	repo     store.Notifications
	clock    clock.Clock
	log      *slog.Logger

	mu      sync.RWMutex
	entries []Entry // oldest first, at most capacity
	regs    []*session.Registration
	events  *session.Dispatcher
}

func New(cfg Config) *Inbox {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Inbox{
		capacity: cfg.Capacity,
		repo:     cfg.Store,
		clock:    cfg.Clock,
		log:      cfg.Logger.With("component", "inbox"),
	}
}

// Capacity is the number of entries kept.
func (i *Inbox) Capacity() int { return i.capacity }

// Attach registers the inbox on d. Attaching again first detaches from the
// previous dispatcher.
func (i *Inbox) Attach(d *session.Dispatcher) {
	i.Detach()

	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = d
	i.regs = []*session.Registration{
		d.AddEventListener(session.EventNotification, i.record),
		d.AddEventListener(session.EventTicketUpdate, i.record),
	}
}

// Detach removes the inbox listeners.
func (i *Inbox) Detach() {
	i.mu.Lock()
	regs, d := i.regs, i.events
	i.regs, i.events = nil, nil
	i.mu.Unlock()

	for _, r := range regs {
		d.RemoveEventListener(r)
	}
}

// Restore loads the newest persisted entries, replacing what is in memory.
func (i *Inbox) Restore(ctx context.Context) error {
	if i.repo == nil {
		return nil
	}
	rows, err := i.repo.ListNotifications(ctx, i.capacity)
	if err != nil {
		return err
	}

	entries := make([]Entry, len(rows))
	for n, row := range rows {
		// rows are newest first
		entries[len(rows)-1-n] = Entry{
			ID:          row.ID,
			Type:        row.Type,
			Destination: row.Destination,
			Data:        row.Payload,
			ReceivedAt:  row.ReceivedAt,
			Read:        !row.Unread(),
		}
	}

	i.mu.Lock()
	i.entries = entries
	i.mu.Unlock()
	return nil
}

func (i *Inbox) record(ev session.Event) {
	at := ev.Timestamp
	if at.IsZero() {
		at = i.clock.Now()
	}
	e := Entry{
		ID:          idx.NewAt(at.UTC()).String(),
		Type:        ev.Type,
		Destination: ev.Destination,
		Data:        ev.Data,
		ReceivedAt:  at.UTC(),
	}

	i.mu.Lock()
	i.entries = append(i.entries, e)
	if over := len(i.entries) - i.capacity; over > 0 {
		i.entries = append(i.entries[:0:0], i.entries[over:]...)
	}
	i.mu.Unlock()

	if i.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := i.repo.CreateNotification(ctx, domain.Notification{
		ID:          e.ID,
		Type:        e.Type,
		Destination: e.Destination,
		Payload:     e.Data,
		ReceivedAt:  e.ReceivedAt,
	})
	if err != nil {
		i.log.Warn("persist notification", "type", e.Type, "err", err)
	}
}

// List returns the entries newest first.
func (i *Inbox) List() []Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]Entry, len(i.entries))
	for n, e := range i.entries {
		out[len(i.entries)-1-n] = e
	}
	return out
}

// Unread counts entries not yet marked read.
func (i *Inbox) Unread() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := 0
	for _, e := range i.entries {
		if !e.Read {
			n++
		}
	}
	return n
}

// MarkAllRead marks every entry read and returns how many changed.
func (i *Inbox) MarkAllRead(ctx context.Context) (int, error) {
	i.mu.Lock()
	changed := 0
	for n := range i.entries {
		if !i.entries[n].Read {
			i.entries[n].Read = true
			changed++
		}
	}
	i.mu.Unlock()

	if i.repo != nil {
		if _, err := i.repo.MarkAllRead(ctx, i.clock.Now()); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
