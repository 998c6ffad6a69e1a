package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"
)

// AnyEvent registers a listener for every event type. Wildcard listeners
// run after the typed ones.
const AnyEvent = "*"

// Event types the helpdesk backend publishes.
const (
	EventNotification = "NOTIFICATION"
	EventTicketUpdate = "TICKET_UPDATE"
	EventChatMessage  = "CHAT_MESSAGE"
	EventTyping       = "TYPING"
	EventBroadcast    = "BROADCAST"
)

// Event is one inbound realtime event.
type Event struct {
	Type        string
	Data        json.RawMessage
	Timestamp   time.Time
	Destination string
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: event %s has no data", ErrMalformedFrame, e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

// HandlerFunc receives one dispatched event.
type HandlerFunc func(Event)

// Registration identifies one listener. Adding the same function twice
// yields two registrations; each removes exactly itself.
type Registration struct {
	eventType string
	handler   HandlerFunc
}

// EventType returns the type the registration listens to.
func (r *Registration) EventType() string { return r.eventType }

// Dispatcher fans events out to listeners by type. It holds no connection
// state, so listeners can be registered before any connection exists and
// survive reconnects.
type Dispatcher struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]*Registration
}

// NewDispatcher returns an empty dispatcher. A nil logger means slog.Default.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		log:      logger.With("component", "dispatcher"),
		handlers: make(map[string][]*Registration),
	}
}

// AddEventListener appends h to the listeners of eventType.
func (d *Dispatcher) AddEventListener(eventType string, h HandlerFunc) *Registration {
	r := &Registration{eventType: eventType, handler: h}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], r)
	return r
}

// RemoveEventListener removes r. It reports false when r was not
// registered.
func (d *Dispatcher) RemoveEventListener(r *Registration) bool {
	if r == nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.handlers[r.eventType]
	for i, cur := range list {
		if cur != r {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(d.handlers, r.eventType)
		} else {
			d.handlers[r.eventType] = list
		}
		return true
	}
	return false
}

// Listeners returns the number of listeners registered for eventType.
func (d *Dispatcher) Listeners(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType])
}

// Dispatch invokes every listener of eventType in registration order, then
// the wildcard listeners. A panicking listener is logged and skipped.
func (d *Dispatcher) Dispatch(eventType string, ev Event) {
	ev.Type = eventType

	d.mu.RLock()
	typed := d.handlers[eventType]
	var wildcard []*Registration
	if eventType != AnyEvent {
		wildcard = d.handlers[AnyEvent]
	}
	d.mu.RUnlock()

	// Slices are never mutated in place, so the snapshot is stable.
	for _, r := range typed {
		d.invoke(r, ev)
	}
	for _, r := range wildcard {
		d.invoke(r, ev)
	}
}

func (d *Dispatcher) invoke(r *Registration, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("event listener panicked",
				"type", ev.Type,
				"panic", p,
				"stack", string(debug.Stack()),
			)
		}
	}()
	r.handler(ev)
}

// wireEvent is the JSON shape of an inbound frame body.
type wireEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseEvent decodes a frame body received on destination.
func ParseEvent(destination string, body []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if w.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return Event{
		Type:        w.Type,
		Data:        w.Data,
		Timestamp:   parseTimestamp(w.Timestamp),
		Destination: destination,
	}, nil
}

// DispatchFrame parses body and dispatches it by its type.
func (d *Dispatcher) DispatchFrame(destination string, body []byte) error {
	ev, err := ParseEvent(destination, body)
	if err != nil {
		d.log.Warn("dropping malformed frame", "destination", destination, "err", err)
		return err
	}
	d.Dispatch(ev.Type, ev)
	return nil
}

// parseTimestamp accepts RFC 3339 strings and epoch milliseconds. Anything
// else yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || isNull(raw) {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		// Local date-times without a zone, as LocalDateTime serialises.
		if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
		return time.Time{}
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if ms, err := n.Int64(); err == nil {
			return time.UnixMilli(ms)
		}
		if f, err := n.Float64(); err == nil {
			return time.UnixMilli(int64(f))
		}
	}
	return time.Time{}
}
