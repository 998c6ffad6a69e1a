package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/talhabektas/smartdesk-sub000/pkg/clock"
	"github.com/talhabektas/smartdesk-sub000/pkg/idx"
)

const (
	DefaultReconnectBase        = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultDialTimeout          = 15 * time.Second
	DefaultTypingInterval       = 2 * time.Second
)

// State is the realtime connection state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
)

// ConnectionConfig configures a ConnectionManager. Transport and Tokens are
// required.
type ConnectionConfig struct {
	Transport  Transport
	Tokens     TokenSource
	Dispatcher *Dispatcher
	Clock      clock.Clock
	Logger     *slog.Logger

	// BaseInterval scales the linear backoff: attempt n waits
	// BaseInterval*n.
	BaseInterval time.Duration

	// MaxAttempts is the number of consecutive failed dials after which
	// automatic reconnection stops.
	MaxAttempts int

	DialTimeout    time.Duration
	TypingInterval time.Duration
	Destinations   Destinations

	// OnUnavailable is called once per exhaustion cycle with
	// ErrConnectionUnavailable.
	OnUnavailable func(error)
}

// ConnectionManager owns the single realtime connection of a session.
//
//	DISCONNECTED -Connect-> CONNECTING -ok-> CONNECTED
//	CONNECTING -fail-> RECONNECTING -timer-> CONNECTING
//	CONNECTED -drop-> RECONNECTING
//	any -Disconnect-> DISCONNECTED
//
// Every successful connect subscribes the baseline topics and then replays
// the subscription registry before the state becomes CONNECTED, under the
// same lock, so a Subscribe issued after the transition is always ordered
// after the replay.
type ConnectionManager struct {
	transport     Transport
	tokens        TokenSource
	dispatcher    *Dispatcher
	clock         clock.Clock
	log           *slog.Logger
	base          time.Duration
	maxAttempts   int
	dialTimeout   time.Duration
	typingEvery   time.Duration
	dest          Destinations
	onUnavailable func(error)

	mu        sync.Mutex
	state     State
	identity  string
	conn      Conn
	baseline  []Unsubscriber
	subs      *registry
	gen       uint64
	attempt   int
	failures  int
	timer     clock.Timer
	observers []func(from, to State)
	typing    map[string]*rate.Limiter
	closed    bool

	// active is the generation whose handlers may deliver. Zero while no
	// connection is current.
	active atomic.Uint64

	events *serialExecutor
}

// NewConnectionManager returns a manager in StateDisconnected.
func NewConnectionManager(cfg ConnectionConfig) *ConnectionManager {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(cfg.Logger)
	}
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultReconnectBase
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = DefaultTypingInterval
	}

	return &ConnectionManager{
		transport:     cfg.Transport,
		tokens:        cfg.Tokens,
		dispatcher:    cfg.Dispatcher,
		clock:         cfg.Clock,
		log:           cfg.Logger.With("component", "realtime"),
		base:          cfg.BaseInterval,
		maxAttempts:   cfg.MaxAttempts,
		dialTimeout:   cfg.DialTimeout,
		typingEvery:   cfg.TypingInterval,
		dest:          cfg.Destinations.withDefaults(),
		onUnavailable: cfg.OnUnavailable,
		state:         StateDisconnected,
		subs:          newRegistry(),
		typing:        make(map[string]*rate.Limiter),
		events:        newSerialExecutor(),
	}
}

// OnStateChange registers an observer of state transitions. Observers run
// in transition order on a dedicated goroutine and may call back into the
// manager.
func (m *ConnectionManager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// State returns the current connection state.
func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the state is StateConnected.
func (m *ConnectionManager) IsConnected() bool {
	return m.State() == StateConnected
}

// Identity returns the identity of the last Connect.
func (m *ConnectionManager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Destinations returns the resolved destination templates.
func (m *ConnectionManager) Destinations() Destinations { return m.dest }

// Connect opens the connection for identity. It is a no-op while connecting
// or connected. The access token is fetched now; without one Connect fails
// and the state does not change. A failed dial is retried automatically and
// also returned.
func (m *ConnectionManager) Connect(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidArgument)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	token, err := m.tokens.ValidAccessToken(ctx)
	if err != nil {
		if IsAuthTerminal(err) {
			m.tokens.ForceLogout(ctx, err)
		}
		return fmt.Errorf("realtime connect: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked()
	m.identity = identity
	m.attempt = 0
	m.failures = 0
	m.gen++
	gen := m.gen
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	return m.dial(ctx, gen, identity, token)
}

// dial opens a connection for generation gen and settles the state.
func (m *ConnectionManager) dial(ctx context.Context, gen uint64, identity, token string) error {
	dctx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	defer cancel()

	conn, err := m.transport.Dial(dctx, DialOptions{Token: token, Identity: identity})

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed {
		// Disconnect ran while dialing.
		if conn != nil {
			go conn.Close()
		}
		return nil
	}

	if err == nil {
		err = m.activateLocked(gen, conn)
		if err != nil {
			m.closeLocked(conn)
		}
	}
	if err != nil {
		m.failures++
		m.log.Warn("realtime dial failed", "attempt", m.attempt, "failures", m.failures, "err", err)
		m.scheduleLocked()
		return fmt.Errorf("realtime dial: %w", err)
	}

	m.conn = conn
	m.attempt = 0
	m.failures = 0
	m.setStateLocked(StateConnected)
	go m.watch(gen, conn)
	return nil
}

// activateLocked subscribes the baseline topics and replays the registry
// against conn.
func (m *ConnectionManager) activateLocked(gen uint64, conn Conn) error {
	m.active.Store(gen)

	for _, dest := range m.dest.Baseline(m.identity) {
		u, err := conn.Subscribe(dest, m.gate(gen, m.deliverEvent))
		if err != nil {
			m.active.Store(0)
			m.baseline = nil
			return fmt.Errorf("subscribe %s: %w", dest, err)
		}
		m.baseline = append(m.baseline, u)
	}

	for _, s := range m.subs.all() {
		u, err := conn.Subscribe(s.Destination, m.gate(gen, s.Handler))
		if err != nil {
			m.active.Store(0)
			m.baseline = nil
			m.subs.detach()
			return fmt.Errorf("replay %s: %w", s.Destination, err)
		}
		s.live = u
	}

	m.log.Debug("subscriptions active", "baseline", len(m.baseline), "replayed", m.subs.len())
	return nil
}

// gate drops deliveries from connections that are no longer current.
func (m *ConnectionManager) gate(gen uint64, fn func(Message)) func(Message) {
	return func(msg Message) {
		if m.active.Load() != gen {
			return
		}
		fn(msg)
	}
}

func (m *ConnectionManager) deliverEvent(msg Message) {
	_ = m.dispatcher.DispatchFrame(msg.Destination, msg.Body)
}

// watch waits for conn to go away and starts reconnecting unless the drop
// was ours.
func (m *ConnectionManager) watch(gen uint64, conn Conn) {
	<-conn.Done()

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed {
		return
	}

	m.log.Warn("realtime connection dropped", "err", conn.Err())
	m.closeLocked(conn)
	m.conn = nil
	m.gen++
	m.scheduleLocked()
}

// scheduleLocked arms the next reconnect, or gives up once MaxAttempts
// consecutive dials have failed.
func (m *ConnectionManager) scheduleLocked() {
	if m.failures >= m.maxAttempts {
		m.log.Error("realtime reconnect attempts exhausted", "failures", m.failures)
		m.setStateLocked(StateDisconnected)
		m.attempt = 0
		m.failures = 0
		if fn := m.onUnavailable; fn != nil {
			m.events.submit(func() { fn(ErrConnectionUnavailable) })
		}
		return
	}

	m.attempt++
	delay := m.base * time.Duration(m.attempt)
	gen := m.gen
	m.setStateLocked(StateReconnecting)
	m.log.Info("realtime reconnect scheduled", "attempt", m.attempt, "delay", delay)
	m.timer = m.clock.AfterFunc(delay, func() { m.retry(gen) })
}

func (m *ConnectionManager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.closed || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	identity := m.identity
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	ctx := context.Background()
	token, err := m.tokens.ValidAccessToken(ctx)
	if err != nil {
		m.abandon(ctx, gen, err)
		return
	}
	_ = m.dial(ctx, gen, identity, token)
}

// abandon stops reconnecting because the session has no usable token.
func (m *ConnectionManager) abandon(ctx context.Context, gen uint64, err error) {
	m.log.Warn("realtime reconnect abandoned", "err", err)
	if IsAuthTerminal(err) {
		m.tokens.ForceLogout(ctx, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.gen++
	m.attempt = 0
	m.failures = 0
	m.setStateLocked(StateDisconnected)
}

// Disconnect tears everything down: pending reconnect, live subscriptions,
// the registry and the connection. Safe from any state.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopTimerLocked()
	m.attempt = 0
	m.failures = 0

	live := m.subs.detach()
	live = append(live, m.baseline...)
	m.baseline = nil
	m.subs.clear()
	m.active.Store(0)

	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if conn == nil {
		return
	}
	for _, u := range live {
		if err := u.Unsubscribe(); err != nil {
			m.log.Debug("unsubscribe on disconnect", "err", err)
		}
	}
	if err := conn.Close(); err != nil {
		m.log.Debug("closing realtime connection", "err", err)
	}
}

// Shutdown disconnects and rejects further use. Called from outside, it
// returns after queued state observers have run. An observer may call it
// too; the observers queued behind it then run after Shutdown returns.
func (m *ConnectionManager) Shutdown() {
	m.Disconnect()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.events.flush()
	m.events.close()
}

// Subscribe registers handler for destination. The subscription is active
// immediately when connected and is replayed after every reconnect.
func (m *ConnectionManager) Subscribe(destination string, handler func(Message)) (idx.ID, error) {
	if destination == "" || handler == nil {
		return idx.Zero, fmt.Errorf("%w: destination and handler are required", ErrInvalidArgument)
	}

	s := &Subscription{ID: idx.NewPrefixed("sub"), Destination: destination, Handler: handler}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return idx.Zero, ErrClosed
	}
	m.subs.add(s)

	if m.state == StateConnected && m.conn != nil {
		u, err := m.conn.Subscribe(destination, m.gate(m.active.Load(), handler))
		if err != nil {
			// Kept in the registry; the next connect replays it.
			m.log.Warn("live subscribe failed", "destination", destination, "err", err)
		} else {
			s.live = u
		}
	}
	return s.ID, nil
}

// Unsubscribe removes the subscription from the connection and the
// registry. Unknown ids are ignored.
func (m *ConnectionManager) Unsubscribe(id idx.ID) error {
	m.mu.Lock()
	s, ok := m.subs.remove(id)
	m.mu.Unlock()

	if !ok || s.live == nil {
		return nil
	}
	return s.live.Unsubscribe()
}

// Subscriptions lists the registry in registration order.
func (m *ConnectionManager) Subscriptions() []SubscriptionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs.info()
}

// Send publishes payload to destination. []byte, string and
// json.RawMessage are sent as is; anything else is JSON encoded. While not
// connected the message is dropped, not queued.
func (m *ConnectionManager) Send(ctx context.Context, destination string, payload any, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		m.log.Warn("dropping outbound message, not connected", "destination", destination, "state", state)
		return ErrNotConnected
	}
	if err := conn.Send(destination, body, headers); err != nil {
		return fmt.Errorf("send %s: %w", destination, err)
	}
	return nil
}

// ChatMessage is the outbound chat payload.
type ChatMessage struct {
	TicketID string `json:"ticketId"`
	Content  string `json:"content"`
	SenderID string `json:"senderId,omitempty"`
}

// SendChatMessage posts content to the chat of ticketID.
func (m *ConnectionManager) SendChatMessage(ctx context.Context, ticketID, content string) error {
	if ticketID == "" {
		return fmt.Errorf("%w: ticket id is required", ErrInvalidArgument)
	}
	return m.Send(ctx, m.dest.ChatSendTo(ticketID), ChatMessage{
		TicketID: ticketID,
		Content:  content,
		SenderID: m.Identity(),
	}, nil)
}

type typingPayload struct {
	TicketID string `json:"ticketId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// SendTyping publishes a typing indicator. "Started typing" is throttled
// per ticket; "stopped typing" always goes out.
func (m *ConnectionManager) SendTyping(ctx context.Context, ticketID string, typing bool) error {
	if ticketID == "" {
		return fmt.Errorf("%w: ticket id is required", ErrInvalidArgument)
	}
	if typing && !m.typingLimiter(ticketID).AllowN(m.clock.Now(), 1) {
		return nil
	}
	return m.Send(ctx, m.dest.ChatTypingTo(ticketID), typingPayload{
		TicketID: ticketID,
		UserID:   m.Identity(),
		IsTyping: typing,
	}, nil)
}

func (m *ConnectionManager) typingLimiter(ticketID string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	lim, ok := m.typing[ticketID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(m.typingEvery), 1)
		m.typing[ticketID] = lim
	}
	return lim
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func (m *ConnectionManager) setStateLocked(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.log.Info("realtime state", "from", from, "to", to, "attempt", m.attempt)

	if len(m.observers) == 0 {
		return
	}
	observers := append([]func(from, to State){}, m.observers...)
	m.events.submit(func() {
		for _, fn := range observers {
			fn(from, to)
		}
	})
}

func (m *ConnectionManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// closeLocked forgets conn's subscriptions and closes it off the lock.
func (m *ConnectionManager) closeLocked(conn Conn) {
	m.active.Store(0)
	m.subs.detach()
	m.baseline = nil
	go func() {
		if err := conn.Close(); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Debug("closing dropped connection", "err", err)
		}
	}()
}
