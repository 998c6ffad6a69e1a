package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"nhooyr.io/websocket"
)

// StompSubprotocol is the WebSocket subprotocol for STOMP 1.2.
const StompSubprotocol = "v12.stomp"

type StompConfig struct {
	// URL is the ws:// or wss:// endpoint of the broker.
	URL string

	// Host is sent as the STOMP host header (the virtual host). Defaults
	// to "/".
	Host string

	// Login and Passcode are optional broker credentials sent next to the
	// bearer token.
	Login    string
	Passcode string

	HeartBeat  time.Duration
	ReadLimit  int64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// StompTransport speaks STOMP 1.2 over a WebSocket.
type StompTransport struct {
	cfg StompConfig
	log *slog.Logger
}

var _ Transport = (*StompTransport)(nil)

func NewStompTransport(cfg StompConfig) (*StompTransport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: websocket url must be ws:// or wss://, got %q", ErrInvalidArgument, cfg.URL)
	}
	if cfg.Host == "" {
		cfg.Host = "/"
	}
	if cfg.HeartBeat == 0 {
		cfg.HeartBeat = 10 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StompTransport{cfg: cfg, log: cfg.Logger.With("component", "stomp")}, nil
}

func (t *StompTransport) Dial(ctx context.Context, opts DialOptions) (Conn, error) {
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	ws, _, err := websocket.Dial(ctx, t.cfg.URL, &websocket.DialOptions{
		HTTPClient:   t.cfg.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: []string{StompSubprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	ws.SetReadLimit(t.cfg.ReadLimit)

	// The net.Conn lives as long as the connection, not the dial context.
	netCtx, cancel := context.WithCancel(context.Background())
	sc := &stompConn{
		cancel: cancel,
		done:   make(chan struct{}),
		log:    t.log.With("identity", opts.Identity),
	}
	nc := &watchedConn{Conn: websocket.NetConn(netCtx, ws, websocket.MessageText), onErr: sc.fail}

	connOpts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(t.cfg.Host),
		stomp.ConnOpt.HeartBeat(t.cfg.HeartBeat, t.cfg.HeartBeat),
	}
	if opts.Token != "" {
		connOpts = append(connOpts, stomp.ConnOpt.Header("Authorization", "Bearer "+opts.Token))
	}
	if t.cfg.Login != "" {
		connOpts = append(connOpts, stomp.ConnOpt.Login(t.cfg.Login, t.cfg.Passcode))
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := stomp.Connect(nc, connOpts...)
		ch <- result{c, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			cancel()
			_ = ws.Close(websocket.StatusNormalClosure, "stomp connect failed")
			return nil, fmt.Errorf("stomp connect: %w", res.err)
		}
		sc.conn = res.conn
		return sc, nil
	case <-ctx.Done():
		cancel()
		_ = ws.Close(websocket.StatusNormalClosure, "dial cancelled")
		return nil, ctx.Err()
	}
}

// watchedConn reports the first read or write error of the underlying
// connection. go-stomp reads continuously, so a dropped socket surfaces here
// even when no subscription is active.
type watchedConn struct {
	net.Conn
	onErr func(error)
}

func (c *watchedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		c.onErr(err)
	}
	return n, err
}

func (c *watchedConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if err != nil {
		c.onErr(err)
	}
	return n, err
}

type stompConn struct {
	conn   *stomp.Conn
	cancel context.CancelFunc
	log    *slog.Logger

	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	err    error
	closed bool
}

func (c *stompConn) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		if !c.closed {
			c.err = err
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *stompConn) Subscribe(destination string, handler func(Message)) (Unsubscriber, error) {
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("stomp subscribe %s: %w", destination, err)
	}

	go func() {
		for msg := range sub.C {
			if msg.Err != nil {
				c.log.Warn("subscription error", "destination", destination, "err", msg.Err)
				c.fail(msg.Err)
				return
			}
			handler(Message{
				Destination:  msg.Destination,
				Subscription: sub.Id(),
				ContentType:  msg.ContentType,
				Header:       headerMap(msg.Header),
				Body:         msg.Body,
			})
		}
	}()
	return stompSub{sub}, nil
}

type stompSub struct{ sub *stomp.Subscription }

func (s stompSub) Unsubscribe() error {
	if !s.sub.Active() {
		return nil
	}
	return s.sub.Unsubscribe()
}

func (c *stompConn) Send(destination string, body []byte, headers map[string]string) error {
	contentType := "application/json"
	var opts []func(*frame.Frame) error
	for k, v := range headers {
		if k == frame.ContentType {
			contentType = v
			continue
		}
		opts = append(opts, stomp.SendOpt.Header(k, v))
	}
	return c.conn.Send(destination, contentType, body, opts...)
}

func (c *stompConn) Done() <-chan struct{} { return c.done }

func (c *stompConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *stompConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Disconnect()
	c.cancel()
	c.fail(nil)
	return err
}

func headerMap(h *frame.Header) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, h.Len())
	for i := 0; i < h.Len(); i++ {
		k, v := h.GetAt(i)
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
