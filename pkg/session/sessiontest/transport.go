// Package sessiontest provides an in-memory realtime transport for tests
// of code built on the session layer.
package sessiontest

import (
	"context"
	"errors"
	"sync"

	"github.com/talhabektas/smartdesk-sub000/pkg/session"
)

// ErrDial is returned by a Transport told to fail.
var ErrDial = errors.New("sessiontest: dial refused")

// Transport hands out in-memory Conns and can be told to fail dials.
type Transport struct {
	mu      sync.Mutex
	failN   int
	failAll bool
	dials   []session.DialOptions
	conns   []*Conn
}

var _ session.Transport = (*Transport)(nil)

func (t *Transport) Dial(_ context.Context, opts session.DialOptions) (session.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dials = append(t.dials, opts)
	if t.failAll {
		return nil, ErrDial
	}
	if t.failN > 0 {
		t.failN--
		return nil, ErrDial
	}
	c := &Conn{done: make(chan struct{})}
	t.conns = append(t.conns, c)
	return c, nil
}

// FailNext makes the next n dials fail.
func (t *Transport) FailNext(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failN = n
}

// SetFailAll makes every dial fail until reset.
func (t *Transport) SetFailAll(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failAll = v
}

func (t *Transport) DialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

func (t *Transport) LastDial() session.DialOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[len(t.dials)-1]
}

// Conn returns the i-th successful connection; negative i counts from the end.
func (t *Transport) Conn(i int) *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 {
		i = len(t.conns) + i
	}
	return t.conns[i]
}

type SentMessage struct {
	Destination string
	Body        string
	Headers     map[string]string
}

// Conn is an in-memory session.Conn.
type Conn struct {
	mu     sync.Mutex
	subs   []*sub
	order  []string
	sent   []SentMessage
	closed bool

	once sync.Once
	done chan struct{}
	err  error
}

type sub struct {
	conn    *Conn
	dest    string
	handler func(session.Message)
}

func (c *Conn) Subscribe(dest string, h func(session.Message)) (session.Unsubscriber, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &sub{conn: c, dest: dest, handler: h}
	c.subs = append(c.subs, s)
	c.order = append(c.order, dest)
	return s, nil
}

func (s *sub) Unsubscribe() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.subs {
		if cur == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *Conn) Send(dest string, body []byte, headers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, SentMessage{Destination: dest, Body: string(body), Headers: headers})
	return nil
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

// Drop simulates the broker going away.
func (c *Conn) Drop(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

// Publish delivers body to every subscriber of dest.
func (c *Conn) Publish(dest, body string) {
	c.mu.Lock()
	var hs []func(session.Message)
	for _, s := range c.subs {
		if s.dest == dest {
			hs = append(hs, s.handler)
		}
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(session.Message{Destination: dest, Body: []byte(body)})
	}
}

// Subscribed lists every destination ever subscribed, in order.
func (c *Conn) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// ActiveCount counts live subscriptions on dest.
func (c *Conn) ActiveCount(dest string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.subs {
		if s.dest == dest {
			n++
		}
	}
	return n
}

func (c *Conn) SentMessages() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
