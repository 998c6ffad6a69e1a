// Package clock is the injectable time source of the session layer. Both
// clocks come from clockwork. FakeClock wraps clockwork's fake so that
// Advance returns only after every due callback has run, which keeps
// reconnect backoff and token expiry tests free of sleeps.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock the session layer depends on.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer = clockwork.Timer

// Real returns the wall clock.
func Real() Clock { return clockwork.NewRealClock() }

// FakeClock only moves when Advance is called. It is safe for concurrent
// use. Callbacks must not call Advance.
type FakeClock struct {
	fake *clockwork.FakeClock

	mu      sync.Mutex
	armed   []*arming
	changed *sync.Cond
}

var _ Clock = (*FakeClock)(nil)

// arming is one scheduled run of a timer. done closes when the callback
// returns or the timer is stopped.
type arming struct {
	deadline time.Time
	done     chan struct{}
}

type fakeTimer struct {
	clock *FakeClock
	fn    func()
	inner clockwork.Timer
	cur   *arming
}

// Fake returns a FakeClock frozen at start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{fake: clockwork.NewFakeClockAt(start)}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time { return c.fake.Now() }

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c, fn: f}
	c.mu.Lock()
	c.armLocked(t, d)
	c.mu.Unlock()
	return t
}

func (c *FakeClock) armLocked(t *fakeTimer, d time.Duration) {
	a := &arming{deadline: c.fake.Now().Add(d), done: make(chan struct{})}
	t.cur = a
	c.armed = append(c.armed, a)
	c.changed.Broadcast()

	t.inner = c.fake.AfterFunc(d, func() {
		c.mu.Lock()
		c.removeLocked(a)
		c.mu.Unlock()

		defer close(a.done)
		t.fn()
	})
}

func (c *FakeClock) removeLocked(a *arming) {
	for i, x := range c.armed {
		if x == a {
			c.armed = append(c.armed[:i], c.armed[i+1:]...)
			c.changed.Broadcast()
			return
		}
	}
}

func (t *fakeTimer) Chan() <-chan time.Time {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.inner.Chan()
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(t)
}

func (c *FakeClock) stopLocked(t *fakeTimer) bool {
	if !t.inner.Stop() {
		return false
	}
	c.removeLocked(t.cur)
	close(t.cur.done)
	return true
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.stopLocked(t)
	c.armLocked(t, d)
	return active
}

// Advance moves time forward by d one deadline at a time. At each step the
// clock reads the timer's deadline and Advance waits for the callback to
// return, so a timer armed by a callback fires too when its own deadline
// falls inside the window.
func (c *FakeClock) Advance(d time.Duration) {
	target := c.fake.Now().Add(d)

	for {
		c.mu.Lock()
		now := c.fake.Now()

		var (
			next  time.Time
			found bool
		)
		for _, a := range c.armed {
			if !a.deadline.After(target) && (!found || a.deadline.Before(next)) {
				next, found = a.deadline, true
			}
		}
		if !found {
			if target.After(now) {
				c.fake.Advance(target.Sub(now))
			}
			c.mu.Unlock()
			return
		}

		var due []*arming
		for _, a := range c.armed {
			if !a.deadline.After(next) {
				due = append(due, a)
			}
		}
		if next.After(now) {
			c.fake.Advance(next.Sub(now))
		}
		c.mu.Unlock()

		for _, a := range due {
			<-a.done
		}
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.armed)
}

// WaitForTimers blocks until at least n timers are pending. Use it to avoid
// racing a goroutine that is about to schedule a timer.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.armed) < n {
		c.changed.Wait()
	}
}
