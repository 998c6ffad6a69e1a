package session

import "sync"

// serialExecutor runs callbacks one at a time in submission order on its own
// goroutine. Submitting never blocks, so it is safe while holding locks.
type serialExecutor struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stop    chan struct{}
	stopped sync.Once
	idle    *sync.Cond
	running bool
	exited  bool
}

func newSerialExecutor() *serialExecutor {
	e := &serialExecutor{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	e.idle = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

func (e *serialExecutor) submit(fn func()) {
	e.mu.Lock()
	if e.exited {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *serialExecutor) loop() {
	for {
		stopping := false
		select {
		case <-e.wake:
		case <-e.stop:
			stopping = true
		}

		e.drain()

		if stopping {
			e.mu.Lock()
			e.exited = true
			e.queue = nil
			e.idle.Broadcast()
			e.mu.Unlock()
			return
		}
	}
}

func (e *serialExecutor) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.idle.Broadcast()
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.running = true
		e.mu.Unlock()

		fn()
	}
}

// flush blocks until everything submitted so far has run. It returns at
// once while a callback is running: that callback may be the caller, and
// whatever is queued behind it still runs before the executor exits.
func (e *serialExecutor) flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	for !e.exited && (e.running || len(e.queue) > 0) {
		e.idle.Wait()
	}
}

// close stops the executor once the queue is empty.
func (e *serialExecutor) close() {
	e.stopped.Do(func() { close(e.stop) })
}
