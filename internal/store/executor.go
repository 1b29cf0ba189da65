package store

import "sync"

// DirectExecutor runs callbacks inline on the calling goroutine. It is the
// default delivery mode for sessions.
type DirectExecutor struct{}

// Submit implements Executor.
func (DirectExecutor) Submit(f func()) { f() }

// SerialExecutor delivers callbacks one at a time, in submission order, on a
// single background goroutine. Callers that must not receive callbacks on
// the session's worker goroutine (e.g. anything touching UI state) hand one
// of these to the session.
type SerialExecutor struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
	closed   bool
}

// NewSerialExecutor constructs a ready SerialExecutor.
func NewSerialExecutor() *SerialExecutor {
	return &SerialExecutor{}
}

// Submit implements Executor. Tasks submitted after Close are dropped.
func (e *SerialExecutor) Submit(f func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, f)
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	go e.drain()
}

func (e *SerialExecutor) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 || e.closed {
			e.draining = false
			e.mu.Unlock()
			return
		}
		f := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		f()
	}
}

// Close stops delivery. Pending tasks are discarded.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.queue = nil
}
