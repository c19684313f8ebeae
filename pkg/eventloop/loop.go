// Package eventloop provides the single-threaded cooperative loop that every
// reconciliation step runs on, plus timers whose callbacks are marshalled onto
// that loop.
//
// Everything the engine owns (adapter, controller, row model) is touched only
// from the loop goroutine. Background producers (poll timers, tmux control
// readers, socket handlers) never call into the engine directly; they Post.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Run when the loop was stopped before or while running.
var ErrStopped = errors.New("event loop stopped")

// PostFunc hands fn to the owning loop for execution. Implementations must
// preserve the order of calls made from a single goroutine.
type PostFunc func(fn func())

// Timer is a scheduled callback. Stop is idempotent and, when called from the
// loop goroutine, guarantees the callback never runs again.
type Timer interface {
	Stop()
}

// Scheduler creates loop-bound timers.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
	After(d time.Duration, fn func()) Timer
}

// Loop is a goroutine-backed FIFO of closures. Run executes them one at a
// time until the context is cancelled or Stop is called.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
	clock    *Clock
}

// New creates a loop with the given queue capacity.
func New(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 64
	}
	l := &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
	l.clock = NewClock(l.Post)
	return l
}

// Post enqueues fn. It blocks while the queue is full and drops fn once the
// loop has stopped. Do not Post from the loop goroutine with a full queue.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case <-l.done:
	case l.queue <- fn:
	}
}

// Run drains the queue until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return ErrStopped
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop ends Run. Pending closures are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Done is closed once the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Every schedules fn on the loop at a fixed interval.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	return l.clock.Every(d, fn)
}

// After schedules fn on the loop once, after d.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	return l.clock.After(d, fn)
}
