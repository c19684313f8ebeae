package eventloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a Scheduler backed by real time. Ticks are produced on a helper
// goroutine and delivered through post, so callbacks always run on the loop
// that post feeds (a Loop, or a bubbletea program's Send).
type Clock struct {
	post PostFunc
}

// NewClock returns a Scheduler delivering through post.
func NewClock(post PostFunc) *Clock {
	return &Clock{post: post}
}

type clockTimer struct {
	stopped  atomic.Bool
	quit     chan struct{}
	stopOnce sync.Once
}

func (t *clockTimer) Stop() {
	t.stopped.Store(true)
	t.stopOnce.Do(func() { close(t.quit) })
}

// fire runs on the loop. The stopped check there is what makes Stop final:
// a tick already queued behind Stop sees the flag and does nothing.
func (t *clockTimer) fire(fn func()) {
	if t.stopped.Load() {
		return
	}
	fn()
}

// Every implements Scheduler.
func (c *Clock) Every(d time.Duration, fn func()) Timer {
	t := &clockTimer{quit: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-ticker.C:
				if t.stopped.Load() {
					return
				}
				c.post(func() { t.fire(fn) })
			}
		}
	}()
	return t
}

// After implements Scheduler.
func (c *Clock) After(d time.Duration, fn func()) Timer {
	t := &clockTimer{quit: make(chan struct{})}
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-t.quit:
		case <-timer.C:
			if !t.stopped.Load() {
				c.post(func() {
					t.fire(fn)
					t.stopped.Store(true)
				})
			}
		}
	}()
	return t
}
