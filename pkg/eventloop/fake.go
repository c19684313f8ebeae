package eventloop

import (
	"sort"
	"time"
)

// Fake is a manual Scheduler for tests. Nothing fires until Advance is called,
// and callbacks run synchronously on the caller's goroutine.
type Fake struct {
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	f        *Fake
	seq      int
	due      time.Duration
	interval time.Duration
	fn       func()
	stopped  bool
}

func (t *fakeTimer) Stop() {
	t.stopped = true
}

// NewFake returns a Fake at time zero.
func NewFake() *Fake {
	return &Fake{}
}

// Every implements Scheduler.
func (f *Fake) Every(d time.Duration, fn func()) Timer {
	return f.add(d, d, fn)
}

// After implements Scheduler.
func (f *Fake) After(d time.Duration, fn func()) Timer {
	return f.add(d, 0, fn)
}

func (f *Fake) add(d, interval time.Duration, fn func()) *fakeTimer {
	f.seq++
	t := &fakeTimer{f: f, seq: f.seq, due: f.now + d, interval: interval, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline order.
func (f *Fake) Advance(d time.Duration) {
	target := f.now + d
	for {
		t := f.next(target)
		if t == nil {
			break
		}
		f.now = t.due
		if t.interval > 0 {
			t.due += t.interval
		} else {
			t.stopped = true
		}
		t.fn()
	}
	f.now = target
	f.compact()
}

// Pending reports how many live timers remain.
func (f *Fake) Pending() int {
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) next(limit time.Duration) *fakeTimer {
	var live []*fakeTimer
	for _, t := range f.timers {
		if !t.stopped && t.due <= limit {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due == live[j].due {
			return live[i].seq < live[j].seq
		}
		return live[i].due < live[j].due
	})
	return live[0]
}

func (f *Fake) compact() {
	kept := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	f.timers = kept
}
