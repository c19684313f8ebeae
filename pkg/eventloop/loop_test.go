package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsPostedInOrder(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() { l.Stop() })
	<-done

	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want ascending order", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 closures run, got %d", len(got))
	}
}

func TestLoopRunReturnsContextError(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	// Post after stop must not block.
	l.Post(func() {})
}

func TestClockTimerStopIsFinalOnLoop(t *testing.T) {
	l := New(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	var mu sync.Mutex
	ticks := 0
	var timer Timer
	stopped := make(chan struct{})
	mu.Lock()
	timer = l.Every(time.Millisecond, func() {
		mu.Lock()
		ticks++
		n := ticks
		self := timer
		mu.Unlock()
		if n == 3 {
			self.Stop()
			self.Stop()
			close(stopped)
		}
	})
	mu.Unlock()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never reached 3 ticks")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if ticks != 3 {
		t.Fatalf("ticks after Stop = %d, want 3", ticks)
	}
}

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	f := NewFake()
	var got []string
	f.Every(500*time.Millisecond, func() { got = append(got, "poll") })
	f.After(50*time.Millisecond, func() { got = append(got, "repoll") })

	f.Advance(time.Second)

	want := []string{"repoll", "poll", "poll"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if f.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", f.Pending())
	}
}

func TestFakeStopPreventsFurtherTicks(t *testing.T) {
	f := NewFake()
	n := 0
	timer := f.Every(100*time.Millisecond, func() { n++ })
	f.Advance(250 * time.Millisecond)
	timer.Stop()
	timer.Stop()
	f.Advance(time.Second)
	if n != 2 {
		t.Fatalf("ticks = %d, want 2", n)
	}
}
