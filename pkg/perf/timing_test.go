package perf

import (
	"testing"
	"time"
)

func TestTrackMeasuresCall(t *testing.T) {
	ran := false
	d := Track("test.sleep", func() {
		ran = true
		time.Sleep(5 * time.Millisecond)
	})
	if !ran {
		t.Fatal("Track did not call fn")
	}
	if d < 5*time.Millisecond {
		t.Errorf("Track() = %v, want >= 5ms", d)
	}
}

func TestTimerStopIsMonotonic(t *testing.T) {
	timer := Start("test.noop")
	first := timer.Stop()
	second := timer.Stop()
	if second < first {
		t.Errorf("second Stop() = %v < first %v", second, first)
	}
}
