// Package perf records operation timings to the debug log.
package perf

import (
	"log/slog"
	"os"
	"time"

	"github.com/b/tabsync/pkg/logging"
)

// Set TABSYNC_PERF=1 to enable timing records
var enabled = os.Getenv("TABSYNC_PERF") == "1"

var perfLog = logging.ForComponent(logging.CompPerf)

// Timer tracks elapsed time for a named operation
type Timer struct {
	name  string
	start time.Time
}

// Start begins timing an operation
func Start(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop ends timing and logs the result
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if enabled {
		perfLog.Debug("timing",
			slog.String("op", t.name),
			slog.Duration("elapsed", elapsed),
		)
	}
	return elapsed
}

// Track times fn.
func Track(name string, fn func()) time.Duration {
	t := Start(name)
	fn()
	return t.Stop()
}
