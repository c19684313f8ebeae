package logging

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// RecoverAndLog is deferred at the top of callbacks that must never take the
// embedding program down. A recovered panic is logged with its stack.
func RecoverAndLog(log *slog.Logger, context string) {
	if r := recover(); r != nil {
		if log == nil {
			log = Logger()
		}
		log.Error("panic_recovered",
			slog.String("context", context),
			slog.String("panic", fmt.Sprint(r)),
			slog.String("stack", string(debug.Stack())),
		)
	}
}
