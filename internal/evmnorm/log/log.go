// Package log wires the process-wide slog default to the charm logger.
package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Setup routes slog through l. Only the first call has an effect.
func Setup(l *charmlog.Logger, debug bool) {
	initOnce.Do(func() {
		if debug {
			l.SetLevel(charmlog.DebugLevel)
			l.SetReportCaller(true)
		}
		slog.SetDefault(slog.New(l))
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
