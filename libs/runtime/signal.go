package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownStep is one named teardown action run after the signal context is done.
type ShutdownStep struct {
	Name string
	Fn   func(context.Context) error
}

// Shutdown runs steps in order, sharing a single deadline. Failures are logged, not returned,
// so later steps still get a chance to release their resources.
func Shutdown(logger *slog.Logger, timeout time.Duration, steps ...ShutdownStep) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, step := range steps {
		if step.Fn == nil {
			continue
		}
		if err := step.Fn(ctx); err != nil {
			logger.Error("shutdown step failed", "step", step.Name, "err", err)
		}
	}
}
