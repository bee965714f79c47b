// Package tasks runs fire-and-forget background work with panic isolation.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recap/internal/logging"
)

// Runner executes named background tasks. A panicking or failing task never
// affects its caller or other tasks; failures are logged and dropped.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a runner. A zero timeout leaves tasks unbounded.
func NewRunner(logger *slog.Logger, timeout time.Duration) *Runner {
	return &Runner{
		logger:  logging.NewComponentLogger(logger, "tasks"),
		timeout: timeout,
	}
}

// Go runs fn in the background. The context passed to fn is detached from the
// caller so callers returning early cannot cancel in-flight work.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				r.logger.Error("background task panicked",
					logging.String("task", name),
					logging.Error(fmt.Errorf("panic: %v", recovered)))
			}
		}()

		ctx := context.Background()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		if err := fn(ctx); err != nil {
			r.logger.Error("background task failed",
				logging.String("task", name),
				logging.Error(err))
			return
		}
		r.logger.Debug("background task finished", logging.String("task", name))
	}()
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
