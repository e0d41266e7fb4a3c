package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher is anything that can perform one dispatch invocation.
type Dispatcher interface {
	Run(ctx context.Context, now time.Time) (*Summary, error)
}

var _ Dispatcher = (*Job)(nil)

// Runner invokes a Dispatcher on a fixed interval inside the server process.
//
// Each tick runs in its own goroutine. A tick that fires while the previous
// run is still in progress is skipped, so one process never overlaps itself.
// Separate processes (or an HTTP trigger) can still overlap with it.
type Runner struct {
	job      Dispatcher
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	running sync.Mutex
	wg      sync.WaitGroup
}

func NewRunner(job Dispatcher, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		job:      job,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start ticks until ctx is cancelled, then waits for an in-flight run to
// finish before returning.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("reminder runner started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			r.logger.Info("reminder runner stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick starts a run unless one is already in progress. It reports whether a
// run was started.
func (r *Runner) tick(ctx context.Context) bool {
	if !r.running.TryLock() {
		r.logger.Warn("previous reminder run still in progress, skipping tick")
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Unlock()

		if _, err := r.job.Run(ctx, r.now()); err != nil {
			r.logger.Error("reminder run failed", "error", err)
		}
	}()
	return true
}
