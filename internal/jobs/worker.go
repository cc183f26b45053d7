package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper performs one pass of periodic work.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Worker runs a Sweeper on a fixed interval until stopped.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	failures int
}

func NewWorker(sweeper Sweeper, interval time.Duration) *Worker {
	return &Worker{
		sweeper:  sweeper,
		interval: interval,
		logger:   slog.Default().With("component", "worker"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start blocks, sweeping every interval, until ctx ends or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("worker started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", "reason", ctx.Err())
			return
		case <-w.stop:
			w.logger.Info("worker stopped", "reason", "stop requested")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	started := time.Now()
	err := w.sweeper.Sweep(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failures++
		w.logger.Error("sweep failed", "error", err, "consecutive_failures", w.failures)
		return
	}
	if w.failures > 0 {
		w.logger.Info("sweep recovered", "after_failures", w.failures)
	}
	w.failures = 0
	w.logger.Debug("sweep done", "duration", time.Since(started))
}

// Failures is the number of sweeps that have failed in a row.
func (w *Worker) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// Stop ends the loop and waits for an in-flight sweep. Safe to call more
// than once; it must only be called after Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
