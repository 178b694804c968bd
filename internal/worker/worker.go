// Package worker runs the scheduled and event-driven scan loop.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
	"github.com/scopeworks/kbcore/internal/core/ports/driving"
)

// Config holds configuration for the scan worker.
type Config struct {
	// Interval between scheduled scans
	Interval time.Duration

	// Watcher, when non-nil, provides upload events that trigger an
	// immediate scan instead of waiting for the next interval
	Watcher driven.DocumentStoreWatcher

	Logger *slog.Logger
}

// Worker triggers scans on a fixed interval and, when a document store
// watcher is configured, immediately after uploads. Triggers that land
// while a scan is running are dropped: the running scan will pick up the
// same files anyway.
type Worker struct {
	scans    driving.ScanService
	interval time.Duration
	watcher  driven.DocumentStoreWatcher
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scan worker.
func New(scans driving.ScanService, cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	return &Worker{
		scans:    scans,
		interval: interval,
		watcher:  cfg.Watcher,
		logger:   logger.With(slog.String("component", "scan_worker")),
	}
}

// Start begins the scan loop. It runs until Stop is called or ctx is
// cancelled. Idempotent: a second Start while running is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("scan worker starting", slog.Duration("interval", w.interval))

	events := make(chan string, 64)
	watchCtx, cancelWatch := context.WithCancel(ctx)

	if w.watcher != nil {
		go func() {
			if err := w.watcher.Watch(watchCtx, events); err != nil {
				w.logger.Error("document store watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		defer close(w.doneCh)
		defer cancelWatch()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Initial scan on startup picks up anything uploaded while the
		// service was down.
		w.trigger(ctx, "startup")

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("scan worker stopped", slog.String("reason", "context cancelled"))
				return
			case <-w.stopCh:
				w.logger.Info("scan worker stopped")
				return
			case <-ticker.C:
				w.trigger(ctx, "interval")
			case path := <-events:
				w.logger.Info("upload detected", slog.String("path", path))
				w.drainEvents(events)
				w.trigger(ctx, "upload")
			}
		}
	}()

	return nil
}

// drainEvents collapses a burst of upload events into one scan trigger
func (w *Worker) drainEvents(events chan string) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func (w *Worker) trigger(ctx context.Context, reason string) {
	err := w.scans.TriggerScan(ctx)
	switch {
	case err == nil:
		w.logger.Info("scan triggered", slog.String("reason", reason))
	case errors.Is(err, domain.ErrScanInProgress):
		w.logger.Debug("scan already running, trigger dropped", slog.String("reason", reason))
	default:
		w.logger.Error("failed to trigger scan",
			slog.String("reason", reason),
			slog.String("error", err.Error()))
	}
}

// Stop gracefully stops the worker and waits for the loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	w.logger.Info("scan worker shut down")
}
