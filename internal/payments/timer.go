package payments

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer periodically sweeps expired payment requests out of the store.
// The sweep is an optimization only; behavior is identical without it.
type Timer struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates a payment expiry sweeper.
func NewTimer(manager *Manager, interval time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		manager:  manager,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the sweep loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			if n := t.manager.SweepExpired(); n > 0 {
				t.logger.Info("swept expired payment requests", "count", n)
			}
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}
