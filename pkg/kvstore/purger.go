package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Purger removes expired entries from a Purgeable store on a cron schedule.
type Purger struct {
	store    Purgeable
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	// OnPurge, when set, receives the number of entries removed by each run.
	OnPurge func(removed int64)

	mu      sync.Mutex
	running bool
}

// NewPurger creates a purger. An empty schedule makes Start a no-op.
func NewPurger(store Purgeable, schedule string, logger *slog.Logger) *Purger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "kvstore.purger"),
	}
}

// Start schedules purging. Accepted expressions include the standard five
// field form ("0 */6 * * *") and descriptors such as "@every 5m".
// The purger stops when ctx is cancelled.
func (p *Purger) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schedule == "" {
		p.logger.Info("purge schedule not configured, skipping purger")
		return nil
	}
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.schedule, err)
	}
	if _, err := p.cron.AddFunc(p.schedule, func() { p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("kv purger started", "schedule", p.schedule)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// RunOnce purges expired entries immediately.
func (p *Purger) RunOnce(ctx context.Context) int64 {
	removed, err := p.store.PurgeExpired(ctx)
	if err != nil {
		p.logger.Error("kv purge failed", "error", err)
		return 0
	}
	if p.OnPurge != nil {
		p.OnPurge(removed)
	}
	if removed > 0 {
		p.logger.Info("kv purge completed", "removed", removed)
	} else {
		p.logger.Debug("kv purge completed, nothing expired")
	}
	return removed
}

// Stop stops the scheduler and waits for a running purge to finish.
func (p *Purger) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("kv purger stopped")
	}
}

// IsRunning reports whether the schedule is active.
func (p *Purger) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
