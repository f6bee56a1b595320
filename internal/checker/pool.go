package checker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jrheling/pybotz/internal/config"
)

// CheckerPool owns the full set of module checkers and drives them on a
// fixed tick. Module checks run concurrently and independently: one
// unreachable host never delays the checks of other modules in the same
// tick, and no single-module failure surfaces as a pool failure.
type CheckerPool struct {
	modules []*SensorModuleChecker
	logger  *slog.Logger

	tickInterval  time.Duration
	shutdownGrace time.Duration

	// Lifecycle management
	running bool
	runMu   sync.Mutex
	wg      sync.WaitGroup
}

// NewCheckerPool creates a pool over the given module checkers.
func NewCheckerPool(modules []*SensorModuleChecker, cfg config.PollerConfig, logger *slog.Logger) *CheckerPool {
	return &CheckerPool{
		modules:       modules,
		logger:        logger.With("component", "checker_pool"),
		tickInterval:  cfg.GetTickInterval(),
		shutdownGrace: cfg.GetShutdownGrace(),
	}
}

// Run starts the tick loop and blocks until the context is cancelled. On
// cancellation no new ticks are scheduled; in-flight module checks get a
// grace window to finish before Run returns.
func (p *CheckerPool) Run(ctx context.Context) error {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return fmt.Errorf("checker pool already running")
	}
	p.running = true
	p.runMu.Unlock()

	p.logger.Info("starting checker pool",
		"modules", len(p.modules),
		"tick_interval", p.tickInterval,
	)

	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	// First cycle runs immediately rather than waiting out a full tick.
	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("checker pool context cancelled, shutting down")
			p.shutdown()
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick fans out one check per module. A module whose previous check is
// still in flight is skipped rather than checked twice concurrently.
func (p *CheckerPool) tick(ctx context.Context) {
	now := time.Now()

	for _, mc := range p.modules {
		if !mc.BeginCheck() {
			p.logger.Debug("previous check still in flight, skipping module",
				"module", mc.module.Label(),
			)
			continue
		}

		p.wg.Add(1)
		go func(mc *SensorModuleChecker) {
			defer p.wg.Done()
			defer mc.EndCheck()
			mc.MaybeCheck(ctx, now)
		}(mc)
	}
}

// shutdown waits for in-flight checks to complete, up to the grace window.
func (p *CheckerPool) shutdown() {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("checker pool shutdown complete")
	case <-time.After(p.shutdownGrace):
		p.logger.Warn("shutdown grace expired with module checks still in flight",
			"grace", p.shutdownGrace,
		)
	}

	p.runMu.Lock()
	p.running = false
	p.runMu.Unlock()
}

// IsRunning returns whether the pool's tick loop is currently active.
func (p *CheckerPool) IsRunning() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

// Status returns health snapshots for every module in the pool.
func (p *CheckerPool) Status() []ModuleStatus {
	statuses := make([]ModuleStatus, 0, len(p.modules))
	for _, mc := range p.modules {
		statuses = append(statuses, mc.Status())
	}
	return statuses
}
