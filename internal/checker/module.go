package checker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jrheling/pybotz/internal/channels"
	"github.com/jrheling/pybotz/internal/config"
	"github.com/jrheling/pybotz/internal/inventory"
)

// CheckResult classifies the outcome of one MaybeCheck invocation.
type CheckResult int

const (
	// CheckSkippedBackoff means the failure backoff window was still open.
	CheckSkippedBackoff CheckResult = iota
	// CheckFailed means the scrape itself failed.
	CheckFailed
	// CheckSucceeded means readings were scraped and routed.
	CheckSucceeded
)

// ModuleStatus is a point-in-time health snapshot of one module checker.
type ModuleStatus struct {
	ModuleID            int32     `json:"module_id"`
	Module              string    `json:"module"`
	Host                string    `json:"host"`
	Sensors             int       `json:"sensors"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	InBackoffUntil      time.Time `json:"in_backoff_until,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
}

// SensorModuleChecker owns the checkers for every tracked sensor on one
// module of one host. A single scrape per eligible cycle serves all of
// them, because the network round-trip dominates the cost of the
// per-sensor decisions. Host-level failures are isolated here via
// exponential backoff and never propagate past the module boundary.
type SensorModuleChecker struct {
	host    inventory.Host
	module  inventory.SensorModule
	scraper ModuleScraper
	events  *channels.Events
	logger  *slog.Logger

	checkers []*SensorChecker
	byName   map[string]*SensorChecker

	scrapeTimeout      time.Duration
	backoffBase        time.Duration
	backoffMax         time.Duration
	downThreshold      int
	selfReportInterval time.Duration

	// inFlight guards against a check that outlives its tick being run
	// again concurrently.
	inFlight atomic.Bool

	// mu protects the mutable state below; MaybeCheck runs serially per
	// module, but Status() is read from the API handler.
	mu                  sync.Mutex
	consecutiveFailures int
	nextEligible        time.Time
	lastError           string
	lastSuccess         time.Time
	scrapeSuccesses     int
	scrapeFailures      int
	totalScrapeTime     time.Duration
	nextSelfReport      time.Time
}

// NewSensorModuleChecker builds the checker for one tracked module and
// instantiates SensorCheckers for its tracked sensors.
func NewSensorModuleChecker(
	host inventory.Host,
	module inventory.SensorModule,
	sensors []inventory.Sensor,
	scraper ModuleScraper,
	recorder Recorder,
	events *channels.Events,
	cfg config.PollerConfig,
	logger *slog.Logger,
) *SensorModuleChecker {
	mc := &SensorModuleChecker{
		host:    host,
		module:  module,
		scraper: scraper,
		events:  events,
		logger: logger.With(
			"component", "module_checker",
			"module", module.Label(),
			"host", host.Address,
		),
		byName:             make(map[string]*SensorChecker, len(sensors)),
		scrapeTimeout:      cfg.GetScrapeTimeout(),
		backoffBase:        cfg.GetBackoffBase(),
		backoffMax:         cfg.GetBackoffMax(),
		downThreshold:      cfg.DownThreshold,
		selfReportInterval: cfg.GetSelfReportInterval(),
		nextSelfReport:     time.Now().Add(cfg.GetSelfReportInterval()),
	}

	for _, s := range sensors {
		if _, dup := mc.byName[s.Name]; dup {
			mc.logger.Warn("duplicate sensor name in module config, keeping first",
				"sensor", s.Name,
			)
			continue
		}
		sc := NewSensorChecker(s, recorder, mc.logger)
		mc.checkers = append(mc.checkers, sc)
		mc.byName[s.Name] = sc
	}

	return mc
}

// BeginCheck marks the module as having a check in flight. Returns false
// if one is already running, in which case the caller must skip this tick.
func (mc *SensorModuleChecker) BeginCheck() bool {
	return mc.inFlight.CompareAndSwap(false, true)
}

// EndCheck clears the in-flight marker set by BeginCheck.
func (mc *SensorModuleChecker) EndCheck() {
	mc.inFlight.Store(false)
}

// MaybeCheck performs one check cycle: honor the backoff window, scrape
// the module once, and route each reading to the checker owning that
// sensor. Readings for one sensor are delivered serially in scrape order.
//
// Sensors with a positive poll interval carry an alert threshold that can
// fire on any cycle, so eligibility is decided per module (backoff only)
// and every owned sensor is served by the one scrape.
func (mc *SensorModuleChecker) MaybeCheck(ctx context.Context, now time.Time) CheckResult {
	mc.mu.Lock()
	if now.Before(mc.nextEligible) {
		mc.mu.Unlock()
		return CheckSkippedBackoff
	}
	mc.mu.Unlock()

	logger := mc.logger.With("request_id", uuid.New().String())

	scrapeCtx, cancel := context.WithTimeout(ctx, mc.scrapeTimeout)
	defer cancel()

	start := time.Now()
	readings, err := mc.scraper.ScrapeModule(scrapeCtx, mc.host, mc.module.ModuleName)
	elapsed := time.Since(start)

	scrapeDuration.WithLabelValues(mc.module.Label()).Observe(elapsed.Seconds())

	if err != nil {
		scrapeTotal.WithLabelValues(mc.module.Label(), "failure").Inc()
		mc.handleFailure(now, err, logger)
		mc.maybeSelfReport(logger)
		return CheckFailed
	}

	scrapeTotal.WithLabelValues(mc.module.Label(), "success").Inc()
	mc.handleSuccess(now, elapsed, logger)

	recorded := 0
	for _, r := range readings {
		sc, ok := mc.byName[r.Sensor]
		if !ok {
			// Present on the appliance but not in (tracked) config.
			readingsDropped.WithLabelValues(mc.module.Label()).Inc()
			logger.Warn("dropping reading for unknown sensor",
				"sensor", r.Sensor,
				"value", r.Value,
			)
			continue
		}
		if sc.Evaluate(ctx, r) {
			recorded++
			readingsRecorded.WithLabelValues(mc.module.Label(), r.Sensor).Inc()
		} else {
			readingsSkipped.WithLabelValues(mc.module.Label(), r.Sensor).Inc()
		}
	}

	logger.Debug("module check complete",
		"readings", len(readings),
		"recorded", recorded,
		"duration_ms", elapsed.Milliseconds(),
	)

	mc.maybeSelfReport(logger)
	return CheckSucceeded
}

// handleFailure tracks a failed scrape and opens the backoff window.
// Timeouts, refused connections, and malformed payloads are all treated
// identically: recoverable, never fatal to the pool.
func (mc *SensorModuleChecker) handleFailure(now time.Time, err error, logger *slog.Logger) {
	mc.mu.Lock()
	mc.consecutiveFailures++
	mc.scrapeFailures++
	mc.lastError = err.Error()
	backoff := mc.backoff(mc.consecutiveFailures)
	mc.nextEligible = now.Add(backoff)
	failures := mc.consecutiveFailures
	mc.mu.Unlock()

	moduleFailures.WithLabelValues(mc.module.Label()).Set(float64(failures))

	logger.Warn("module scrape failed",
		"consecutive_failures", failures,
		"backoff", backoff,
		"error", err,
	)

	if failures == mc.downThreshold {
		if !mc.events.PublishModuleState(channels.ModuleStateEvent{
			ModuleID:  mc.module.ID,
			Module:    mc.module.Label(),
			Host:      mc.host.Address,
			EventType: "down",
			Failures:  failures,
			Timestamp: now,
		}) {
			logger.Warn("failed to emit module down event: channel full")
		}
	}
}

// handleSuccess resets failure tracking and records scrape timing for the
// periodic self-report.
func (mc *SensorModuleChecker) handleSuccess(now time.Time, elapsed time.Duration, logger *slog.Logger) {
	mc.mu.Lock()
	wasDown := mc.consecutiveFailures >= mc.downThreshold
	mc.consecutiveFailures = 0
	mc.nextEligible = time.Time{}
	mc.lastError = ""
	mc.lastSuccess = now
	mc.scrapeSuccesses++
	mc.totalScrapeTime += elapsed
	mc.mu.Unlock()

	moduleFailures.WithLabelValues(mc.module.Label()).Set(0)

	if wasDown {
		if !mc.events.PublishModuleState(channels.ModuleStateEvent{
			ModuleID:  mc.module.ID,
			Module:    mc.module.Label(),
			Host:      mc.host.Address,
			EventType: "recovered",
			Timestamp: now,
		}) {
			logger.Warn("failed to emit module recovered event: channel full")
		}
	}
}

// backoff computes the exponential backoff for the given consecutive
// failure count: base doubling per failure, capped at the maximum.
func (mc *SensorModuleChecker) backoff(failures int) time.Duration {
	d := mc.backoffBase
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= mc.backoffMax {
			return mc.backoffMax
		}
	}
	if d > mc.backoffMax {
		return mc.backoffMax
	}
	return d
}

// maybeSelfReport periodically logs scrape success rate and average
// duration, then resets the counters for the next interval.
func (mc *SensorModuleChecker) maybeSelfReport(logger *slog.Logger) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if now.Before(mc.nextSelfReport) {
		return
	}

	total := mc.scrapeSuccesses + mc.scrapeFailures
	if total > 0 {
		failureRate := float64(mc.scrapeFailures) / float64(total)
		var avgMS int64
		if mc.scrapeSuccesses > 0 {
			avgMS = (mc.totalScrapeTime / time.Duration(mc.scrapeSuccesses)).Milliseconds()
		}
		logger.Info("module self-report",
			"scrapes", total,
			"failure_rate", failureRate,
			"avg_scrape_ms", avgMS,
		)
	}

	mc.scrapeSuccesses = 0
	mc.scrapeFailures = 0
	mc.totalScrapeTime = 0
	mc.nextSelfReport = now.Add(mc.selfReportInterval)
}

// Status returns a snapshot of the module's health for the status API.
func (mc *SensorModuleChecker) Status() ModuleStatus {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return ModuleStatus{
		ModuleID:            mc.module.ID,
		Module:              mc.module.Label(),
		Host:                mc.host.Address,
		Sensors:             len(mc.checkers),
		ConsecutiveFailures: mc.consecutiveFailures,
		InBackoffUntil:      mc.nextEligible,
		LastError:           mc.lastError,
		LastSuccess:         mc.lastSuccess,
	}
}
