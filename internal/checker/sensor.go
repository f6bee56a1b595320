package checker

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/jrheling/pybotz/internal/inventory"
)

// SensorChecker owns the recording policy and last-recorded baseline for
// exactly one sensor. It is driven serially by its owning module checker;
// no other component mutates its state.
//
// A checker with no recorded baseline always records its first reading.
// With a poll interval of zero, every distinct value change records
// immediately and the alert threshold is inert. Otherwise a reading
// records when the interval has elapsed since the last recording, or when
// the percentage variance from the last recorded value reaches the
// threshold. Both comparisons are inclusive (>=) so behavior at the
// boundary is reproducible.
type SensorChecker struct {
	sensor   inventory.Sensor
	recorder Recorder
	logger   *slog.Logger

	seen      bool
	lastValue float64
	lastTime  time.Time
}

// NewSensorChecker creates a checker for one tracked sensor.
func NewSensorChecker(sensor inventory.Sensor, recorder Recorder, logger *slog.Logger) *SensorChecker {
	return &SensorChecker{
		sensor:   sensor,
		recorder: recorder,
		logger:   logger.With("sensor", sensor.Name, "sensor_id", sensor.ID),
	}
}

// Sensor returns the static sensor configuration this checker enforces.
func (c *SensorChecker) Sensor() inventory.Sensor {
	return c.sensor
}

// Evaluate applies the recording policy to one reading, records it as a
// side effect when the policy triggers, and reports the decision.
func (c *SensorChecker) Evaluate(ctx context.Context, r SensorReading) bool {
	if !c.seen {
		c.record(ctx, r)
		return true
	}

	if c.sensor.PollInterval == 0 {
		if r.Value != c.lastValue {
			c.record(ctx, r)
			return true
		}
		return false
	}

	if r.Time.Sub(c.lastTime) >= c.sensor.PollInterval {
		c.record(ctx, r)
		return true
	}

	if c.exceedsThreshold(r.Value) {
		c.record(ctx, r)
		return true
	}

	return false
}

// exceedsThreshold reports whether a value's percentage variance from the
// baseline reaches the alert threshold. A zero baseline cannot produce a
// percentage, so any non-zero value counts as exceeding and zero-to-zero
// as not exceeding.
func (c *SensorChecker) exceedsThreshold(value float64) bool {
	if c.lastValue == 0 {
		return value != 0
	}
	variance := math.Abs(value-c.lastValue) / math.Abs(c.lastValue) * 100
	return variance >= c.sensor.AlertThreshold
}

// record forwards the reading to the persistence collaborator and
// advances the baseline. The baseline advances even when persistence
// fails: the decision already committed, and re-triggering the same
// reading on a store outage would only amplify the outage.
func (c *SensorChecker) record(ctx context.Context, r SensorReading) {
	units := r.Units
	if units == "" {
		units = c.sensor.Units
	}

	err := c.recorder.Record(ctx, RecordedReading{
		SensorID:   c.sensor.ID,
		ModuleID:   c.sensor.ModuleID,
		Value:      r.Value,
		Units:      units,
		ObservedAt: r.Time,
	})
	if err != nil {
		c.logger.Warn("failed to persist reading",
			"value", r.Value,
			"observed_at", r.Time,
			"error", err,
		)
	}

	c.seen = true
	c.lastValue = r.Value
	c.lastTime = r.Time
}
