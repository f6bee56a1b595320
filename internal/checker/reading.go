// Package checker implements the sampling decision core: per-sensor
// recording policy, per-module batched scraping with failure backoff, and
// the pool that drives all module checks concurrently on a fixed tick.
package checker

import (
	"context"
	"time"

	"github.com/jrheling/pybotz/internal/inventory"
)

// SensorReading is a single observed value for one sensor at a point in
// time. It exists only between a scrape and the recording decision; it is
// never mutated after construction.
type SensorReading struct {
	Sensor string // appliance-side sensor name, normalized by the scraper
	Value  float64
	Time   time.Time
	Units  string
}

// Equal reports whether two readings carry the same observation. Unit
// labels are presentation only and do not participate.
func (r SensorReading) Equal(other SensorReading) bool {
	return r.Sensor == other.Sensor &&
		r.Value == other.Value &&
		r.Time.Equal(other.Time)
}

// RecordedReading is a reading that passed a sensor's recording policy,
// resolved to its configured sensor identity for persistence.
type RecordedReading struct {
	SensorID   int32
	ModuleID   int32
	Value      float64
	Units      string
	ObservedAt time.Time
}

// Recorder persists readings that pass the recording policy. It may be
// invoked concurrently by checkers for different modules.
type Recorder interface {
	Record(ctx context.Context, r RecordedReading) error
}

// ModuleScraper fetches one batch of readings for every sensor a module
// currently exposes. Implemented per appliance family.
type ModuleScraper interface {
	ScrapeModule(ctx context.Context, host inventory.Host, moduleName string) ([]SensorReading, error)
}
