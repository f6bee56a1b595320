package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botz_scrape_duration_seconds",
			Help:    "Time taken to scrape one sensor module",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"module"},
	)

	scrapeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botz_scrape_total",
			Help: "Total number of module scrape attempts",
		},
		[]string{"module", "status"}, // success or failure
	)

	readingsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botz_readings_recorded_total",
			Help: "Readings that passed a sensor's recording policy",
		},
		[]string{"module", "sensor"},
	)

	readingsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botz_readings_skipped_total",
			Help: "Readings observed but not significant enough to record",
		},
		[]string{"module", "sensor"},
	)

	readingsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botz_readings_dropped_total",
			Help: "Readings dropped because no tracked sensor matched them",
		},
		[]string{"module"},
	)

	moduleFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "botz_module_consecutive_failures",
			Help: "Current consecutive scrape failure count per module",
		},
		[]string{"module"},
	)
)
