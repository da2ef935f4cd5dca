package clearsky

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearsky_detection_runs_total",
			Help: "Detection runs by result (ok, failed).",
		},
		[]string{"result"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clearsky_detection_run_duration_seconds",
			Help:    "Duration of template matching and clustering per capture.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	lastStarCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clearsky_last_star_count",
			Help: "Star count of the most recent successful detection run.",
		},
	)
	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearsky_alerts_total",
			Help: "Clear-sky alert decisions by result (sent, failed, suppressed, disabled).",
		},
		[]string{"result"},
	)
	annotatedWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearsky_annotated_writes_total",
			Help: "Annotated image writes by result (ok, error).",
		},
		[]string{"result"},
	)
)
