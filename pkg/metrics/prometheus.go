package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	gapsDetected *prometheus.CounterVec
	gapsFilled   *prometheus.CounterVec
	gapsFailed   *prometheus.CounterVec
	barsAppended *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		gapsDetected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barflow_gaps_detected_total",
				Help: "Total number of gaps detected in stored series",
			},
			[]string{"provider", "symbol"},
		),
		gapsFilled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barflow_gaps_filled_total",
				Help: "Total number of gaps successfully backfilled",
			},
			[]string{"provider", "symbol"},
		),
		gapsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barflow_gaps_failed_total",
				Help: "Total number of gaps that could not be filled",
			},
			[]string{"provider", "symbol"},
		),
		barsAppended: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barflow_bars_appended_total",
				Help: "Total number of bars appended to the store",
			},
			[]string{"timeframe"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordGapsDetected records gaps found by one detection pass.
func (r *Recorder) RecordGapsDetected(provider, symbol string, n int) {
	r.gapsDetected.WithLabelValues(provider, symbol).Add(float64(n))
}

// RecordGapFilled records one successfully backfilled gap.
func (r *Recorder) RecordGapFilled(provider, symbol string) {
	r.gapsFilled.WithLabelValues(provider, symbol).Inc()
}

// RecordGapFailed records one gap left unfilled.
func (r *Recorder) RecordGapFailed(provider, symbol string) {
	r.gapsFailed.WithLabelValues(provider, symbol).Inc()
}

// RecordBarsAppended records bars written to the store at a timeframe.
func (r *Recorder) RecordBarsAppended(timeframe string, n int) {
	r.barsAppended.WithLabelValues(timeframe).Add(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
