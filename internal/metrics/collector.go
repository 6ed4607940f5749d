// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records execution and improvement-cycle metrics.
type Collector struct {
	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	validationAttempts prometheus.Counter
	roundsTotal        prometheus.Counter
	roundScore         prometheus.Gauge
	cycleCost          prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a collector registered under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of case executions by terminal status",
		},
		[]string{"status"},
	)

	c.executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Case execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	c.validationAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_attempts_total",
			Help:      "Total number of validation attempts across retry loops",
		},
	)

	c.roundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Total number of completed improvement rounds",
		},
	)

	c.roundScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_score",
			Help:      "Aggregate score of the most recent round",
		},
	)

	c.cycleCost = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_cost_total",
			Help:      "Total accumulated cost across cycles in USD",
		},
	)

	return c
}

// RecordExecution records one terminal case execution.
func (c *Collector) RecordExecution(status string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(status).Inc()
	c.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordValidationAttempt records one validation attempt.
func (c *Collector) RecordValidationAttempt() {
	c.validationAttempts.Inc()
}

// RecordRound records a completed round's score and cost.
func (c *Collector) RecordRound(score, cost float64) {
	c.roundsTotal.Inc()
	c.roundScore.Set(score)
	c.cycleCost.Add(cost)
}
