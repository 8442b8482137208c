// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the integrity
// orchestrator.
//
// # Description
//
// Metrics cover the exchange pipeline end to end:
//   - Exchange counters by character and risk level
//   - Escalations routed to the auditor persona
//   - Points awarded by event kind
//   - Exchange latency histograms by backend and status
//   - Backend failure counters by error kind
//   - Active session gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for integrity engine metrics
const integritySubsystem = "integrity"

// ExchangeMetrics holds all Prometheus metrics for the exchange
// pipeline. Initialize once at startup via InitMetrics().
type ExchangeMetrics struct {
	// ExchangesTotal counts completed exchanges.
	// Labels: character, risk_level (none, low, medium, high, critical)
	ExchangesTotal *prometheus.CounterVec

	// EscalationsTotal counts exchanges handed to the auditor persona.
	// Labels: character (the session's character, not the auditor)
	EscalationsTotal *prometheus.CounterVec

	// PointsAwardedTotal sums gamification points granted.
	// Labels: kind (ethical_choice, corruption_resistance, ...)
	PointsAwardedTotal *prometheus.CounterVec

	// ExchangeDurationSeconds measures the whole exchange, analysis
	// through reply.
	// Labels: backend, status (success, error)
	ExchangeDurationSeconds *prometheus.HistogramVec

	// BackendFailuresTotal counts completion failures per backend.
	// Labels: backend, kind (unavailable, timeout, rate_limited, malformed)
	BackendFailuresTotal *prometheus.CounterVec

	// ActiveSessions tracks sessions currently registered.
	ActiveSessions prometheus.Gauge

	// BenchmarkRunsTotal counts benchmark runs by outcome.
	// Labels: status (success, error)
	BenchmarkRunsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *ExchangeMetrics

// InitMetrics creates and registers all metrics on the default
// registry. Call once at startup; a second call panics on duplicate
// registration.
func InitMetrics() *ExchangeMetrics {
	DefaultMetrics = &ExchangeMetrics{
		ExchangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "exchanges_total",
				Help:      "Total completed exchanges by character and risk level",
			},
			[]string{"character", "risk_level"},
		),

		EscalationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "escalations_total",
				Help:      "Exchanges escalated to the auditor persona",
			},
			[]string{"character"},
		),

		PointsAwardedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "points_awarded_total",
				Help:      "Gamification points granted by event kind",
			},
			[]string{"kind"},
		),

		ExchangeDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "exchange_duration_seconds",
				Help:      "End to end exchange duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"backend", "status"},
		),

		BackendFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "backend_failures_total",
				Help:      "Completion failures by backend and error kind",
			},
			[]string{"backend", "kind"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "active_sessions",
				Help:      "Sessions currently registered",
			},
		),

		BenchmarkRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "benchmark_runs_total",
				Help:      "Benchmark runs by outcome",
			},
			[]string{"status"},
		),
	}

	return DefaultMetrics
}

// RecordExchange records one completed exchange.
func (m *ExchangeMetrics) RecordExchange(character, riskLevel string, escalated bool) {
	m.ExchangesTotal.WithLabelValues(character, riskLevel).Inc()
	if escalated {
		m.EscalationsTotal.WithLabelValues(character).Inc()
	}
}

// RecordPoints records a points award.
func (m *ExchangeMetrics) RecordPoints(kind string, points int) {
	m.PointsAwardedTotal.WithLabelValues(kind).Add(float64(points))
}

// RecordDuration records how long the exchange took. Pass an empty
// backend when no backend answered.
func (m *ExchangeMetrics) RecordDuration(backend string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	if backend == "" {
		backend = "none"
	}
	m.ExchangeDurationSeconds.WithLabelValues(backend, status).Observe(seconds)
}

// RecordBackendFailure records one completion failure.
func (m *ExchangeMetrics) RecordBackendFailure(backend, kind string) {
	m.BackendFailuresTotal.WithLabelValues(backend, kind).Inc()
}

// SetActiveSessions sets the session gauge to the registry's count.
func (m *ExchangeMetrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// RecordBenchmarkRun records a benchmark run outcome.
func (m *ExchangeMetrics) RecordBenchmarkRun(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.BenchmarkRunsTotal.WithLabelValues(status).Inc()
}
