// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds an ExchangeMetrics on a private registry so
// tests stay isolated from the global one and from each other.
func newTestMetrics(t *testing.T) *ExchangeMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := &ExchangeMetrics{
		ExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "exchanges_total",
				Help:      "Total completed exchanges by character and risk level",
			},
			[]string{"character", "risk_level"},
		),
		EscalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "escalations_total",
				Help:      "Exchanges escalated to the auditor persona",
			},
			[]string{"character"},
		),
		PointsAwardedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "points_awarded_total",
				Help:      "Gamification points granted by event kind",
			},
			[]string{"kind"},
		),
		ExchangeDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "exchange_duration_seconds",
				Help:      "End to end exchange duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"backend", "status"},
		),
		BackendFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "backend_failures_total",
				Help:      "Completion failures by backend and error kind",
			},
			[]string{"backend", "kind"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "active_sessions",
				Help:      "Sessions currently registered",
			},
		),
		BenchmarkRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: integritySubsystem,
				Name:      "benchmark_runs_total",
				Help:      "Benchmark runs by outcome",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.ExchangesTotal,
		m.EscalationsTotal,
		m.PointsAwardedTotal,
		m.ExchangeDurationSeconds,
		m.BackendFailuresTotal,
		m.ActiveSessions,
		m.BenchmarkRunsTotal,
	)
	return m
}

func TestRecordExchange(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordExchange("catalina", "none", false)
	m.RecordExchange("catalina", "critical", true)
	m.RecordExchange("alexis", "medium", false)

	if got := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("catalina", "none")); got != 1 {
		t.Errorf("exchanges_total{catalina,none} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("catalina")); got != 1 {
		t.Errorf("escalations_total{catalina} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("alexis")); got != 0 {
		t.Errorf("escalations_total{alexis} = %v, want 0", got)
	}
}

func TestRecordPoints(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPoints("ethical_choice", 100)
	m.RecordPoints("ethical_choice", 100)
	m.RecordPoints("corruption_resistance", 300)

	if got := testutil.ToFloat64(m.PointsAwardedTotal.WithLabelValues("ethical_choice")); got != 200 {
		t.Errorf("points_awarded_total{ethical_choice} = %v, want 200", got)
	}
	if got := testutil.ToFloat64(m.PointsAwardedTotal.WithLabelValues("corruption_resistance")); got != 300 {
		t.Errorf("points_awarded_total{corruption_resistance} = %v, want 300", got)
	}
}

func TestRecordDuration_EmptyBackendMapsToNone(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDuration("", 0.5, false)

	count := testutil.CollectAndCount(m.ExchangeDurationSeconds)
	if count != 1 {
		t.Errorf("expected 1 histogram series, got %d", count)
	}
}

func TestRecordBackendFailure(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBackendFailure("openai", "rate_limited")
	m.RecordBackendFailure("openai", "rate_limited")

	if got := testutil.ToFloat64(m.BackendFailuresTotal.WithLabelValues("openai", "rate_limited")); got != 2 {
		t.Errorf("backend_failures_total{openai,rate_limited} = %v, want 2", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.SetActiveSessions(7)
	if got := testutil.ToFloat64(m.ActiveSessions); got != 7 {
		t.Errorf("active_sessions = %v, want 7", got)
	}
	m.SetActiveSessions(0)
	if got := testutil.ToFloat64(m.ActiveSessions); got != 0 {
		t.Errorf("active_sessions = %v, want 0", got)
	}
}

func TestRecordBenchmarkRun(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBenchmarkRun(true)
	m.RecordBenchmarkRun(false)
	m.RecordBenchmarkRun(false)

	if got := testutil.ToFloat64(m.BenchmarkRunsTotal.WithLabelValues("error")); got != 2 {
		t.Errorf("benchmark_runs_total{error} = %v, want 2", got)
	}
}
