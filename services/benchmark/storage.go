// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package benchmark

import (
	"context"
	"fmt"
	"os"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// ResultSink persists benchmark reports.
type ResultSink interface {
	Record(ctx context.Context, report *Report) error
	Close() error
}

// --- InfluxDB Implementation ---

// InfluxSink writes one point per pair plus one summary point per
// backend into an InfluxDB bucket.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// NewInfluxSink builds a sink from the environment.
func NewInfluxSink() (*InfluxSink, error) {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		url = "http://localhost:8086"
	}
	token := os.Getenv("INFLUXDB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("INFLUXDB_TOKEN environment variable not set")
	}
	org := os.Getenv("INFLUXDB_ORG")
	if org == "" {
		org = "aleutian-integrity"
	}
	bucket := os.Getenv("INFLUXDB_BUCKET")
	if bucket == "" {
		bucket = "benchmarks"
	}

	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		bucket:   bucket,
		org:      org,
	}, nil
}

// Record implements ResultSink.
func (s *InfluxSink) Record(ctx context.Context, report *Report) error {
	for _, r := range report.Results {
		p := influxdb2.NewPointWithMeasurement("benchmark_pairs").
			AddTag("run_id", report.RunID).
			AddTag("backend", string(r.Backend)).
			AddTag("success", fmt.Sprintf("%t", r.Success)).
			AddField("latency_ms", r.LatencyMs).
			AddField("tokens_used", r.TokensUsed).
			AddField("cost_estimate", r.CostEstimate).
			AddField("reply_chars", r.ReplyChars).
			AddField("reason", r.Reason).
			SetTime(report.StartedAt)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("write benchmark pair point: %w", err)
		}
	}
	for _, sum := range report.Summaries {
		p := influxdb2.NewPointWithMeasurement("benchmark_summaries").
			AddTag("run_id", report.RunID).
			AddTag("backend", string(sum.Backend)).
			AddField("attempts", sum.Attempts).
			AddField("failures", sum.Failures).
			AddField("avg_latency_ms", sum.AvgLatencyMs).
			AddField("total_cost_usd", sum.TotalCostUSD).
			SetTime(report.StartedAt)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("write benchmark summary point: %w", err)
		}
	}
	return nil
}

// Close implements ResultSink. The influx client flushes and releases
// its connections; it reports nothing to propagate.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// --- Noop Implementation ---

type noopSink struct{}

// NewNoopSink returns a sink that drops reports. Used when InfluxDB is
// not configured.
func NewNoopSink() ResultSink { return noopSink{} }

func (noopSink) Record(context.Context, *Report) error { return nil }
func (noopSink) Close() error                          { return nil }
