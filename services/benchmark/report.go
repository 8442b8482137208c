// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package benchmark fans prompts out across every backend and reports
// per-pair latency, cost, and failure data. Results feed provider
// selection tuning and land in InfluxDB for dashboarding.
package benchmark

import (
	"time"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// Result is the outcome of one prompt × backend pair.
type Result struct {
	Prompt  string             `json:"prompt"`
	Backend provider.BackendID `json:"backend"`
	Success bool               `json:"success"`

	// Reason is the failure classification for unsuccessful pairs,
	// empty on success.
	Reason string `json:"reason,omitempty"`

	LatencyMs    int64   `json:"latency_ms"`
	TokensUsed   int     `json:"tokens_used"`
	CostEstimate float64 `json:"cost_estimate"`

	// ReplyChars is the completion length; a cheap proxy for
	// thoroughness when comparing backends on the same prompt.
	ReplyChars int `json:"reply_chars"`
}

// BackendSummary aggregates one backend's results across a run.
type BackendSummary struct {
	Backend      provider.BackendID `json:"backend"`
	Attempts     int                `json:"attempts"`
	Failures     int                `json:"failures"`
	AvgLatencyMs float64            `json:"avg_latency_ms"`
	TotalCostUSD float64            `json:"total_cost_usd"`
}

// Report is the full outcome of one benchmark run.
//
// Every requested prompt × backend pair appears exactly once in
// Results, failed pairs included.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Results   []Result         `json:"results"`
	Summaries []BackendSummary `json:"summaries"`
}

// summarize builds per-backend aggregates in the given backend order.
func summarize(results []Result, order []provider.BackendID) []BackendSummary {
	byBackend := make(map[provider.BackendID]*BackendSummary, len(order))
	for _, b := range order {
		byBackend[b] = &BackendSummary{Backend: b}
	}
	for _, r := range results {
		s, ok := byBackend[r.Backend]
		if !ok {
			continue
		}
		s.Attempts++
		if !r.Success {
			s.Failures++
			continue
		}
		s.TotalCostUSD += r.CostEstimate
		// Running mean over successful attempts only.
		n := float64(s.Attempts - s.Failures)
		s.AvgLatencyMs += (float64(r.LatencyMs) - s.AvgLatencyMs) / n
	}

	out := make([]BackendSummary, 0, len(order))
	for _, b := range order {
		out = append(out, *byBackend[b])
	}
	return out
}
