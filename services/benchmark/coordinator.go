// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

var tracer = otel.Tracer("aleutian.integrity.benchmark")

// ClientSource resolves a backend ID to its adapter. The router
// satisfies this.
type ClientSource interface {
	Client(backend provider.BackendID) (provider.CompletionClient, bool)
}

// Config tunes a benchmark run.
type Config struct {
	// Concurrency caps in-flight pairs. Default: 4.
	Concurrency int

	// RunTimeout is the global deadline for the whole run. Pairs still
	// pending when it fires are recorded as failed with a timeout
	// reason. Default: 5 minutes.
	RunTimeout time.Duration

	// PairTimeout is the per-pair completion budget. Default: 60s.
	PairTimeout time.Duration
}

// DefaultConfig returns the shipped run settings.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		RunTimeout:  5 * time.Minute,
		PairTimeout: 60 * time.Second,
	}
}

// Coordinator runs benchmarks.
type Coordinator struct {
	clients ClientSource
	sink    ResultSink
	config  Config
	now     func() time.Time
}

// NewCoordinator builds a coordinator. sink may be nil for no
// persistence.
func NewCoordinator(clients ClientSource, sink ResultSink, config Config) *Coordinator {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 5 * time.Minute
	}
	if config.PairTimeout <= 0 {
		config.PairTimeout = 60 * time.Second
	}
	if sink == nil {
		sink = NewNoopSink()
	}
	return &Coordinator{clients: clients, sink: sink, config: config, now: time.Now}
}

// Run benchmarks every prompt against every backend.
//
// # Description
//
// Pairs run concurrently under the configured limit with a global
// deadline. A failed pair never aborts the run: it is recorded with
// its failure reason and the rest continue. The returned report holds
// exactly len(prompts) × len(backends) results, appended in completion
// order. The report is persisted to the sink before returning; a sink
// failure is logged but does not fail the run.
func (c *Coordinator) Run(ctx context.Context, prompts []string, backends []provider.BackendID) (*Report, error) {
	if len(prompts) == 0 {
		return nil, errors.New("benchmark needs at least one prompt")
	}
	if len(backends) == 0 {
		return nil, errors.New("benchmark needs at least one backend")
	}

	ctx, span := tracer.Start(ctx, "Coordinator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("benchmark.prompts", len(prompts)),
		attribute.Int("benchmark.backends", len(backends)),
	)

	runCtx, cancel := context.WithTimeout(ctx, c.config.RunTimeout)
	defer cancel()

	start := c.now()
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Results:   make([]Result, 0, len(prompts)*len(backends)),
	}
	slog.Info("benchmark: starting run",
		"run_id", report.RunID,
		"prompts", len(prompts),
		"backends", len(backends))

	// Results land in completion order, not prompt×backend order, so a
	// slow backend never holds earlier rows hostage in the report.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(c.config.Concurrency)
	for _, prompt := range prompts {
		for _, backend := range backends {
			g.Go(func() error {
				result := c.runPair(gctx, prompt, backend)
				mu.Lock()
				report.Results = append(report.Results, result)
				mu.Unlock()
				return nil
			})
		}
	}
	// Workers never return errors; Wait only fences completion.
	_ = g.Wait()

	report.Duration = c.now().Sub(start)
	report.Summaries = summarize(report.Results, dedupe(backends))

	if err := c.sink.Record(ctx, report); err != nil {
		slog.Error("benchmark: failed to persist report", "run_id", report.RunID, "error", err)
	}
	slog.Info("benchmark: run complete",
		"run_id", report.RunID,
		"duration_ms", report.Duration.Milliseconds(),
		"failures", countFailures(report.Results))
	return report, nil
}

func (c *Coordinator) runPair(ctx context.Context, prompt string, backend provider.BackendID) Result {
	result := Result{Prompt: prompt, Backend: backend}

	client, ok := c.clients.Client(backend)
	if !ok {
		result.Reason = fmt.Sprintf("backend %s not registered", backend)
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Reason = "run deadline exceeded before dispatch"
		return result
	}

	completion, err := client.Complete(ctx, prompt, provider.GenerationParams{Timeout: c.config.PairTimeout})
	if err != nil {
		result.Reason = provider.KindOf(err).String()
		slog.Debug("benchmark: pair failed",
			"backend", backend,
			"reason", result.Reason,
			"error", err)
		return result
	}

	result.Success = true
	result.LatencyMs = completion.LatencyMs
	result.TokensUsed = completion.TokensUsed
	result.CostEstimate = completion.CostEstimate
	result.ReplyChars = len(completion.Text)
	return result
}

func dedupe(backends []provider.BackendID) []provider.BackendID {
	seen := make(map[provider.BackendID]bool, len(backends))
	out := make([]provider.BackendID, 0, len(backends))
	for _, b := range backends {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func countFailures(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}
