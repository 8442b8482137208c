// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// BenchmarkRequest fans a prompt set across backends. Backends is
// optional; empty means every registered backend.
type BenchmarkRequest struct {
	Prompts  []string `json:"prompts" binding:"required,min=1"`
	Backends []string `json:"backends"`
}

// RunBenchmark handles POST /v1/benchmarks. The run is synchronous;
// callers should set generous client timeouts for large prompt sets.
func RunBenchmark(eng *engine.Engine, metrics *observability.ExchangeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "RunBenchmark")
		defer span.End()

		var req BenchmarkRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		backends := make([]provider.BackendID, 0, len(req.Backends))
		for _, b := range req.Backends {
			backends = append(backends, provider.BackendID(b))
		}

		report, err := eng.RunBenchmark(ctx, req.Prompts, backends)
		if err != nil {
			metrics.RecordBenchmarkRun(false)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Benchmark run failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "benchmark run failed"})
			return
		}

		metrics.RecordBenchmarkRun(true)
		c.JSON(http.StatusOK, report)
	}
}
