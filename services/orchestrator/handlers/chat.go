// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/session"
)

// ChatRequest carries one trainee message.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// HandleExchange handles POST /v1/sessions/:sessionId/messages.
//
// # Description
//
// Runs one scored exchange through the engine and returns the persona
// reply together with the risk verdict and any points awarded. Engine
// failures surface as one of three stable messages; which backend was
// involved is never part of the response.
func HandleExchange(eng *engine.Engine, metrics metricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleExchange")
		defer span.End()

		var req ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		start := time.Now()
		result, err := eng.SubmitMessage(ctx, c.Param("sessionId"), req.Message)
		if err != nil {
			metrics.RecordDuration("", time.Since(start).Seconds(), false)
			writeEngineError(c, span, err)
			return
		}

		metrics.RecordDuration(string(result.Backend), time.Since(start).Seconds(), true)
		metrics.RecordExchange(result.Character, string(result.RiskLevel), result.Escalated)
		if result.ScoreDelta > 0 {
			metrics.RecordPoints(string(result.AwardKind), result.ScoreDelta)
		}

		c.JSON(http.StatusOK, result)
	}
}

// metricsRecorder is the slice of ExchangeMetrics the chat handler
// needs; narrowed for tests.
type metricsRecorder interface {
	RecordExchange(character, riskLevel string, escalated bool)
	RecordPoints(kind string, points int)
	RecordDuration(backend string, seconds float64, success bool)
}

// writeEngineError maps engine errors onto the stable caller-facing
// set. Anything unrecognized becomes a generic internal error; the
// detail goes to the log, not the response.
func writeEngineError(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, engine.ErrServiceDegraded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": engine.ErrServiceDegraded.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out, please retry"})
	case errors.Is(err, context.Canceled), errors.Is(err, session.ErrSessionCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "session was cancelled"})
	default:
		slog.Error("Unhandled engine error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
