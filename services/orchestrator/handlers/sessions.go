// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the integrity
// orchestrator. Handlers translate engine errors into a small stable
// set of caller-facing messages; backend identities and raw error text
// never leave this layer.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/ledger"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/observability"
)

var handlerTracer = otel.Tracer("aleutian.integrity.handlers")

// StartSessionRequest opens a training session.
type StartSessionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Character  string `json:"character" binding:"required"`
	ScenarioID string `json:"scenario_id" binding:"required"`
}

// StartSession handles POST /v1/sessions.
func StartSession(eng *engine.Engine, metrics *observability.ExchangeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartSessionRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sess, err := eng.StartSession(req.UserID, req.Character, req.ScenarioID)
		if err != nil {
			slog.Warn("Rejected session start", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown character or scenario"})
			return
		}
		metrics.SetActiveSessions(eng.SessionCount())

		c.JSON(http.StatusCreated, gin.H{
			"session_id":  sess.SessionID,
			"user_id":     sess.UserID,
			"character":   sess.Character,
			"scenario_id": sess.ScenarioID,
			"created_at":  sess.CreatedAt,
		})
	}
}

// EndSession handles DELETE /v1/sessions/:sessionId. Ending an unknown
// session is a no-op so clients can retry safely.
func EndSession(eng *engine.Engine, metrics *observability.ExchangeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		eng.CancelSession(c.Param("sessionId"))
		metrics.SetActiveSessions(eng.SessionCount())
		c.Status(http.StatusNoContent)
	}
}

// CompleteScenario handles POST /v1/sessions/:sessionId/complete.
func CompleteScenario(eng *engine.Engine, metrics *observability.ExchangeMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "CompleteScenario")
		defer span.End()

		result, err := eng.CompleteScenario(ctx, c.Param("sessionId"))
		if err != nil {
			writeEngineError(c, span, err)
			return
		}

		if p, ok := ledger.Points(ledger.KindScenarioCompletion); ok {
			metrics.RecordPoints(string(ledger.KindScenarioCompletion), p)
		}
		if result.ConsistencyBonus {
			if p, ok := ledger.Points(ledger.KindConsistencyBonus); ok {
				metrics.RecordPoints(string(ledger.KindConsistencyBonus), p)
			}
		}
		c.JSON(http.StatusOK, result)
	}
}
