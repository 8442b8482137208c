// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianIntegrity/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianIntegrity/services/router"
)

// SetupRoutes registers the HTTP surface on the router.
func SetupRoutes(r *gin.Engine, eng *engine.Engine, rt *router.Router,
	metrics *observability.ExchangeMetrics) {

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := r.Group("/v1")
	v1.Use(middleware.RequestID(), middleware.RequestLogger())
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.StartSession(eng, metrics))
			sessions.POST("/:sessionId/messages", handlers.HandleExchange(eng, metrics))
			sessions.POST("/:sessionId/complete", handlers.CompleteScenario(eng, metrics))
			sessions.DELETE("/:sessionId", handlers.EndSession(eng, metrics))
		}

		v1.GET("/users/:userId/state", handlers.GetGamificationState(eng))
		v1.GET("/backends/status", handlers.BackendsStatus(rt))
		v1.POST("/benchmarks", handlers.RunBenchmark(eng, metrics))
	}
}
