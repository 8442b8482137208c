// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianIntegrity/services/router"
)

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// BackendStatus is one backend's routing view: breaker state plus the
// running quality profile.
type BackendStatus struct {
	Backend       string  `json:"backend"`
	BreakerState  string  `json:"breaker_state"`
	Available     bool    `json:"available"`
	QualityScore  float64 `json:"quality_score"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	TotalCalls    int64   `json:"total_calls"`
	TotalFailures int64   `json:"total_failures"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

// BackendsStatus handles GET /v1/backends/status.
func BackendsStatus(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles := make(map[string]router.BackendProfile)
		for _, p := range rt.Profiles().SnapshotAll() {
			profiles[string(p.Backend)] = p
		}

		statuses := make([]BackendStatus, 0, len(rt.Backends()))
		for _, backend := range rt.Backends() {
			breaker := rt.Breakers().Get(backend)
			s := BackendStatus{
				Backend:      string(backend),
				BreakerState: breaker.State().String(),
				Available:    breaker.Available(),
			}
			if p, ok := profiles[string(backend)]; ok {
				s.QualityScore = p.QualityScore
				s.AvgLatencyMs = p.AvgLatencyMs
				s.TotalCalls = p.TotalCalls
				s.TotalFailures = p.TotalFailures
				s.TotalCostUSD = p.TotalCostUSD
			}
			statuses = append(statuses, s)
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i].Backend < statuses[j].Backend })

		c.JSON(http.StatusOK, gin.H{"backends": statuses})
	}
}
