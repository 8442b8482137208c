// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/ledger"
)

// GetGamificationState handles GET /v1/users/:userId/state. Users with
// no history get the zero state at the lowest tier rather than a 404.
func GetGamificationState(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "GetGamificationState")
		defer span.End()

		state, err := eng.GamificationState(ctx, c.Param("userId"))
		if err != nil {
			writeEngineError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":     state.UserID,
			"points":      state.Points,
			"tier":        state.Tier,
			"event_count": state.EventCount,
			"tiers":       ledger.Tiers(),
		})
	}
}
