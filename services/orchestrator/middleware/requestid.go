// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the integrity
// orchestrator.
//
// # Request ID Flow
//
// RequestID assigns every request a stable identifier, honoring one
// supplied by the caller so IDs survive proxy hops:
//
//	Request
//	   │
//	   ▼
//	RequestID
//	   │
//	   ├─► Reuse "X-Request-ID" header when present
//	   │
//	   ├─► Otherwise mint a UUID
//	   │
//	   └─► Store in context + echo on the response header
//	           │
//	           ▼
//	       Handler (retrieves via GetRequestID)
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the request identifier.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the Gin context key for the request ID. A dedicated
// key avoids collisions with handler-set values.
const requestIDKey = "integrity_request_id"

// GetRequestID returns the request's identifier, or empty when the
// middleware did not run.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// RequestID is a middleware that tags each request with an identifier
// and echoes it back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger is a middleware that emits one structured log line per
// request, carrying the request ID assigned by RequestID.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("orchestrator: request completed",
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
