// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package provider implements the backend adapters for the integrity
// training engine. Each adapter wraps one remote completion service
// (OpenAI, Moonshot/Kimi-K2, or a locally served Qwen3) behind the
// uniform CompletionClient contract so the router can treat every
// backend as an opaque text-completion oracle.
package provider

import (
	"context"
	"time"
)

// BackendID identifies a completion backend.
type BackendID string

const (
	// BackendOpenAI is the hosted OpenAI chat-completion service.
	BackendOpenAI BackendID = "openai"

	// BackendKimiK2 is Moonshot AI's Kimi-K2 service.
	BackendKimiK2 BackendID = "kimi_k2"

	// BackendQwen3 is a locally served Qwen3 model.
	BackendQwen3 BackendID = "qwen3"
)

// GenerationParams carries optional generation tuning for a completion
// call. Nil pointer fields mean "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// Timeout is the per-call budget. The adapter enforces it via
	// context even when the remote call has no native timeout.
	// Zero means the adapter's default.
	Timeout time.Duration `json:"-"`
}

// Completion is the uniform result shape returned by every adapter.
type Completion struct {
	// Text is the backend's reply.
	Text string `json:"text"`

	// Backend is the adapter that produced the reply.
	Backend BackendID `json:"backend"`

	// LatencyMs is the observed wall-clock latency of the remote call.
	LatencyMs int64 `json:"latency_ms"`

	// TokensUsed is the backend-reported (or estimated) total tokens.
	TokensUsed int `json:"tokens_used"`

	// CostEstimate is the estimated cost of the call in USD.
	CostEstimate float64 `json:"cost_estimate"`
}

// CompletionClient is the contract every backend adapter satisfies.
//
// # Description
//
// Complete sends a single prompt to the backend and returns the reply
// together with latency and cost accounting. Implementations must:
//   - honor ctx cancellation and params.Timeout (whichever fires first)
//   - classify failures into the AdapterError taxonomy (errors.go) so
//     the router can pick the right recovery per kind
//   - never return a partial reply on error
type CompletionClient interface {
	// ID returns the stable backend identifier.
	ID() BackendID

	// Complete runs one completion request.
	Complete(ctx context.Context, prompt string, params GenerationParams) (*Completion, error)
}

// costPer1KTokens is the rough per-provider cost table used for
// estimates. Qwen3 runs locally, so only compute cost applies.
var costPer1KTokens = map[BackendID]float64{
	BackendOpenAI: 0.03,
	BackendKimiK2: 0.015,
	BackendQwen3:  0.0,
}

// EstimateCost returns the estimated USD cost for a call that used the
// given token count on the given backend. Unknown backends are charged
// at a conservative middle rate.
func EstimateCost(backend BackendID, tokens int) float64 {
	rate, ok := costPer1KTokens[backend]
	if !ok {
		rate = 0.02
	}
	return float64(tokens) * rate / 1000.0
}

// estimateTokens approximates token usage from text when the backend
// does not report usage. Word count times 1.3 tracks the original
// rubric's estimate closely enough for cost ceilings.
func estimateTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return int(float64(words) * 1.3)
}
