// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/AleutianIntegrity/services/engine"
	"github.com/AleutianAI/AleutianIntegrity/services/ledger"
)

const (
	defaultOrchestratorURL = "http://localhost:12230"

	// Benchmark runs are synchronous server-side; everything else
	// answers well inside this.
	clientTimeout = 10 * time.Minute
)

func orchestratorBaseURL() string {
	if url := os.Getenv("INTEGRITY_ORCHESTRATOR_URL"); url != "" {
		return url
	}
	return defaultOrchestratorURL
}

// apiClient is a thin JSON client for the orchestrator's v1 API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: orchestratorBaseURL(),
		http:    &http.Client{Timeout: clientTimeout},
	}
}

// errorBody is the orchestrator's uniform error shape.
type errorBody struct {
	Error string `json:"error"`
}

// do sends one request and decodes the response into out (skipped when
// out is nil). Non-2xx responses surface the server's error message.
func (a *apiClient) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	req, err := http.NewRequest(method, a.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("orchestrator unreachable at %s: %w", a.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", eb.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected HTTP %d from %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// --- API Types ---

type sessionInfo struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Character  string `json:"character"`
	ScenarioID string `json:"scenario_id"`
}

type stateResponse struct {
	UserID     string        `json:"user_id"`
	Points     int           `json:"points"`
	Tier       ledger.Tier   `json:"tier"`
	EventCount int           `json:"event_count"`
	Tiers      []ledger.Tier `json:"tiers"`
}

type backendStatus struct {
	Backend       string  `json:"backend"`
	BreakerState  string  `json:"breaker_state"`
	Available     bool    `json:"available"`
	QualityScore  float64 `json:"quality_score"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	TotalCalls    int64   `json:"total_calls"`
	TotalFailures int64   `json:"total_failures"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

type backendsResponse struct {
	Backends []backendStatus `json:"backends"`
}

// --- API Calls ---

func (a *apiClient) startSession(userID, character, scenarioID string) (*sessionInfo, error) {
	var out sessionInfo
	err := a.do(http.MethodPost, "/v1/sessions", map[string]string{
		"user_id":     userID,
		"character":   character,
		"scenario_id": scenarioID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) sendMessage(sessionID, message string) (*engine.ExchangeResult, error) {
	var out engine.ExchangeResult
	err := a.do(http.MethodPost, "/v1/sessions/"+sessionID+"/messages",
		map[string]string{"message": message}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) completeScenario(sessionID string) (*engine.CompletionResult, error) {
	var out engine.CompletionResult
	err := a.do(http.MethodPost, "/v1/sessions/"+sessionID+"/complete", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) endSession(sessionID string) error {
	return a.do(http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
}

func (a *apiClient) state(userID string) (*stateResponse, error) {
	var out stateResponse
	if err := a.do(http.MethodGet, "/v1/users/"+userID+"/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) backends() (*backendsResponse, error) {
	var out backendsResponse
	if err := a.do(http.MethodGet, "/v1/backends/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) health() error {
	return a.do(http.MethodGet, "/health", nil, nil)
}
