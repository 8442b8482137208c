// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*apiClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return &apiClient{baseURL: srv.URL, http: &http.Client{Timeout: 5 * time.Second}}, srv
}

func TestStartSession_DecodesResponse(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sessions", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana", body["user_id"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"session_id":  "sess-1",
			"user_id":     "ana",
			"character":   "catalina",
			"scenario_id": "procurement_bribery_01",
		})
	})
	defer srv.Close()

	sess, err := client.startSession("ana", "catalina", "procurement_bribery_01")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.SessionID)
	assert.Equal(t, "catalina", sess.Character)
}

func TestSendMessage_SurfacesServerError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "service temporarily degraded, please retry",
		})
	})
	defer srv.Close()

	_, err := client.sendMessage("sess-1", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service temporarily degraded")
	assert.Contains(t, err.Error(), "503")
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	defer srv.Close()

	err := client.health()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestState_DecodesTierLadder(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/ana/state", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":     "ana",
			"points":      425,
			"tier":        map[string]any{"name": "Principiante Ético", "threshold": 0},
			"event_count": 3,
			"tiers": []map[string]any{
				{"name": "Principiante Ético", "threshold": 0},
				{"name": "Guardián de Integridad", "threshold": 500},
			},
		})
	})
	defer srv.Close()

	state, err := client.state("ana")
	require.NoError(t, err)
	assert.Equal(t, 425, state.Points)
	assert.Equal(t, "Principiante Ético", state.Tier.Name)
	require.Len(t, state.Tiers, 2)
}

func TestEndSession_NoContent(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	require.NoError(t, client.endSession("sess-1"))
}

func TestOrchestratorBaseURL(t *testing.T) {
	t.Setenv("INTEGRITY_ORCHESTRATOR_URL", "")
	assert.Equal(t, defaultOrchestratorURL, orchestratorBaseURL())

	t.Setenv("INTEGRITY_ORCHESTRATOR_URL", "http://remote:9999")
	assert.Equal(t, "http://remote:9999", orchestratorBaseURL())
}
