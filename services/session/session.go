// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session owns conversation state for the training engine.
// Sessions are append-only: turns are immutable once committed and
// their timestamps never move backwards.
package session

import (
	"time"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerCharacter Speaker = "character"
)

// Turn is one committed exchange entry. Immutable after append.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	// Backend and LatencyMs are set on character turns only.
	Backend   provider.BackendID `json:"backend,omitempty"`
	LatencyMs int64              `json:"latency_ms,omitempty"`
}

// Session is one trainee conversation within a scenario.
type Session struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Character  string    `json:"character"`
	ScenarioID string    `json:"scenario_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Turns      []Turn    `json:"turns"`
}

// LastTurn returns the most recent turn, or false for a fresh session.
func (s *Session) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// clone returns a deep copy so callers never share the live slice.
func (s *Session) clone() *Session {
	out := *s
	out.Turns = make([]Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return &out
}
