// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianIntegrity/pkg/validation"
)

// ErrSessionNotFound is returned for unknown or already-expired
// sessions.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCancelled is returned when an operation races a cancel.
var ErrSessionCancelled = errors.New("session cancelled")

// ManagerConfig tunes the session registry.
type ManagerConfig struct {
	// IdleTTL is how long a session may sit idle before the sweep
	// removes it. Default: 24 hours.
	IdleTTL time.Duration

	// SweepInterval is how often the background sweep runs.
	// Default: 10 minutes.
	SweepInterval time.Duration

	// Clock is the time source. Default: SystemClock().
	Clock Clock

	// OnEvicted is called after a session is removed by the sweep.
	// Called synchronously from the sweep goroutine; keep it fast.
	OnEvicted func(sess *Session)
}

// DefaultManagerConfig returns production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTTL:       24 * time.Hour,
		SweepInterval: 10 * time.Minute,
		Clock:         SystemClock(),
	}
}

type entry struct {
	// mu serializes all work on one session so concurrent submits
	// commit turns in completion order.
	mu     sync.Mutex
	sess   *Session
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager is the in-memory session registry.
//
// # Thread Safety
//
// Manager is safe for concurrent use. Operations on distinct sessions
// run in parallel; operations on one session serialize.
type Manager struct {
	config ManagerConfig

	mu      sync.RWMutex
	entries map[string]*entry

	base       context.Context
	cancelBase context.CancelFunc
}

// NewManager creates a registry. Call Start to enable the TTL sweep.
func NewManager(config ManagerConfig) *Manager {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 24 * time.Hour
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 10 * time.Minute
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:     config,
		entries:    make(map[string]*entry),
		base:       base,
		cancelBase: cancel,
	}
}

// Create registers a new session and returns a snapshot of it.
func (m *Manager) Create(userID, character, scenarioID string) (*Session, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	now := m.config.Clock.Now().UTC()
	sess := &Session{
		UserID:     userID,
		SessionID:  uuid.NewString(),
		Character:  character,
		ScenarioID: scenarioID,
		CreatedAt:  now,
		LastActive: now,
	}
	ctx, cancel := context.WithCancel(m.base)

	m.mu.Lock()
	m.entries[sess.SessionID] = &entry{sess: sess, ctx: ctx, cancel: cancel}
	m.mu.Unlock()

	slog.Info("session.manager: created session",
		"session_id", sess.SessionID,
		"user_id", userID,
		"character", character,
		"scenario_id", scenarioID)
	return sess.clone(), nil
}

func (m *Manager) lookup(sessionID string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[sessionID]
	return e, ok
}

// Known reports whether the session exists for the user. Satisfies the
// ledger's session checker.
func (m *Manager) Known(userID, sessionID string) bool {
	e, ok := m.lookup(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.UserID == userID
}

// Get returns a snapshot of the session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	e, ok := m.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.clone(), nil
}

// WithSession runs fn while holding the session's exclusive lock.
//
// # Description
//
// fn receives the live session plus a context that is cancelled if
// the session is cancelled or expired mid-flight; pass that context
// to any backend call so partial work is abandoned straightaway. The
// session is only mutated through fn returning nil — on error the
// turn log is untouched by convention (fn must not append before its
// fallible work has succeeded).
func (m *Manager) WithSession(sessionID string, fn func(ctx context.Context, sess *Session) error) error {
	e, ok := m.lookup(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrSessionCancelled, sessionID)
	}
	if err := fn(e.ctx, e.sess); err != nil {
		return err
	}
	e.sess.LastActive = m.config.Clock.Now().UTC()
	return nil
}

// AppendTurn commits one turn to the session.
//
// Turn timestamps are clamped to be monotone: a turn carrying an
// earlier timestamp than the last committed one is stamped with the
// previous timestamp instead. A zero timestamp gets the current time.
func (m *Manager) AppendTurn(sessionID string, turn Turn) error {
	return m.WithSession(sessionID, func(_ context.Context, sess *Session) error {
		if turn.Timestamp.IsZero() {
			turn.Timestamp = m.config.Clock.Now().UTC()
		}
		if last, ok := sess.LastTurn(); ok && turn.Timestamp.Before(last.Timestamp) {
			turn.Timestamp = last.Timestamp
		}
		sess.Turns = append(sess.Turns, turn)
		return nil
	})
}

// Cancel cancels a session's in-flight work and removes it. Cancelling
// an unknown session is a no-op.
func (m *Manager) Cancel(sessionID string) {
	m.mu.Lock()
	e, ok := m.entries[sessionID]
	if ok {
		delete(m.entries, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	e.cancel()
	slog.Info("session.manager: cancelled session", "session_id", sessionID)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Start launches the TTL sweep. Blocks until ctx is cancelled; run it
// in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	slog.Info("session.manager: TTL sweep started",
		"idle_ttl", m.config.IdleTTL,
		"interval", m.config.SweepInterval)

	for {
		select {
		case <-ticker.C:
			m.SweepOnce()
		case <-ctx.Done():
			slog.Info("session.manager: TTL sweep stopped")
			return
		}
	}
}

// SweepOnce evicts every session idle longer than the TTL. Exported so
// tests and admin endpoints can force a sweep.
func (m *Manager) SweepOnce() int {
	cutoff := m.config.Clock.Now().UTC().Add(-m.config.IdleTTL)

	m.mu.Lock()
	var expired []*entry
	for id, e := range m.entries {
		e.mu.Lock()
		idle := e.sess.LastActive.Before(cutoff)
		e.mu.Unlock()
		if idle {
			expired = append(expired, e)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()

	for _, e := range expired {
		e.cancel()
		slog.Info("session.manager: evicted idle session",
			"session_id", e.sess.SessionID,
			"user_id", e.sess.UserID,
			"last_active", e.sess.LastActive)
		if m.config.OnEvicted != nil {
			m.config.OnEvicted(e.sess.clone())
		}
	}
	return len(expired)
}

// Close cancels every session and stops handing out contexts.
func (m *Manager) Close() {
	m.cancelBase()
	m.mu.Lock()
	m.entries = make(map[string]*entry)
	m.mu.Unlock()
}
