// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ledger keeps the gamification score as an append-only event
// log. Points per event kind come from a fixed table; the achievement
// tier is always derived from the cumulative sum, never stored, so
// points and tier cannot drift apart.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventKind names one scoreable action. The ledger does not judge
// when a kind applies; the engine decides that from the analyzer
// verdict and scenario progress and passes the kind in.
type EventKind string

const (
	KindEthicalChoice        EventKind = "ethical_choice"
	KindPartialUnderstanding EventKind = "partial_understanding"
	KindReasoningImprovement EventKind = "reasoning_improvement"
	KindScenarioCompletion   EventKind = "scenario_completion"
	KindConsistencyBonus     EventKind = "consistency_bonus"
	KindIntegrityChallenge   EventKind = "integrity_challenge_passed"
	KindCorruptionResistance EventKind = "corruption_resistance"
)

// pointsTable fixes the award per event kind.
var pointsTable = map[EventKind]int{
	KindEthicalChoice:        100,
	KindPartialUnderstanding: 50,
	KindReasoningImprovement: 75,
	KindScenarioCompletion:   25,
	KindConsistencyBonus:     150,
	KindIntegrityChallenge:   200,
	KindCorruptionResistance: 300,
}

// Points returns the award for a kind. The second return is false for
// unknown kinds.
func Points(kind EventKind) (int, bool) {
	p, ok := pointsTable[kind]
	return p, ok
}

// Tier is one named achievement level.
type Tier struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
}

// tiers is ordered by ascending threshold. The threshold is an
// inclusive lower bound: exactly 500 points is already a Guardián.
var tiers = []Tier{
	{Name: "Principiante Ético", Threshold: 0},
	{Name: "Guardián de Integridad", Threshold: 500},
	{Name: "Defensor de Principios", Threshold: 1500},
	{Name: "Maestro de Ética", Threshold: 3000},
	{Name: "Líder Íntegro", Threshold: 5000},
	{Name: "Campeón de Integridad", Threshold: 10000},
}

// TierFor maps cumulative points to the greatest tier whose threshold
// does not exceed them.
func TierFor(points int) Tier {
	current := tiers[0]
	for _, t := range tiers {
		if points >= t.Threshold {
			current = t
		}
	}
	return current
}

// Tiers returns the ordered tier table.
func Tiers() []Tier { return tiers }

// ScoreEvent is one immutable ledger entry.
type ScoreEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	Points    int       `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the derived gamification view for one user.
type State struct {
	UserID     string `json:"user_id"`
	Points     int    `json:"points"`
	Tier       Tier   `json:"tier"`
	EventCount int    `json:"event_count"`
}

// ErrUnknownSession is returned when an event names a session that was
// never registered with the session manager.
var ErrUnknownSession = errors.New("unknown session")

// ErrUnknownKind is returned for kinds missing from the points table.
var ErrUnknownKind = errors.New("unknown event kind")

// SessionChecker answers whether a session exists for a user. The
// session manager satisfies this.
type SessionChecker interface {
	Known(userID, sessionID string) bool
}

// Ledger records score events and derives per-user state.
//
// # Thread Safety
//
// Ledger is safe for concurrent use when its EventStore is.
type Ledger struct {
	store    EventStore
	sessions SessionChecker
	now      func() time.Time
}

// New creates a ledger over the given store. sessions may be nil, in
// which case session validation is skipped (benchmarks record against
// synthetic sessions).
func New(store EventStore, sessions SessionChecker) *Ledger {
	return &Ledger{store: store, sessions: sessions, now: time.Now}
}

// RecordEvent appends one score event.
//
// # Outputs
//
//   - *ScoreEvent: The stored event, with ID, points, and timestamp
//     filled in.
//   - error: ErrUnknownKind for kinds outside the points table,
//     ErrUnknownSession when the session was never registered, or the
//     store's write error.
func (l *Ledger) RecordEvent(ctx context.Context, userID, sessionID string, kind EventKind) (*ScoreEvent, error) {
	points, ok := Points(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if l.sessions != nil && !l.sessions.Known(userID, sessionID) {
		return nil, fmt.Errorf("%w: user=%s session=%s", ErrUnknownSession, userID, sessionID)
	}

	event := &ScoreEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Kind:      kind,
		Points:    points,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append score event: %w", err)
	}
	slog.Debug("Recorded score event",
		"user_id", userID,
		"kind", string(kind),
		"points", points)
	return event, nil
}

// State derives the current gamification state for a user. A user
// with no events is a Principiante Ético with zero points, not an
// error.
func (l *Ledger) State(ctx context.Context, userID string) (*State, error) {
	events, err := l.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list score events: %w", err)
	}
	total := 0
	for _, e := range events {
		total += e.Points
	}
	return &State{
		UserID:     userID,
		Points:     total,
		Tier:       TierFor(total),
		EventCount: len(events),
	}, nil
}

// History returns a user's events in append order.
func (l *Ledger) History(ctx context.Context, userID string) ([]ScoreEvent, error) {
	return l.store.ListByUser(ctx, userID)
}
