// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine is the orchestration core: it owns one exchange end
// to end — analyze the trainee's message, assemble the persona prompt,
// dispatch through the router, commit both turns, and fold the verdict
// into the gamification ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianIntegrity/services/analyzer"
	"github.com/AleutianAI/AleutianIntegrity/services/benchmark"
	"github.com/AleutianAI/AleutianIntegrity/services/ledger"
	"github.com/AleutianAI/AleutianIntegrity/services/provider"
	"github.com/AleutianAI/AleutianIntegrity/services/router"
	"github.com/AleutianAI/AleutianIntegrity/services/scenario"
	"github.com/AleutianAI/AleutianIntegrity/services/session"
)

var tracer = otel.Tracer("aleutian.integrity.engine")

// ErrServiceDegraded is the user-facing error for an exhausted backend
// chain. It deliberately names no backend and carries no raw error
// text.
var ErrServiceDegraded = errors.New("service temporarily degraded, please retry")

// consistencyMinTurns is how many trainee turns a session needs before
// a clean completion also earns the consistency bonus.
const consistencyMinTurns = 3

// ExchangeResult is the outcome of one submitted message.
type ExchangeResult struct {
	Reply   string             `json:"reply"`
	Backend provider.BackendID `json:"backend"`

	// Character is the session's character, even when the auditor
	// persona answered.
	Character string `json:"character"`

	// ScoreDelta is the points awarded for this exchange; AwardKind
	// names the event behind a non-zero delta.
	ScoreDelta int              `json:"score_delta"`
	AwardKind  ledger.EventKind `json:"award_kind,omitempty"`

	RiskLevel       analyzer.RiskLevel `json:"risk_level"`
	CorruptionScore float64            `json:"corruption_score"`

	// Escalated is set when the analyzer demanded intervention; the
	// reply then comes from the strict auditor persona regardless of
	// the session's character.
	Escalated bool `json:"escalated"`

	Points int    `json:"points"`
	Tier   string `json:"tier"`
}

// CompletionResult is the outcome of finishing a scenario.
type CompletionResult struct {
	ScoreDelta       int    `json:"score_delta"`
	ConsistencyBonus bool   `json:"consistency_bonus"`
	Points           int    `json:"points"`
	Tier             string `json:"tier"`
}

// sessionStats is per-session engine bookkeeping outside the session
// manager's turn log.
type sessionStats struct {
	userTurns   int
	escalations int
}

// Engine wires the services together.
//
// # Thread Safety
//
// Engine is safe for concurrent use; per-session work serializes on
// the session manager's lock.
type Engine struct {
	sessions *session.Manager
	router   *router.Router
	analyzer *analyzer.Analyzer
	ledger   *ledger.Ledger
	bench    *benchmark.Coordinator

	clock session.Clock

	mu    sync.Mutex
	stats map[string]*sessionStats
}

// New builds the engine. All collaborators are required except bench,
// which may be nil when benchmarking is disabled.
func New(sessions *session.Manager, rt *router.Router, an *analyzer.Analyzer, lg *ledger.Ledger, bench *benchmark.Coordinator) *Engine {
	return &Engine{
		sessions: sessions,
		router:   rt,
		analyzer: an,
		ledger:   lg,
		bench:    bench,
		clock:    session.SystemClock(),
		stats:    make(map[string]*sessionStats),
	}
}

// StartSession opens a training session after validating that the
// character and scenario exist.
func (e *Engine) StartSession(userID, characterID, scenarioID string) (*session.Session, error) {
	character, err := scenario.CharacterByID(characterID)
	if err != nil {
		return nil, err
	}
	if _, err := scenario.ByID(scenarioID); err != nil {
		return nil, err
	}
	sess, err := e.sessions.Create(userID, character.ID, scenarioID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.stats[sess.SessionID] = &sessionStats{}
	e.mu.Unlock()
	return sess, nil
}

// SubmitMessage runs one exchange.
//
// # Description
//
// The message is scored first; on a verdict demanding intervention the
// strict auditor persona answers instead of the session's character
// and the result is flagged escalated. The persona prompt goes through
// the router's affinity/fallback chain; on success both turns commit
// in completion order under the session lock, then points are awarded
// from the integrity signals:
//
//   - integrity signals with risk at most low → ethical choice (+100)
//   - integrity signals with risk medium or higher → corruption
//     resistance (+300), holding the line under active temptation
//   - no integrity signals → no award, regardless of risk
//   - escalated exchanges → no award at all
//
// # Outputs
//
//   - *ExchangeResult: Reply plus verdict, award, and updated state.
//   - error: ErrServiceDegraded when every backend failed; session
//     errors pass through unchanged.
func (e *Engine) SubmitMessage(ctx context.Context, sessionID, text string) (*ExchangeResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.SubmitMessage")
	defer span.End()

	snap, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	verdict := e.analyzer.Analyze(text, analyzer.Context{Character: snap.Character})
	span.SetAttributes(
		attribute.String("integrity.risk_level", string(verdict.RiskLevel)),
		attribute.Float64("integrity.corruption_score", verdict.CorruptionScore),
	)

	characterID := snap.Character
	if verdict.RequiresIntervention {
		characterID = scenario.CharacterAuditor
		slog.Warn("engine: escalating exchange to auditor persona",
			"session_id", sessionID,
			"risk_level", string(verdict.RiskLevel),
			"corruption_score", verdict.CorruptionScore)
	}
	character, err := scenario.CharacterByID(characterID)
	if err != nil {
		return nil, err
	}
	scen, err := scenario.ByID(snap.ScenarioID)
	if err != nil {
		return nil, err
	}
	state, err := e.ledger.State(ctx, snap.UserID)
	if err != nil {
		return nil, err
	}

	prompt := scenario.BuildPrompt(scenario.PromptInput{
		Character:   character,
		Scenario:    scen,
		Turns:       snap.Turns,
		Points:      state.Points,
		UserMessage: text,
	})

	var completion *provider.Completion
	err = e.sessions.WithSession(sessionID, func(sctx context.Context, sess *session.Session) error {
		// Honor both the caller's deadline and session cancellation.
		callCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(sctx, cancel)
		defer stop()

		completion, err = e.router.Dispatch(callCtx, router.Request{
			Prompt:    prompt,
			Character: character.ID,
			SessionID: sessionID,
		})
		if err != nil {
			return err
		}
		now := e.clock.Now().UTC()
		if last, ok := sess.LastTurn(); ok && now.Before(last.Timestamp) {
			now = last.Timestamp
		}
		sess.Turns = append(sess.Turns,
			session.Turn{Speaker: session.SpeakerUser, Text: text, Timestamp: now},
			session.Turn{
				Speaker:   session.SpeakerCharacter,
				Text:      completion.Text,
				Timestamp: now,
				Backend:   completion.Backend,
				LatencyMs: completion.LatencyMs,
			})
		return nil
	})
	if err != nil {
		if errors.Is(err, router.ErrNoBackendAvailable) {
			span.SetStatus(codes.Error, err.Error())
			slog.Error("engine: backend chain exhausted", "session_id", sessionID, "error", err)
			return nil, ErrServiceDegraded
		}
		return nil, err
	}

	// The exchange's quality reading: a clean exchange reflects well on
	// the backend, one the analyzer flagged pulls its score down.
	e.router.ReportQuality(completion.Backend, 1-verdict.CorruptionScore)

	e.mu.Lock()
	if st, ok := e.stats[sessionID]; ok {
		st.userTurns++
		if verdict.RequiresIntervention {
			st.escalations++
		}
	}
	e.mu.Unlock()

	delta, awardKind, err := e.award(ctx, snap.UserID, sessionID, verdict)
	if err != nil {
		return nil, err
	}
	state, err = e.ledger.State(ctx, snap.UserID)
	if err != nil {
		return nil, err
	}

	return &ExchangeResult{
		Reply:           completion.Text,
		Backend:         completion.Backend,
		Character:       snap.Character,
		ScoreDelta:      delta,
		AwardKind:       awardKind,
		RiskLevel:       verdict.RiskLevel,
		CorruptionScore: verdict.CorruptionScore,
		Escalated:       verdict.RequiresIntervention,
		Points:          state.Points,
		Tier:            state.Tier.Name,
	}, nil
}

// award translates a verdict into ledger events and returns the points
// granted and the event kind behind them. Escalated exchanges never
// award: a message bad enough for the auditor does not earn points for
// whatever integrity phrasing rode along with it.
func (e *Engine) award(ctx context.Context, userID, sessionID string, verdict analyzer.Verdict) (int, ledger.EventKind, error) {
	if verdict.RequiresIntervention || len(verdict.IntegritySignals) == 0 {
		return 0, "", nil
	}
	kind := ledger.KindEthicalChoice
	if verdict.RiskLevel != analyzer.RiskNone && verdict.RiskLevel != analyzer.RiskLow {
		kind = ledger.KindCorruptionResistance
	}
	event, err := e.ledger.RecordEvent(ctx, userID, sessionID, kind)
	if err != nil {
		return 0, "", fmt.Errorf("failed to award %s: %w", kind, err)
	}
	return event.Points, kind, nil
}

// SessionCount reports how many sessions are registered.
func (e *Engine) SessionCount() int {
	return e.sessions.Count()
}

// CompleteScenario closes out a session's scenario.
//
// The completion award always applies; a consistency bonus is added
// when the trainee held at least consistencyMinTurns exchanges without
// a single escalation.
func (e *Engine) CompleteScenario(ctx context.Context, sessionID string) (*CompletionResult, error) {
	snap, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	st := e.stats[sessionID]
	clean := st != nil && st.userTurns >= consistencyMinTurns && st.escalations == 0
	e.mu.Unlock()

	delta := 0
	event, err := e.ledger.RecordEvent(ctx, snap.UserID, sessionID, ledger.KindScenarioCompletion)
	if err != nil {
		return nil, err
	}
	delta += event.Points
	if clean {
		bonus, err := e.ledger.RecordEvent(ctx, snap.UserID, sessionID, ledger.KindConsistencyBonus)
		if err != nil {
			return nil, err
		}
		delta += bonus.Points
	}

	state, err := e.ledger.State(ctx, snap.UserID)
	if err != nil {
		return nil, err
	}
	slog.Info("engine: scenario completed",
		"session_id", sessionID,
		"user_id", snap.UserID,
		"score_delta", delta,
		"consistency_bonus", clean)
	return &CompletionResult{
		ScoreDelta:       delta,
		ConsistencyBonus: clean,
		Points:           state.Points,
		Tier:             state.Tier.Name,
	}, nil
}

// GamificationState returns the caller-facing points and tier view.
func (e *Engine) GamificationState(ctx context.Context, userID string) (*ledger.State, error) {
	return e.ledger.State(ctx, userID)
}

// RunBenchmark fans prompts across backends. Defaults to every
// registered backend when none are named.
func (e *Engine) RunBenchmark(ctx context.Context, prompts []string, backends []provider.BackendID) (*benchmark.Report, error) {
	if e.bench == nil {
		return nil, errors.New("benchmarking is not enabled")
	}
	if len(backends) == 0 {
		backends = e.router.Backends()
	}
	return e.bench.Run(ctx, prompts, backends)
}

// CancelSession aborts a session's in-flight work and forgets it,
// including its spend accounting in the router.
func (e *Engine) CancelSession(sessionID string) {
	e.sessions.Cancel(sessionID)
	e.router.ForgetSession(sessionID)
	e.mu.Lock()
	delete(e.stats, sessionID)
	e.mu.Unlock()
}
