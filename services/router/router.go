// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router selects a completion backend for each request and
// degrades gracefully when backends misbehave. Selection is driven by
// a hot-reloadable policy (character affinity plus a fallback order),
// gated per backend by a circuit breaker, and paced by a per-backend
// rate limiter.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

var routerTracer = otel.Tracer("aleutian.integrity.router")

// ErrNoBackendAvailable is returned when every configured backend was
// skipped or failed for the request.
var ErrNoBackendAvailable = errors.New("no completion backend available")

// Request is one routing request.
type Request struct {
	// Prompt is the fully assembled prompt to complete.
	Prompt string

	// Character is the scenario persona the reply speaks as. Used for
	// policy affinity; empty means no affinity.
	Character string

	// SessionID scopes spend accounting for the policy's cost ceiling.
	// Empty means the request counts against no ceiling.
	SessionID string

	// Params tunes generation on whichever backend ends up serving.
	Params provider.GenerationParams
}

// Router dispatches completion requests across the registered
// backends.
//
// # Thread Safety
//
// Router is safe for concurrent use.
type Router struct {
	clients  map[provider.BackendID]provider.CompletionClient
	breakers *BreakerSet
	profiles *ProfileStore
	policy   *PolicySource

	mu       sync.Mutex
	limiters map[provider.BackendID]*rate.Limiter
	spend    map[string]float64

	// onFailure, when set, is told about every failed backend attempt.
	// The service wires it to the failure metrics.
	onFailure func(backend provider.BackendID, kind provider.ErrorKind)

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a router over the given backends. The policy source must
// not be nil; use NewPolicySource(DefaultRoutingPolicy()) when no
// policy file is configured.
func New(clients []provider.CompletionClient, policy *PolicySource) *Router {
	byID := make(map[provider.BackendID]provider.CompletionClient, len(clients))
	for _, c := range clients {
		byID[c.ID()] = c
	}
	return &Router{
		clients:  byID,
		breakers: NewBreakerSet(DefaultBreakerConfig()),
		profiles: NewProfileStore(),
		policy:   policy,
		limiters: make(map[provider.BackendID]*rate.Limiter),
		spend:    make(map[string]float64),
		sleep:    sleepCtx,
	}
}

// SetFailureHook installs the per-attempt failure callback. Call
// before serving requests; the hook is not guarded for concurrent
// replacement.
func (r *Router) SetFailureHook(fn func(backend provider.BackendID, kind provider.ErrorKind)) {
	r.onFailure = fn
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Breakers exposes the breaker set for status reporting.
func (r *Router) Breakers() *BreakerSet { return r.breakers }

// Profiles exposes the per-backend statistics store.
func (r *Router) Profiles() *ProfileStore { return r.profiles }

// Backends returns the IDs of all registered backends.
func (r *Router) Backends() []provider.BackendID {
	out := make([]provider.BackendID, 0, len(r.clients))
	for id := range r.clients {
		out = append(out, id)
	}
	return out
}

// Client returns the registered adapter for a backend, if any.
func (r *Router) Client(backend provider.BackendID) (provider.CompletionClient, bool) {
	c, ok := r.clients[backend]
	return c, ok
}

// ReportQuality blends an analyzer-derived quality reading for a
// completed exchange into the backend's profile. Profile writes stay
// on the router-owned path; callers never touch the store directly.
func (r *Router) ReportQuality(backend provider.BackendID, quality float64) {
	r.profiles.ObserveQuality(backend, quality)
}

// ForgetSession drops a session's spend accounting. Call when the
// session ends so the ceiling map does not grow without bound.
func (r *Router) ForgetSession(sessionID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	delete(r.spend, sessionID)
	r.mu.Unlock()
}

func (r *Router) sessionSpend(sessionID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spend[sessionID]
}

func (r *Router) addSpend(sessionID string, costUSD float64) {
	if sessionID == "" || costUSD <= 0 {
		return
	}
	r.mu.Lock()
	r.spend[sessionID] += costUSD
	r.mu.Unlock()
}

// estimatedCost predicts what one call to the backend will cost, from
// its observed average. Unobserved backends estimate zero so a fresh
// backend is never skipped on the ceiling.
func (r *Router) estimatedCost(backend provider.BackendID) float64 {
	p, ok := r.profiles.Snapshot(backend)
	if !ok || p.TotalCalls == 0 {
		return 0
	}
	return p.TotalCostUSD / float64(p.TotalCalls)
}

func (r *Router) limiter(backend provider.BackendID, rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[backend]
	if !ok || l.Limit() != rate.Limit(rps) {
		l = rate.NewLimiter(rate.Limit(rps), 1)
		r.limiters[backend] = l
	}
	return l
}

// Dispatch routes one request.
//
// # Description
//
// Backends are tried in policy order: the character's affinity backend
// first, then the fallback chain. The affinity pick is rejected when
// its EWMA latency sits above the policy's latency budget; fallback
// candidates are skipped when the session's remaining cost ceiling
// cannot cover their estimated call cost. A backend is also skipped
// when its breaker is open or it is not registered. Every call carries
// the policy's per-call timeout unless the caller set one. On a
// rate-limited reply the same backend gets exactly one retry after the
// policy backoff; every other failure kind falls straight through to
// the next backend. The first success commits latency, cost, and
// session spend and returns.
//
// # Outputs
//
//   - *provider.Completion: The winning backend's reply.
//   - error: ErrNoBackendAvailable when the chain is exhausted, or the
//     context error if the caller's deadline fired mid-chain.
func (r *Router) Dispatch(ctx context.Context, req Request) (*provider.Completion, error) {
	ctx, span := routerTracer.Start(ctx, "Router.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("route.character", req.Character))

	policy := r.policy.Current()
	order := policy.Order(req.Character)
	affinity, hasAffinity := policy.CharacterAffinity[req.Character]
	if req.Params.Timeout == 0 {
		req.Params.Timeout = policy.PerCallTimeout
	}

	var lastErr error
	for _, backend := range order {
		client, ok := r.clients[backend]
		if !ok {
			slog.Debug("Policy names an unregistered backend, skipping", "backend", backend)
			continue
		}
		if hasAffinity && backend == affinity && policy.MaxLatencyBudgetMs > 0 {
			if p, observed := r.profiles.Snapshot(backend); observed && p.AvgLatencyMs > policy.MaxLatencyBudgetMs {
				slog.Debug("Affinity backend over latency budget, walking fallback order",
					"backend", backend,
					"avg_latency_ms", p.AvgLatencyMs,
					"budget_ms", policy.MaxLatencyBudgetMs)
				continue
			}
		}
		if (!hasAffinity || backend != affinity) && policy.CostCeilingUSD > 0 && req.SessionID != "" {
			remaining := policy.CostCeilingUSD - r.sessionSpend(req.SessionID)
			if est := r.estimatedCost(backend); est > remaining {
				slog.Debug("Backend over remaining session cost ceiling, skipping",
					"backend", backend,
					"estimated_cost_usd", est,
					"remaining_usd", remaining)
				continue
			}
		}
		breaker := r.breakers.Get(backend)
		if !breaker.Allow() {
			slog.Debug("Breaker open, skipping backend", "backend", backend)
			continue
		}
		if l := r.limiter(backend, policy.RequestsPerSecond); l != nil {
			if err := l.Wait(ctx); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}

		result, err := r.tryBackend(ctx, client, req, policy.RateLimitBackoff)
		if err == nil {
			breaker.RecordSuccess()
			r.profiles.ObserveSuccess(backend, time.Duration(result.LatencyMs)*time.Millisecond, result.CostEstimate)
			r.addSpend(req.SessionID, result.CostEstimate)
			span.SetAttributes(attribute.String("route.backend", string(backend)))
			return result, nil
		}

		breaker.RecordFailure()
		r.profiles.ObserveFailure(backend)
		if r.onFailure != nil {
			r.onFailure(backend, provider.KindOf(err))
		}
		lastErr = err
		slog.Warn("Backend failed, falling through",
			"backend", backend,
			"kind", provider.KindOf(err).String(),
			"error", err)

		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, ctx.Err().Error())
			return nil, ctx.Err()
		}
	}

	span.SetStatus(codes.Error, ErrNoBackendAvailable.Error())
	if lastErr != nil {
		return nil, errors.Join(ErrNoBackendAvailable, lastErr)
	}
	return nil, ErrNoBackendAvailable
}

// tryBackend runs one completion, with a single paced retry when the
// backend reports rate limiting.
func (r *Router) tryBackend(ctx context.Context, client provider.CompletionClient, req Request, backoff time.Duration) (*provider.Completion, error) {
	result, err := client.Complete(ctx, req.Prompt, req.Params)
	if err == nil {
		return result, nil
	}
	if provider.KindOf(err) != provider.KindRateLimited {
		return nil, err
	}

	slog.Debug("Backend rate limited, retrying once after backoff",
		"backend", client.ID(),
		"backoff", backoff)
	if serr := r.sleep(ctx, backoff); serr != nil {
		return nil, err
	}
	return client.Complete(ctx, req.Prompt, req.Params)
}
