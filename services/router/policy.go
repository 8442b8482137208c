// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// policyValidate is the validator instance for routing policies.
var policyValidate = validator.New()

// RoutingPolicy is the operator-tunable routing configuration.
//
// # Description
//
// The policy defines the fallback order, per-character backend
// affinity, the latency budget gating the affinity pick, the
// per-session cost ceiling, the per-call timeout, the single-retry
// backoff applied on a rate-limited reply, and the per-backend request
// pacing. It is loaded from YAML and can
// be replaced at runtime through a PolicyWatcher; an invalid file on
// disk never displaces the last good policy.
type RoutingPolicy struct {
	// FallbackOrder is the backend preference order tried when no
	// affinity applies or the preferred backend fails.
	FallbackOrder []provider.BackendID `yaml:"fallback_order" validate:"required,min=1"`

	// CharacterAffinity maps a scenario character name to the backend
	// that plays it best. Missing characters use FallbackOrder.
	CharacterAffinity map[string]provider.BackendID `yaml:"character_affinity"`

	// MaxLatencyBudgetMs rejects the affinity pick when the backend's
	// EWMA latency sits above it; the request then walks the fallback
	// order instead. Zero disables the check.
	MaxLatencyBudgetMs float64 `yaml:"max_latency_budget_ms" validate:"min=0"`

	// CostCeilingUSD caps estimated spend per session. A fallback
	// candidate whose estimated next-call cost exceeds the session's
	// remaining ceiling is skipped. Zero disables the ceiling.
	CostCeilingUSD float64 `yaml:"cost_ceiling_usd" validate:"min=0"`

	// PerCallTimeout is applied to every adapter call the router
	// dispatches unless the caller set its own. Zero leaves each
	// adapter's default in force.
	PerCallTimeout time.Duration `yaml:"per_call_timeout" validate:"min=0"`

	// RateLimitBackoff is how long to wait before the single retry
	// against a backend that answered 429.
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff" validate:"min=0"`

	// RequestsPerSecond paces outbound calls per backend. Zero
	// disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
}

// DefaultRoutingPolicy returns the policy used when no file is given.
func DefaultRoutingPolicy() *RoutingPolicy {
	return &RoutingPolicy{
		FallbackOrder:      []provider.BackendID{provider.BackendOpenAI, provider.BackendKimiK2, provider.BackendQwen3},
		CharacterAffinity:  map[string]provider.BackendID{},
		MaxLatencyBudgetMs: 5000,
		CostCeilingUSD:     0.50,
		PerCallTimeout:     60 * time.Second,
		RateLimitBackoff:   500 * time.Millisecond,
		RequestsPerSecond:  0,
	}
}

// Validate checks structural and semantic constraints.
func (p *RoutingPolicy) Validate() error {
	if err := policyValidate.Struct(p); err != nil {
		return fmt.Errorf("routing policy failed validation: %w", err)
	}
	seen := make(map[provider.BackendID]bool, len(p.FallbackOrder))
	for _, b := range p.FallbackOrder {
		if seen[b] {
			return fmt.Errorf("routing policy lists backend %q twice in fallback_order", b)
		}
		seen[b] = true
	}
	for character, b := range p.CharacterAffinity {
		if !seen[b] {
			return fmt.Errorf("routing policy maps character %q to backend %q which is not in fallback_order", character, b)
		}
	}
	return nil
}

// Order returns the backend try order for the given character: the
// affinity backend first (when configured), then the fallback order
// with the affinity backend deduplicated.
func (p *RoutingPolicy) Order(character string) []provider.BackendID {
	preferred, ok := p.CharacterAffinity[character]
	if !ok {
		out := make([]provider.BackendID, len(p.FallbackOrder))
		copy(out, p.FallbackOrder)
		return out
	}
	out := make([]provider.BackendID, 0, len(p.FallbackOrder)+1)
	out = append(out, preferred)
	for _, b := range p.FallbackOrder {
		if b != preferred {
			out = append(out, b)
		}
	}
	return out
}

// LoadPolicy reads and validates a routing policy from a YAML file.
func LoadPolicy(path string) (*RoutingPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing policy %s: %w", path, err)
	}
	policy := DefaultRoutingPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse routing policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// PolicySource hands out the current policy. Router holds one so a
// reload swaps policies atomically between requests.
type PolicySource struct {
	current atomic.Pointer[RoutingPolicy]
}

// NewPolicySource creates a source with the given initial policy.
func NewPolicySource(initial *RoutingPolicy) *PolicySource {
	s := &PolicySource{}
	s.current.Store(initial)
	return s
}

// Current returns the active policy. Never nil.
func (s *PolicySource) Current() *RoutingPolicy {
	return s.current.Load()
}

// Replace installs a new policy.
func (s *PolicySource) Replace(p *RoutingPolicy) {
	s.current.Store(p)
}

// PolicyWatcher hot-reloads the routing policy when its file changes.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type PolicyWatcher struct {
	path    string
	source  *PolicySource
	watcher *fsnotify.Watcher
}

// NewPolicyWatcher creates a watcher for the given policy file. The
// file must parse at construction time so the service never starts on
// a broken policy.
func NewPolicyWatcher(path string, source *PolicySource) (*PolicyWatcher, error) {
	policy, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}
	source.Replace(policy)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &PolicyWatcher{
		path:    path,
		source:  source,
		watcher: watcher,
	}, nil
}

// Start begins watching for policy file changes. Blocks until the
// context is cancelled. Should be run in a goroutine.
//
// Editors often replace rather than rewrite files, so the parent
// directory is watched and events are filtered by name.
func (w *PolicyWatcher) Start(ctx context.Context) {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		slog.Warn("Failed to watch routing policy directory",
			"dir", dir,
			"error", err)
		return
	}
	slog.Info("Watching routing policy for changes", "path", w.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			policy, err := LoadPolicy(w.path)
			if err != nil {
				// Keep the last good policy.
				slog.Error("Routing policy reload rejected", "error", err)
				continue
			}
			w.source.Replace(policy)
			slog.Info("Routing policy reloaded",
				"fallback_order", fmt.Sprintf("%v", policy.FallbackOrder))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Routing policy watcher error", "error", err)
		case <-ctx.Done():
			_ = w.watcher.Close()
			return
		}
	}
}
