// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// BreakerState represents the availability state of one backend.
//
// # States
//
//   - Closed: Normal operation, requests flow through
//   - Open: Backend tripped, requests skip it immediately
//   - HalfOpen: Cooldown elapsed, the next request is a probe
//
// # State Diagram
//
//	   ┌─────────────────────────────────────┐
//	   │                                     │
//	   ▼                                     │
//	CLOSED ──[failure threshold]──► OPEN ───┘
//	   ▲                              │
//	   │                              │
//	   └───[success]◄── HALF_OPEN ◄──┘
//	                    [cooldown]
type BreakerState int

const (
	// BreakerClosed is the normal operating state.
	BreakerClosed BreakerState = iota

	// BreakerOpen means the backend has tripped and is skipped.
	BreakerOpen

	// BreakerHalfOpen means the cooldown elapsed and a probe may run.
	BreakerHalfOpen
)

// String returns a human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// BreakerConfig controls when a backend trips and how it recovers.
type BreakerConfig struct {
	// FailureThreshold is consecutive failures before opening.
	// Default: 3
	FailureThreshold int

	// SuccessThreshold is consecutive successes to close from
	// half-open. Default: 1 — a single good probe restores service.
	SuccessThreshold int

	// OpenTimeout is how long to stay open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// Now is the clock source. Injectable so tests can drive the
	// cooldown deterministically. Default: time.Now
	Now func() time.Time

	// OnStateChange is called when state transitions.
	// Called asynchronously to avoid blocking.
	OnStateChange func(backend provider.BackendID, from, to BreakerState)
}

// DefaultBreakerConfig returns the thresholds the router ships with.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
		Now:              time.Now,
	}
}

// Breaker tracks consecutive failures for one backend.
//
// # Thread Safety
//
// Breaker is safe for concurrent use.
type Breaker struct {
	backend     provider.BackendID
	config      BreakerConfig
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	mu          sync.RWMutex
}

// NewBreaker creates a closed breaker for one backend.
func NewBreaker(backend provider.BackendID, config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Breaker{
		backend: backend,
		config:  config,
		state:   BreakerClosed,
	}
}

// Allow reports whether a request may be sent to this backend. While
// open it also performs the open→half-open transition once the
// cooldown has elapsed, so the caller's next request acts as the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.config.Now().Sub(b.lastFailure) > b.config.OpenTimeout {
			b.transitionTo(BreakerHalfOpen)
			return true
		}
		return false
	case BreakerHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		if b.successes >= b.config.SuccessThreshold {
			b.failures = 0
			b.transitionTo(BreakerClosed)
		}
	}
}

// RecordFailure notes a failed call, possibly tripping the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0
	b.lastFailure = b.config.Now()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		// A failed probe goes straight back to open.
		b.transitionTo(BreakerOpen)
	}
}

func (b *Breaker) transitionTo(state BreakerState) {
	if b.state == state {
		return
	}
	old := b.state
	b.state = state
	if b.config.OnStateChange != nil {
		// Callback runs without the lock held to prevent deadlocks.
		go b.config.OnStateChange(b.backend, old, state)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Available reports whether the backend is currently routable. Unlike
// Allow it never mutates state, so it is safe for status endpoints.
func (b *Breaker) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == BreakerOpen {
		return b.config.Now().Sub(b.lastFailure) > b.config.OpenTimeout
	}
	return true
}

// Reset forces the breaker back to closed, clearing all counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.state
	b.state = BreakerClosed
	b.failures = 0
	b.successes = 0
	if old != BreakerClosed && b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.backend, old, BreakerClosed)
	}
}

// BreakerSet holds one breaker per backend, creating them on demand.
//
// # Thread Safety
//
// BreakerSet is safe for concurrent use.
type BreakerSet struct {
	defaultConfig BreakerConfig
	breakers      map[provider.BackendID]*Breaker
	mu            sync.RWMutex
}

// NewBreakerSet creates an empty set with a shared default config.
func NewBreakerSet(defaultConfig BreakerConfig) *BreakerSet {
	return &BreakerSet{
		defaultConfig: defaultConfig,
		breakers:      make(map[provider.BackendID]*Breaker),
	}
}

// Get returns the breaker for a backend, creating it if needed.
func (s *BreakerSet) Get(backend provider.BackendID) *Breaker {
	s.mu.RLock()
	b, exists := s.breakers[backend]
	s.mu.RUnlock()
	if exists {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, exists = s.breakers[backend]; exists {
		return b
	}
	b = NewBreaker(backend, s.defaultConfig)
	s.breakers[backend] = b
	return b
}

// States returns the current state of every tracked backend.
func (s *BreakerSet) States() map[provider.BackendID]BreakerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[provider.BackendID]BreakerState, len(s.breakers))
	for backend, b := range s.breakers {
		result[backend] = b.State()
	}
	return result
}

// ResetAll resets every breaker in the set.
func (s *BreakerSet) ResetAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.breakers {
		b.Reset()
	}
}
