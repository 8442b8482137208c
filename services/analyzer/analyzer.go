// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analyzer scores trainee messages for corruption-seeking
// behavior. Analysis is pure: no I/O, no clock, deterministic for a
// given input, so it can run inline on every exchange.
package analyzer

import "strings"

// RiskLevel bands the corruption score for downstream decisions.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskBands holds the banding thresholds applied to the corruption
// score. Scores below Low band as none; at or above Critical band as
// critical.
type RiskBands struct {
	Low      float64 `yaml:"low"`
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// DefaultRiskBands returns the shipped thresholds.
func DefaultRiskBands() RiskBands {
	return RiskBands{Low: 0.2, Medium: 0.4, High: 0.6, Critical: 0.8}
}

// Level bands a score.
func (b RiskBands) Level(score float64) RiskLevel {
	switch {
	case score >= b.Critical:
		return RiskCritical
	case score >= b.High:
		return RiskHigh
	case score >= b.Medium:
		return RiskMedium
	case score >= b.Low:
		return RiskLow
	default:
		return RiskNone
	}
}

// SignalMatch records one catalog signal found in a message.
type SignalMatch struct {
	ID       string         `json:"id"`
	Category SignalCategory `json:"category"`
	Weight   float64        `json:"weight"`
}

// Verdict is the analyzer's output for one message.
type Verdict struct {
	// CorruptionScore is in [0,1]: the weighted union of all matched
	// risk signals.
	CorruptionScore float64 `json:"corruption_score"`

	// RiskLevel is CorruptionScore banded by the configured RiskBands.
	RiskLevel RiskLevel `json:"risk_level"`

	// MatchedSignals lists the corruption and validation-seeking
	// signals found, in catalog order.
	MatchedSignals []SignalMatch `json:"matched_signals"`

	// IntegritySignals lists the positive signal IDs found. They do
	// not affect the score; the engine awards points from them.
	IntegritySignals []string `json:"integrity_signals"`

	// RequiresIntervention is set when the score lands in the high
	// band or above.
	RequiresIntervention bool `json:"requires_intervention"`
}

// Context carries per-exchange analysis context.
type Context struct {
	// Character is the active scenario persona. When the temptation
	// persona is active, validation-seeking weighs heavier: probing
	// "how bad is it really" while being actively tempted reads as
	// yielding, not curiosity.
	Character string
}

// temptationCharacter is the persona that applies pressure; see the
// scenario package's character table.
const temptationCharacter = "alexis"

// temptationValidationBoost scales validation-seeking weights while
// the temptation persona is active.
const temptationValidationBoost = 1.5

// Analyzer scores messages against the signal catalog.
//
// # Thread Safety
//
// Analyzer is immutable after construction and safe for concurrent
// use.
type Analyzer struct {
	bands   RiskBands
	signals []Signal
}

// New creates an analyzer with the given bands over the full catalog.
func New(bands RiskBands) *Analyzer {
	return &Analyzer{bands: bands, signals: Catalog()}
}

// Analyze scores one message.
//
// # Description
//
// Every catalog signal is matched against the lowercased message.
// Matched risk weights combine as a weighted union, 1-∏(1-wᵢ), so
// additional signals always raise the score but it never exceeds 1.
// A signal matches at most once regardless of repetitions.
func (a *Analyzer) Analyze(message string, actx Context) Verdict {
	lower := strings.ToLower(message)
	character := strings.ToLower(actx.Character)

	verdict := Verdict{}
	survival := 1.0
	for _, sig := range a.signals {
		if !sig.Pattern.MatchString(lower) {
			continue
		}
		if sig.Category == CategoryIntegrity {
			verdict.IntegritySignals = append(verdict.IntegritySignals, sig.ID)
			continue
		}
		weight := sig.Weight
		if sig.Category == CategoryValidation && character == temptationCharacter {
			weight *= temptationValidationBoost
			if weight > 1 {
				weight = 1
			}
		}
		verdict.MatchedSignals = append(verdict.MatchedSignals, SignalMatch{
			ID:       sig.ID,
			Category: sig.Category,
			Weight:   weight,
		})
		survival *= 1 - weight
	}

	verdict.CorruptionScore = 1 - survival
	verdict.RiskLevel = a.bands.Level(verdict.CorruptionScore)
	verdict.RequiresIntervention = verdict.CorruptionScore >= a.bands.High
	return verdict
}
