// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import "regexp"

// SignalCategory groups risk signals by what they reveal about the
// speaker's intent.
type SignalCategory string

const (
	// CategoryCorruption marks direct corruption-seeking language:
	// concealment, bribe euphemisms, off-record arrangements.
	CategoryCorruption SignalCategory = "corruption"

	// CategoryValidation marks validation-seeking language: probing
	// how wrong something is rather than asking for advice.
	CategoryValidation SignalCategory = "validation_seeking"

	// CategoryIntegrity marks positive signals: refusal, reporting
	// intent, transparency. These never add risk; the engine uses
	// them to award points.
	CategoryIntegrity SignalCategory = "integrity"
)

// Signal is one weighted pattern in the risk catalog. Patterns are
// bilingual (Spanish and English) because the training scenarios run
// in Spanish but trainees frequently code-switch.
type Signal struct {
	ID       string
	Category SignalCategory

	// Weight is the per-signal contribution to the corruption score,
	// in [0,1]. Integrity signals carry zero weight.
	Weight float64

	Pattern *regexp.Regexp
}

// catalog is the fixed signal set. Matching is case-insensitive; input
// is lowercased before matching so the patterns stay simple.
var catalog = []Signal{
	// --- Corruption-seeking ---
	{
		ID:       "concealment_howto",
		Category: CategoryCorruption,
		Weight:   0.60,
		Pattern: regexp.MustCompile(`cómo\s+(puedo|podría|se\s+puede)\s+(evitar|evadir|ocultar)` +
			`|how\s+(can|could|do)\s+i\s+(avoid|evade|hide|conceal)`),
	},
	{
		ID:       "hide_payment",
		Category: CategoryCorruption,
		Weight:   0.70,
		Pattern: regexp.MustCompile(`\b(hide|hiding|conceal|concealing)\b.*\b(payment|money|transaction|funds|evidence)\b` +
			`|\b(ocultar|esconder)\b.*\b(pago|dinero|transacción|fondos|evidencia)\b`),
	},
	{
		ID:       "auditor_evasion",
		Category: CategoryCorruption,
		Weight:   0.60,
		Pattern: regexp.MustCompile(`\bfrom\s+(the\s+)?(auditors?|regulators?|inspectors?)\b` +
			`|\bde\s+(los\s+)?(auditores|reguladores|inspectores)\b`),
	},
	{
		ID:       "secrecy_assurance",
		Category: CategoryCorruption,
		Weight:   0.55,
		Pattern: regexp.MustCompile(`nadie\s+(se\s+)?(enterará|sabrá|sabría|notará)` +
			`|no\s+one\s+will\s+(know|find\s+out|notice)`),
	},
	{
		ID:       "normalization_everyone",
		Category: CategoryCorruption,
		Weight:   0.45,
		Pattern:  regexp.MustCompile(`todos\s+(lo\s+)?hacen|everyone\s+does\s+it`),
	},
	{
		ID:       "normalization_industry",
		Category: CategoryCorruption,
		Weight:   0.40,
		Pattern: regexp.MustCompile(`es\s+normal\s+en\s+(esta\s+)?industria` +
			`|it'?s\s+normal\s+in\s+(this\s+)?industry`),
	},
	{
		ID:       "small_bribe_euphemism",
		Category: CategoryCorruption,
		Weight:   0.50,
		Pattern: regexp.MustCompile(`pequeño\s+(regalo|favor|porcentaje)` +
			`|small\s+(gift|favor|percentage)`),
	},
	{
		ID:       "process_acceleration",
		Category: CategoryCorruption,
		Weight:   0.35,
		Pattern:  regexp.MustCompile(`acelerar\s+(el\s+)?proceso|speed\s+up\s+the\s+process`),
	},
	{
		ID:       "informal_arrangement",
		Category: CategoryCorruption,
		Weight:   0.50,
		Pattern: regexp.MustCompile(`arreglo\s+(informal|privado)` +
			`|(informal|private)\s+arrangement`),
	},
	{
		ID:       "between_us",
		Category: CategoryCorruption,
		Weight:   0.35,
		Pattern:  regexp.MustCompile(`entre\s+nosotros|between\s+(just\s+)?us`),
	},
	{
		ID:       "off_record",
		Category: CategoryCorruption,
		Weight:   0.40,
		Pattern:  regexp.MustCompile(`off\s+the\s+record|extraoficialmente`),
	},
	{
		ID:       "no_paperwork",
		Category: CategoryCorruption,
		Weight:   0.50,
		Pattern:  regexp.MustCompile(`sin\s+papeles|no\s+paper\s*(work|trail)|without\s+paperwork`),
	},
	{
		ID:       "cash_only",
		Category: CategoryCorruption,
		Weight:   0.50,
		Pattern:  regexp.MustCompile(`efectivo\s+solamente|solo\s+en?\s*efectivo|cash\s+only`),
	},

	// --- Validation-seeking ---
	{
		ID:       "is_it_okay_if",
		Category: CategoryValidation,
		Weight:   0.25,
		Pattern:  regexp.MustCompile(`está\s+(bien|mal)\s+si|is\s+it\s+(okay|ok|wrong)\s+if`),
	},
	{
		ID:       "how_bad_is_it",
		Category: CategoryValidation,
		Weight:   0.25,
		Pattern:  regexp.MustCompile(`qué\s+tan\s+grave\s+es|how\s+bad\s+is\s+it`),
	},
	{
		ID:       "really_counts_as",
		Category: CategoryValidation,
		Weight:   0.25,
		Pattern:  regexp.MustCompile(`realmente\s+cuenta\s+como|does\s+(it|this)\s+really\s+count\s+as`),
	},
	{
		ID:       "technically_not",
		Category: CategoryValidation,
		Weight:   0.30,
		Pattern:  regexp.MustCompile(`técnicamente\s+no\s+es|technically\s+(it'?s\s+)?not`),
	},
	{
		ID:       "justify_reasons",
		Category: CategoryValidation,
		Weight:   0.25,
		Pattern: regexp.MustCompile(`justificar\s+(por|para)` +
			`|razones\s+(válidas|legítimas)\s+para` +
			`|(valid|legitimate)\s+reasons?\s+(to|for)`),
	},

	// --- Integrity (positive) ---
	{
		ID:       "refusal",
		Category: CategoryIntegrity,
		Weight:   0,
		Pattern: regexp.MustCompile(`no\s+voy\s+a\s+(aceptar|hacer|participar)|me\s+niego` +
			`|i\s+(refuse|won'?t\s+(accept|do|participate))`),
	},
	{
		ID:       "reporting_intent",
		Category: CategoryIntegrity,
		Weight:   0,
		Pattern: regexp.MustCompile(`\b(denunciar|reportar)\b|voy\s+a\s+informar` +
			`|report\s+(this|it)\s+to|whistleblow`),
	},
	{
		ID:       "transparency",
		Category: CategoryIntegrity,
		Weight:   0,
		Pattern: regexp.MustCompile(`\btransparencia\b|\btransparency\b` +
			`|hacerlo\s+(correctamente|por\s+los\s+canales)` +
			`|do\s+(this|it)\s+(properly|by\s+the\s+book)|proper\s+channels`),
	},
}

// Catalog returns the full signal set. Callers must not mutate it.
func Catalog() []Signal { return catalog }
