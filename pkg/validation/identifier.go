// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validators for caller-supplied
// identifiers before they reach the ledger key space or session registry.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// userIDPattern matches well-formed user identifiers:
//   - 1 to 64 characters
//   - begins with a letter or digit
//   - contains only letters, digits, dot, hyphen, and underscore
//
// Slashes are excluded because ledger keys embed the user identifier
// as a path segment ("event/{userID}/{seq}").
var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,63}$`)

// MaxUserIDLength is the maximum accepted identifier length.
const MaxUserIDLength = 64

// ValidateUserID checks that a user identifier is safe to use as a
// ledger key segment.
//
// Valid identifiers:
//   - 1-64 characters
//   - begin with a letter or digit
//   - contain only letters, digits, dots, hyphens, underscores
//
// The identifier is not modified; callers wanting normalization should
// run SanitizeUserID first.
//
// Example:
//
//	if err := validation.ValidateUserID(userID); err != nil {
//	    return nil, fmt.Errorf("invalid user id: %w", err)
//	}
//	// Safe to embed in a ledger key
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id must not be empty")
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("user id too long: %d characters (max %d)", len(userID), MaxUserIDLength)
	}
	if strings.ContainsAny(userID, "/ \t\n") {
		return fmt.Errorf("user id %q contains path separators or whitespace", userID)
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("invalid user id format: %q", userID)
	}
	return nil
}

// SanitizeUserID normalizes a raw identifier: trims surrounding
// whitespace and lowercases it. It does not guarantee validity; run
// ValidateUserID on the result.
func SanitizeUserID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateSessionID checks that a session identifier looks like a
// canonical UUID string, the only form the registry ever issues.
// Returns an error for anything else.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("invalid session id format: %q", sessionID)
	}
	return nil
}

var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
