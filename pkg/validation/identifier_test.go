// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserID_Valid(t *testing.T) {
	valid := []string{
		"alice",
		"maria.gomez",
		"user_42",
		"compliance-team",
		"A1",
		"x",
		strings.Repeat("a", 64),
	}
	for _, id := range valid {
		assert.NoError(t, ValidateUserID(id), "expected %q to validate", id)
	}
}

func TestValidateUserID_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"event/alice",
		"alice/../bob",
		"alice bob",
		".alice",
		"-alice",
		"alice\n",
		strings.Repeat("a", 65),
	}
	for _, id := range invalid {
		assert.Error(t, ValidateUserID(id), "expected %q to be rejected", id)
	}
}

func TestSanitizeUserID(t *testing.T) {
	assert.Equal(t, "alice", SanitizeUserID("  Alice "))
	assert.Equal(t, "maria.gomez", SanitizeUserID("Maria.Gomez"))

	sanitized := SanitizeUserID("  Compliance-Team ")
	require.NoError(t, ValidateUserID(sanitized))
}

func TestValidateSessionID(t *testing.T) {
	require.NoError(t, ValidateSessionID(uuid.NewString()))

	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("not-a-uuid"))
	assert.Error(t, ValidateSessionID(strings.ToUpper(uuid.NewString())))
}
