// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDiagnostic_Error(t *testing.T) {
	d := newDiagnostic("beta", CapabilityMessage, CategoryMissingCapability, "no message()")
	assert.Equal(t, "beta.message(): MissingCapability: no message()", d.Error())

	d = newDiagnostic("broken", "", CategoryLoadFailure, "syntax error")
	assert.Equal(t, "broken: LoadFailure: syntax error", d.Error())
}

func TestAsDiagnostic(t *testing.T) {
	d := newDiagnostic("x", CapabilityStart, CategoryUnitFault, "boom")

	got, ok := AsDiagnostic(ErrContractViolation(d))
	require.True(t, ok)
	assert.Same(t, d, got)

	_, ok = AsDiagnostic(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewDiagnosticID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newDiagnosticID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestHintFor(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostic
		want string
	}{
		{"missing uses source", Diagnostic{Unit: "b", Capability: CapabilityMessage, Category: CategoryMissingCapability, Source: "games/b.lua"}, "define a message() function in games/b.lua"},
		{"missing falls back to unit", Diagnostic{Unit: "b", Capability: CapabilityStart, Category: CategoryMissingCapability}, "define a start() function in b"},
		{"wrong type", Diagnostic{Unit: "b", Capability: CapabilityStart, Category: CategoryWrongReturnType}, "in b, make sure start() returns a string"},
		{"fault", Diagnostic{Unit: "b", Capability: CapabilityMessage, Category: CategoryUnitFault}, "check b, look at the message() function"},
		{"load", Diagnostic{Unit: "b", Category: CategoryLoadFailure, Source: "b.lua"}, "fix b.lua and save it again to retry the load"},
		{"unknown", Diagnostic{Unit: "b", Category: "Other"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hintFor(&tt.d))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "unbounded", truncate("unbounded", 0))
}

func TestTruncate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		n := rapid.IntRange(1, 64).Draw(t, "n")

		got := truncate(s, n)

		if len(s) <= n {
			assert.Equal(t, s, got)
			return
		}
		assert.LessOrEqual(t, len(got), n+3)
		assert.True(t, utf8.ValidString(got) || !utf8.ValidString(s))
		assert.Equal(t, "...", got[len(got)-3:])
	})
}

func TestSession(t *testing.T) {
	var s Session

	_, ok := s.Active()
	assert.False(t, ok)

	s.Select("alpha")
	s.Select("beta")
	name, ok := s.Active()
	assert.True(t, ok)
	assert.Equal(t, "beta", name)

	prev, had := s.Reset()
	assert.True(t, had)
	assert.Equal(t, "beta", prev)

	prev, had = s.Reset()
	assert.False(t, had)
	assert.Empty(t, prev)
}
