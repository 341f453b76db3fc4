// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireOops fails the test unless err is, or wraps, an oops error.
func RequireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.Truef(t, ok, "want an oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode checks the oops code carried by err.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	RequireOops(t, err)
	assert.Equal(t, code, Code(err), "error: %v", err)
}

// AssertErrorContext checks one key of err's oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	attrs := RequireOops(t, err).Context()
	if assert.Contains(t, attrs, key) {
		assert.Equal(t, value, attrs[key])
	}
}
