// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitsDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestValidateCommand_AllGood(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := unitsDir(t, map[string]string{
		"guess.lua": guessSource,
		"_wip.lua":  "((",
	})

	out, _, err := execute(t, "", "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ guess")
	assert.NotContains(t, out, "_wip")
}

func TestValidateCommand_ReportsProblems(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := unitsDir(t, map[string]string{
		"guess.lua":   guessSource,
		"greet.lua":   greetOnlySource,
		"broken.lua":  "function start( return",
		"badver.lua":  "VERSION = \"one\"\n" + guessSource,
		"goodver.lua": "VERSION = \"1.2.0\"\n" + guessSource,
	})

	out, _, err := execute(t, "", "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 5 units have problems")

	assert.Contains(t, out, "✓ guess")
	assert.Contains(t, out, "✓ goodver (lua 1.2.0)")
	assert.Contains(t, out, "! greet")
	assert.Contains(t, out, "missing message()")
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "✗ badver")
	assert.Contains(t, out, "LoadFailure")
}

func TestValidateCommand_EmptyDirectory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()

	out, _, err := execute(t, "", "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no units found")
}
