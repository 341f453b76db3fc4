// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/arcade/internal/plugin"
)

func TestNewDirectory_InvalidPattern(t *testing.T) {
	_, err := plugin.NewDirectory(t.TempDir(), []string{".lua"}, []string{"[unclosed"})
	assert.Error(t, err)

	_, err = plugin.NewDirectory(t.TempDir(), []string{".lua"}, []string{""})
	assert.Error(t, err)
}

func TestDirectory_NameFor(t *testing.T) {
	dir := t.TempDir()
	d, err := plugin.NewDirectory(dir, []string{".lua", ".plugin"}, plugin.DefaultIgnore)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"lua file", filepath.Join(dir, "alpha.lua"), "alpha", true},
		{"binary unit", filepath.Join(dir, "echo.plugin"), "echo", true},
		{"dotted name", filepath.Join(dir, "tic.tac.lua"), "tic.tac", true},
		{"underscore prefix", filepath.Join(dir, "_helper.lua"), "", false},
		{"hidden file", filepath.Join(dir, ".alpha.lua"), "", false},
		{"unknown extension", filepath.Join(dir, "alpha.py"), "", false},
		{"no extension", filepath.Join(dir, "alpha"), "", false},
		{"bare extension", filepath.Join(dir, ".lua"), "", false},
		{"nested file", filepath.Join(dir, "sub", "alpha.lua"), "", false},
		{"other directory", filepath.Join(t.TempDir(), "alpha.lua"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.NameFor(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectory_Names(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"zeta.lua", "alpha.lua", "alpha.plugin", "_skip.lua", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.lua"), 0o750))

	d, err := plugin.NewDirectory(dir, []string{".lua", ".plugin"}, plugin.DefaultIgnore)
	require.NoError(t, err)

	names, err := d.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestDirectory_Names_MissingDirectory(t *testing.T) {
	d, err := plugin.NewDirectory(filepath.Join(t.TempDir(), "missing"), []string{".lua"}, nil)
	require.NoError(t, err)

	_, err = d.Names()
	assert.Error(t, err)
}

func TestDirectory_Lookup_ExtensionPriority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.lua"), []byte("lua"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.plugin"), []byte("bin"), 0o600))

	d, err := plugin.NewDirectory(dir, []string{".lua", ".plugin"}, nil)
	require.NoError(t, err)

	src, err := d.Lookup("alpha")
	require.NoError(t, err)
	assert.Equal(t, ".lua", src.Ext)
	assert.Equal(t, []byte("lua"), src.Content)
	assert.Equal(t, plugin.Digest([]byte("lua")), src.Digest)
	assert.Equal(t, filepath.Join(dir, "alpha.lua"), src.Path)
}

func TestDirectory_Lookup_Missing(t *testing.T) {
	d, err := plugin.NewDirectory(t.TempDir(), []string{".lua"}, nil)
	require.NoError(t, err)

	_, err = d.Lookup("nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirectory_Lookup_RejectsNamesOutsideDirectory(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "games")
	require.NoError(t, os.Mkdir(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.lua"), []byte("outside"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.lua"), []byte("nested"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_draft.lua"), []byte("draft"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.lua"), []byte("hidden"), 0o600))

	d, err := plugin.NewDirectory(dir, []string{".lua"}, plugin.DefaultIgnore)
	require.NoError(t, err)

	tests := []struct {
		name string
		unit string
	}{
		{"parent traversal", "../secret"},
		{"absolute path", filepath.Join(parent, "secret")},
		{"subdirectory", "sub/nested"},
		{"backslash", `sub\nested`},
		{"dot", "."},
		{"dot dot", ".."},
		{"empty", ""},
		{"ignored underscore", "_draft"},
		{"ignored dotfile", ".hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Lookup(tt.unit)
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestDirectory_Ensure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	d, err := plugin.NewDirectory(dir, []string{".lua"}, nil)
	require.NoError(t, err)

	created, err := d.Ensure()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = d.Ensure()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDigest(t *testing.T) {
	a := plugin.Digest([]byte("function start() end"))
	b := plugin.Digest([]byte("function start() end "))

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, plugin.Digest([]byte("function start() end")))
}
