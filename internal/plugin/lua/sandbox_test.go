// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/arcade/internal/plugin"
	pluginlua "github.com/holomush/arcade/internal/plugin/lua"
)

func openSandbox(t *testing.T, opts ...pluginlua.SandboxOption) *lua.LState {
	t.Helper()
	L, err := pluginlua.NewSandbox(opts...).Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(L.Close)
	return L
}

func TestSandbox_Globals(t *testing.T) {
	L := openSandbox(t)

	for _, name := range []string{"table", "string", "math", "tostring", "pcall", "setmetatable"} {
		assert.NotEqual(t, lua.LTNil, L.GetGlobal(name).Type(), "%s should be available", name)
	}
	for _, name := range []string{"os", "io", "debug", "package", "coroutine", "channel",
		"dofile", "loadfile", "loadstring", "load", "module", "require"} {
		assert.Equal(t, lua.LTNil, L.GetGlobal(name).Type(), "%s should be blocked", name)
	}
}

func TestSandbox_GameLibraries(t *testing.T) {
	L := openSandbox(t)

	require.NoError(t, L.DoString(`
local words = {"crane", "apple", "baker"}
table.sort(words)
first = string.upper(words[1])
mid = math.floor((1 + 100) / 2)
`))
	assert.Equal(t, "APPLE", L.GetGlobal("first").String())
	assert.Equal(t, "50", L.GetGlobal("mid").String())
}

func TestSandbox_StatesAreIsolated(t *testing.T) {
	sb := pluginlua.NewSandbox()
	a, err := sb.Open(context.Background())
	require.NoError(t, err)
	defer a.Close()
	b, err := sb.Open(context.Background())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.DoString(`secret = 42`))
	assert.Equal(t, lua.LTNil, b.GetGlobal("secret").Type())
}

func TestSandbox_WithBlockedGlobals(t *testing.T) {
	L := openSandbox(t, pluginlua.WithBlockedGlobals("print", "collectgarbage"))

	assert.Equal(t, lua.LTNil, L.GetGlobal("print").Type())
	assert.Equal(t, lua.LTNil, L.GetGlobal("collectgarbage").Type())
	assert.Equal(t, lua.LTNil, L.GetGlobal("require").Type(), "defaults stay blocked")
}

func TestSandbox_UnitCannotEscape(t *testing.T) {
	_, err := pluginlua.NewLoader().Load(context.Background(), source("escape", `
local f = io.open("/etc/passwd")
function start() return "never" end
`))
	require.Error(t, err)

	var f *plugin.Fault
	require.ErrorAs(t, err, &f)
	assert.Contains(t, f.Message, "nil")
}

func TestSandbox_CallStackSizeStopsRunawayRecursion(t *testing.T) {
	sb := pluginlua.NewSandbox(pluginlua.WithCallStackSize(64))
	u := load(t, `
local function deep(n) return deep(n + 1) + 1 end
function start() return "ready" end
function message(input) return tostring(deep(1)) end
`, pluginlua.WithSandbox(sb))

	_, err := u.Call(context.Background(), plugin.CapabilityMessage, "go")
	require.Error(t, err)

	var f *plugin.Fault
	require.ErrorAs(t, err, &f)
	assert.NotEmpty(t, f.Message)
}
