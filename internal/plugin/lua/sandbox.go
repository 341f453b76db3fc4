// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lua runs Lua source files as units in sandboxed gopher-lua states.
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// library is a standard library a unit state may open.
type library struct {
	name string
	open lua.LGFunction
}

// unitLibraries are opened in every unit state. os, io, debug, package,
// channel and coroutine stay closed.
var unitLibraries = []library{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals are base functions removed after the libraries open. They
// reach the filesystem or compile chunks at runtime.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "module", "require"}

// Sandbox opens restricted Lua states for units.
type Sandbox struct {
	libs      []library
	blocked   []string
	callStack int
	registry  int
}

// SandboxOption configures a Sandbox.
type SandboxOption func(*Sandbox)

// WithCallStackSize bounds Lua call depth. Zero keeps the gopher-lua default.
func WithCallStackSize(n int) SandboxOption {
	return func(s *Sandbox) {
		s.callStack = n
	}
}

// WithRegistrySize bounds the Lua value stack. Zero keeps the gopher-lua default.
func WithRegistrySize(n int) SandboxOption {
	return func(s *Sandbox) {
		s.registry = n
	}
}

// WithBlockedGlobals removes additional globals, such as print, from every state.
func WithBlockedGlobals(names ...string) SandboxOption {
	return func(s *Sandbox) {
		s.blocked = append(s.blocked, names...)
	}
}

// NewSandbox creates a sandbox with the unit libraries.
func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		libs:    unitLibraries,
		blocked: append([]string(nil), blockedGlobals...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a fresh state. ctx only bounds opening the libraries.
func (s *Sandbox) Open(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: s.callStack,
		RegistrySize:  s.registry,
	})
	L.SetContext(ctx)
	defer L.RemoveContext()

	for _, lib := range s.libs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), Protect: true}, lua.LString(lib.name))
		if err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Hint("failed to open library").Wrap(err)
		}
	}
	for _, name := range s.blocked {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}
