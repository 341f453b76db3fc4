// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/arcade/internal/plugin"
	"github.com/holomush/arcade/internal/plugin/hostfunc"
)

// Compile-time interface check.
var _ plugin.Loader = (*Loader)(nil)

// VersionGlobal is the optional Lua global declaring a unit's version.
const VersionGlobal = "VERSION"

// Loader compiles .lua files into units. Each unit owns one Lua state that
// lives until the unit is replaced or unloaded.
type Loader struct {
	sandbox     *Sandbox
	hostFuncs   *hostfunc.Functions
	loadTimeout time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithSandbox sets the sandbox unit states are opened in.
func WithSandbox(s *Sandbox) Option {
	return func(l *Loader) {
		l.sandbox = s
	}
}

// WithHostFunctions sets the arcade.* host functions exposed to units. Nil
// leaves the arcade global undefined.
func WithHostFunctions(hf *hostfunc.Functions) Option {
	return func(l *Loader) {
		l.hostFuncs = hf
	}
}

// WithLoadTimeout bounds execution of a file's top-level chunk.
func WithLoadTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.loadTimeout = d
	}
}

// NewLoader creates a Lua loader. Units get the default host functions
// unless WithHostFunctions replaces them.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		sandbox:   NewSandbox(),
		hostFuncs: hostfunc.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Kind implements plugin.Loader.
func (l *Loader) Kind() string { return "lua" }

// Extension implements plugin.Loader.
func (l *Loader) Extension() string { return ".lua" }

// Load runs src's top-level chunk in a fresh state and returns the unit.
// Syntax and runtime errors are returned as *plugin.Fault wrapped in oops.
func (l *Loader) Load(ctx context.Context, src *plugin.Source) (plugin.Unit, error) {
	errb := oops.In("lua").With("unit", src.Name).With("path", src.Path)

	L, err := l.sandbox.Open(ctx)
	if err != nil {
		return nil, errb.Hint("failed to create state").Wrap(err)
	}
	if l.hostFuncs != nil {
		l.hostFuncs.Register(L, src.Name)
	}

	if l.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.loadTimeout)
		defer cancel()
	}
	L.SetContext(ctx)
	defer L.RemoveContext()

	fn, err := L.Load(bytes.NewReader(src.Content), src.Name+src.Ext)
	if err != nil {
		L.Close()
		return nil, errb.With("operation", "compile").Wrap(toFault(err))
	}
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		L.Close()
		return nil, errb.With("operation", "execute").Wrap(toFault(err))
	}

	version, err := declaredVersion(L)
	if err != nil {
		L.Close()
		return nil, errb.Code(plugin.CodeInvalidVersion).Wrap(err)
	}

	return newUnit(src.Name, L, version), nil
}

func declaredVersion(L *lua.LState) (string, error) {
	switch v := L.GetGlobal(VersionGlobal).(type) {
	case *lua.LNilType:
		return "", nil
	case lua.LString:
		return string(v), nil
	default:
		return "", oops.Errorf("%s must be a string, got %s", VersionGlobal, v.Type())
	}
}

// toFault converts a gopher-lua error into a unit fault.
func toFault(err error) *plugin.Fault {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return &plugin.Fault{Kind: "error", Message: err.Error()}
	}

	f := &plugin.Fault{
		Kind:  faultKind(apiErr.Type),
		Trace: apiErr.StackTrace,
	}
	if apiErr.Object != nil {
		f.Message = apiErr.Object.String()
	} else if apiErr.Cause != nil {
		f.Message = apiErr.Cause.Error()
	}
	return f
}

func faultKind(t lua.ApiErrorType) string {
	switch t {
	case lua.ApiErrorSyntax:
		return "syntax"
	case lua.ApiErrorFile:
		return "file"
	case lua.ApiErrorRun:
		return "runtime"
	case lua.ApiErrorPanic:
		return "panic"
	default:
		return "error"
	}
}
