// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hostfunc provides host functions to Lua units.
//
// Host functions are exposed under the global "arcade" table. None of them
// touch the filesystem or the network.
package hostfunc

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/arcade/internal/logging"
)

// GlobalName is the Lua global holding the host function table.
const GlobalName = "arcade"

// Functions provides host functions to Lua units.
type Functions struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures Functions.
type Option func(*Functions)

// WithLogger sets the logger used by arcade.log.
func WithLogger(l *slog.Logger) Option {
	return func(f *Functions) {
		f.logger = l
	}
}

// WithClock overrides the time source used by arcade.now.
func WithClock(now func() time.Time) Option {
	return func(f *Functions) {
		f.now = now
	}
}

// New creates host functions.
func New(opts ...Option) *Functions {
	f := &Functions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds host functions to a Lua state.
func (f *Functions) Register(ls *lua.LState, unitName string) {
	mod := ls.NewTable()

	ls.SetField(mod, "log", ls.NewFunction(f.logFn(unitName)))
	ls.SetField(mod, "new_id", ls.NewFunction(f.newIDFn()))
	ls.SetField(mod, "now", ls.NewFunction(f.nowFn()))
	ls.SetField(mod, "unit", lua.LString(unitName))

	ls.SetGlobal(GlobalName, mod)
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// logFn logs through the context of the running call. Outside a call, such
// as during the top-level chunk, the record is still attributed to the unit.
func (f *Functions) logFn(unitName string) lua.LGFunction {
	return func(L *lua.LState) int {
		level, ok := logLevels[L.CheckString(1)]
		if !ok {
			L.ArgError(1, "invalid log level '"+L.CheckString(1)+"': use debug, info, warn or error")
			return 0
		}
		message := L.CheckString(2)

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if _, ok := logging.UnitFromContext(ctx); !ok {
			ctx = logging.WithUnit(ctx, unitName)
		}
		f.logger.Log(ctx, level, message)
		return 0
	}
}

func (f *Functions) newIDFn() lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LString(ulid.Make().String()))
		return 1
	}
}

// nowFn returns the current time in whole seconds since the Unix epoch.
func (f *Functions) nowFn() lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LNumber(f.now().Unix()))
		return 1
	}
}
