// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/arcade/internal/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Unit      = (*Unit)(nil)
	_ plugin.Versioned = (*Unit)(nil)
)

// maxRenderDepth bounds nested table rendering.
const maxRenderDepth = 3

// Unit is a loaded Lua file. Module-level variables persist between calls
// for as long as the unit lives.
type Unit struct {
	name    string
	version string

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

func newUnit(name string, L *lua.LState, version string) *Unit {
	return &Unit{name: name, L: L, version: version}
}

// Version returns the declared VERSION global, or "".
func (u *Unit) Version() string {
	return u.version
}

// Has reports whether the global named after c is a function.
func (u *Unit) Has(c plugin.Capability) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return false
	}
	_, ok := u.L.GetGlobal(string(c)).(*lua.LFunction)
	return ok
}

// Call invokes the global function named after c with string arguments.
func (u *Unit) Call(ctx context.Context, c plugin.Capability, args ...string) (plugin.Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return plugin.Result{}, &plugin.Fault{Kind: "closed", Message: fmt.Sprintf("unit %q has been unloaded", u.name)}
	}

	fn, ok := u.L.GetGlobal(string(c)).(*lua.LFunction)
	if !ok {
		return plugin.Result{}, &plugin.Fault{Kind: "missing", Message: fmt.Sprintf("%s is not a function", c)}
	}

	u.L.SetContext(ctx)
	defer u.L.RemoveContext()

	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LString(a)
	}

	if err := u.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, largs...); err != nil {
		return plugin.Result{}, toFault(err)
	}

	ret := u.L.Get(-1)
	u.L.Pop(1)
	return convert(ret), nil
}

// Close releases the Lua state. It waits for an in-flight call.
func (u *Unit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.closed {
		u.closed = true
		u.L.Close()
	}
	return nil
}

// convert maps a Lua return value to a Result. Only strings pass validation.
func convert(v lua.LValue) plugin.Result {
	switch lv := v.(type) {
	case lua.LString:
		return plugin.Result{Value: string(lv)}
	case lua.LNumber:
		return plugin.Result{Value: float64(lv), Type: "number", Text: lv.String()}
	case lua.LBool:
		return plugin.Result{Value: bool(lv), Type: "boolean", Text: lv.String()}
	case *lua.LNilType:
		return plugin.Result{Value: nil, Type: "nil", Text: "nil"}
	case *lua.LTable:
		return plugin.Result{Value: lv, Type: "table", Text: renderTable(lv, 0)}
	default:
		return plugin.Result{Value: v, Type: v.Type().String(), Text: v.String()}
	}
}

// renderTable prints the array part in order, then keyed entries sorted.
func renderTable(t *lua.LTable, depth int) string {
	if depth >= maxRenderDepth {
		return "{...}"
	}

	var parts []string
	n := t.Len()
	for i := 1; i <= n; i++ {
		parts = append(parts, renderValue(t.RawGetInt(i), depth))
	}

	var keyed []string
	t.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok {
			if i := int(num); lua.LNumber(i) == num && i >= 1 && i <= n {
				return
			}
		}
		keyed = append(keyed, renderKey(k)+" = "+renderValue(v, depth))
	})
	sort.Strings(keyed)
	parts = append(parts, keyed...)

	return "{" + strings.Join(parts, ", ") + "}"
}

func renderKey(k lua.LValue) string {
	if s, ok := k.(lua.LString); ok {
		return string(s)
	}
	return "[" + k.String() + "]"
}

func renderValue(v lua.LValue, depth int) string {
	switch lv := v.(type) {
	case lua.LString:
		return fmt.Sprintf("%q", string(lv))
	case *lua.LTable:
		return renderTable(lv, depth+1)
	default:
		return v.String()
	}
}
