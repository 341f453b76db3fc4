// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package goplugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/holomush/arcade/internal/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Unit      = (*Unit)(nil)
	_ plugin.Versioned = (*Unit)(nil)
)

// Unit is a running binary unit process.
//
// Calls are serialized so a unit sees the same one-at-a-time ordering as a
// Lua unit does.
type Unit struct {
	name        string
	version     string
	callTimeout time.Duration

	mu     sync.Mutex
	client PluginClient
	remote RemoteUnit
	closed bool
}

// Version returns the version the unit reported at load.
func (u *Unit) Version() string {
	return u.version
}

// Has reports true for both capabilities; the handler's method set
// guarantees them.
func (u *Unit) Has(c plugin.Capability) bool {
	return c == plugin.CapabilityStart || c == plugin.CapabilityMessage
}

// Call invokes capability c in the unit process.
func (u *Unit) Call(ctx context.Context, c plugin.Capability, args ...string) (plugin.Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return plugin.Result{}, &plugin.Fault{Kind: "closed", Message: fmt.Sprintf("unit %q has been unloaded", u.name)}
	}

	ctx, cancel := u.callContext(ctx)
	defer cancel()

	var (
		text string
		err  error
	)
	switch c {
	case plugin.CapabilityStart:
		text, err = u.remote.Start(ctx)
	case plugin.CapabilityMessage:
		input := ""
		if len(args) > 0 {
			input = args[0]
		}
		text, err = u.remote.Message(ctx, input)
	default:
		return plugin.Result{}, &plugin.Fault{Kind: "missing", Message: fmt.Sprintf("unsupported capability %q", c)}
	}
	if err != nil {
		return plugin.Result{}, toFault(err)
	}
	return plugin.Result{Value: text}, nil
}

// Close kills the unit process. It waits for an in-flight call.
func (u *Unit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.closed {
		u.closed = true
		u.client.Kill()
	}
	return nil
}

func (u *Unit) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || u.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.callTimeout)
}

// toFault maps a gRPC status to a unit fault.
func toFault(err error) *plugin.Fault {
	st, ok := status.FromError(err)
	if !ok {
		return &plugin.Fault{Kind: "error", Message: err.Error()}
	}
	switch st.Code() {
	case codes.Unknown:
		return &plugin.Fault{Kind: "error", Message: st.Message()}
	case codes.Internal:
		msg, trace, _ := strings.Cut(st.Message(), "\n")
		return &plugin.Fault{Kind: "panic", Message: msg, Trace: trace}
	case codes.DeadlineExceeded:
		return &plugin.Fault{Kind: "timeout", Message: st.Message()}
	case codes.Unavailable, codes.Canceled:
		return &plugin.Fault{Kind: "transport", Message: st.Message()}
	default:
		return &plugin.Fault{Kind: st.Code().String(), Message: st.Message()}
	}
}
