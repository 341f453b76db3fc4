// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Capability names a behavior a unit exposes to the host.
type Capability string

// Capabilities every unit is expected to provide.
const (
	CapabilityStart   Capability = "start"
	CapabilityMessage Capability = "message"
)

// Result is the raw value a unit produced for a call, before validation.
type Result struct {
	// Value is the value as converted into Go. Only a string is a valid reply.
	Value any
	// Type is the value's type name in the unit's own runtime (e.g. "number").
	// Empty means the Go type of Value is used.
	Type string
	// Text is a human rendering of Value. Empty means fmt.Sprint(Value).
	Text string
}

// Unit is one loaded plugin instance.
//
// Implementations must be safe for concurrent use; a unit typically
// serializes calls into its own runtime.
type Unit interface {
	// Has reports whether the unit currently exposes capability c.
	Has(c Capability) bool
	// Call invokes capability c. Faults raised by the unit's code are
	// returned as errors, preferably *Fault.
	Call(ctx context.Context, c Capability, args ...string) (Result, error)
	// Close releases the unit's runtime. It waits for an in-flight call.
	Close() error
}

// Versioned is implemented by units that declare a semantic version.
type Versioned interface {
	Version() string
}

// Fault is an error raised by a unit's own code while executing a capability.
type Fault struct {
	// Kind is the fault category in the unit's runtime (e.g. "runtime", "panic").
	Kind string
	// Message is the fault message.
	Message string
	// Trace locates the failing code.
	Trace string
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// TextUnit is the typed contract for units written in Go. Both capabilities
// are guaranteed by the method set and both return text.
type TextUnit interface {
	Start(ctx context.Context) (string, error)
	Message(ctx context.Context, input string) (string, error)
}

// Native adapts a TextUnit into a Unit.
func Native(u TextUnit) Unit {
	return &nativeUnit{impl: u}
}

type nativeUnit struct {
	impl TextUnit
	mu   sync.Mutex
}

func (n *nativeUnit) Has(c Capability) bool {
	return c == CapabilityStart || c == CapabilityMessage
}

func (n *nativeUnit) Call(ctx context.Context, c Capability, args ...string) (res Result, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = &Fault{Kind: "panic", Message: fmt.Sprint(r), Trace: string(debug.Stack())}
		}
	}()

	var text string
	switch c {
	case CapabilityStart:
		text, err = n.impl.Start(ctx)
	case CapabilityMessage:
		input := ""
		if len(args) > 0 {
			input = args[0]
		}
		text, err = n.impl.Message(ctx, input)
	default:
		return Result{}, fmt.Errorf("unsupported capability %q", c)
	}
	if err != nil {
		return Result{}, &Fault{Kind: "error", Message: err.Error()}
	}
	return Result{Value: text}, nil
}

func (n *nativeUnit) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return nil
}
