// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultMaxRender bounds the rendering of a rejected return value.
const DefaultMaxRender = 200

// Validator mediates every call into a unit. A call either yields text or a
// Diagnostic; nothing a unit does escapes as a panic.
type Validator struct {
	tracer      trace.Tracer
	maxRender   int
	callTimeout time.Duration
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithTracer sets the tracer used for call spans.
func WithTracer(t trace.Tracer) ValidatorOption {
	return func(v *Validator) {
		v.tracer = t
	}
}

// WithMaxRender bounds the rendered length of a wrong return value.
func WithMaxRender(n int) ValidatorOption {
	return func(v *Validator) {
		v.maxRender = n
	}
}

// WithCallTimeout limits each call. Zero disables the limit.
func WithCallTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.callTimeout = d
	}
}

// NewValidator creates a contract validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		tracer:    noop.NewTracerProvider().Tracer("arcade"),
		maxRender: DefaultMaxRender,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Invoke calls capability c on u, which is registered as name.
func (v *Validator) Invoke(ctx context.Context, name string, u Unit, c Capability, args ...string) (string, *Diagnostic) {
	ctx, span := v.tracer.Start(ctx, "Unit."+string(c),
		trace.WithAttributes(
			attribute.String("unit.name", name),
			attribute.String("unit.capability", string(c)),
		))
	defer span.End()

	start := time.Now()
	text, diag := v.invoke(ctx, name, u, c, args)
	outcome := OutcomeOK
	if diag != nil {
		outcome = outcomeFor(diag.Category)
		span.SetAttributes(attribute.String("unit.diagnostic", string(diag.Category)))
		span.SetStatus(codes.Error, diag.Message)
	}
	recordCall(name, c, outcome, time.Since(start))
	return text, diag
}

func (v *Validator) invoke(ctx context.Context, name string, u Unit, c Capability, args []string) (text string, diag *Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			diag = newDiagnostic(name, c, CategoryUnitFault, fmt.Sprint(r))
			diag.FaultKind = "panic"
			diag.Trace = string(debug.Stack())
		}
	}()

	if !u.Has(c) {
		d := newDiagnostic(name, c, CategoryMissingCapability,
			fmt.Sprintf("unit %q is missing %s() function", name, c))
		d.Trace = locate(name, c)
		return "", d
	}

	if v.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.callTimeout)
		defer cancel()
	}

	res, err := u.Call(ctx, c, args...)
	if err != nil {
		return "", v.faultDiagnostic(ctx, name, c, err)
	}

	s, ok := res.Value.(string)
	if !ok {
		d := newDiagnostic(name, c, CategoryWrongReturnType,
			fmt.Sprintf("%s() must return a string, got %s", c, typeName(res)))
		d.ReturnedType = typeName(res)
		d.ReturnedValue = truncate(render(res), v.maxRender)
		d.Trace = locate(name, c)
		return "", d
	}
	return s, nil
}

func (v *Validator) faultDiagnostic(ctx context.Context, name string, c Capability, err error) *Diagnostic {
	d := newDiagnostic(name, c, CategoryUnitFault, err.Error())
	var f *Fault
	if errors.As(err, &f) {
		d.FaultKind = f.Kind
		d.Message = f.Message
		d.Trace = f.Trace
	} else {
		d.FaultKind = fmt.Sprintf("%T", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d.FaultKind = "timeout"
		if v.callTimeout > 0 {
			d.Message = fmt.Sprintf("%s() did not return within %s: %s", c, v.callTimeout, d.Message)
		} else {
			d.Message = fmt.Sprintf("%s() did not return before the caller's deadline: %s", c, d.Message)
		}
	}
	return d
}

// locate names the capability a contract check failed on. Checks made
// before or after the call have no stack of their own.
func locate(where string, c Capability) string {
	return fmt.Sprintf("%s: %s()", where, c)
}

func outcomeFor(cat Category) string {
	switch cat {
	case CategoryMissingCapability:
		return OutcomeMissingCapability
	case CategoryWrongReturnType:
		return OutcomeWrongReturnType
	default:
		return OutcomeUnitFault
	}
}

func typeName(res Result) string {
	if res.Type != "" {
		return res.Type
	}
	if res.Value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", res.Value)
}

func render(res Result) string {
	if res.Text != "" {
		return res.Text
	}
	return fmt.Sprint(res.Value)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
