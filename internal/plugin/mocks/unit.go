// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the plugin package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/arcade/internal/plugin"
)

// Unit is a mock plugin.Unit.
type Unit struct {
	mock.Mock
}

// NewUnit creates a Unit mock whose expectations are asserted on cleanup.
func NewUnit(t interface {
	mock.TestingT
	Cleanup(func())
},
) *Unit {
	m := &Unit{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Has implements plugin.Unit.
func (m *Unit) Has(c plugin.Capability) bool {
	args := m.Called(c)
	return args.Bool(0)
}

// Call implements plugin.Unit.
func (m *Unit) Call(ctx context.Context, c plugin.Capability, in ...string) (plugin.Result, error) {
	callArgs := []any{ctx, c}
	for _, s := range in {
		callArgs = append(callArgs, s)
	}
	args := m.Called(callArgs...)
	if fn, ok := args.Get(0).(func(context.Context, plugin.Capability, ...string) (plugin.Result, error)); ok {
		return fn(ctx, c, in...)
	}
	return args.Get(0).(plugin.Result), args.Error(1)
}

// Close implements plugin.Unit.
func (m *Unit) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Loader is a mock plugin.Loader.
type Loader struct {
	mock.Mock
}

// NewLoader creates a Loader mock whose expectations are asserted on cleanup.
func NewLoader(t interface {
	mock.TestingT
	Cleanup(func())
},
) *Loader {
	m := &Loader{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Kind implements plugin.Loader.
func (m *Loader) Kind() string {
	args := m.Called()
	return args.String(0)
}

// Extension implements plugin.Loader.
func (m *Loader) Extension() string {
	args := m.Called()
	return args.String(0)
}

// Load implements plugin.Loader.
func (m *Loader) Load(ctx context.Context, src *plugin.Source) (plugin.Unit, error) {
	args := m.Called(ctx, src)
	u, _ := args.Get(0).(plugin.Unit)
	return u, args.Error(1)
}
