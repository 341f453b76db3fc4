// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes for registry failures.
const (
	CodeNotFound          = "UNIT_NOT_FOUND"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeLoadFailure       = "LOAD_FAILURE"
	CodeInvalidVersion    = "INVALID_VERSION"
	CodeRegistryClosed    = "REGISTRY_CLOSED"
)

// ErrNotFound creates an error for a name that is not in the registry.
func ErrNotFound(name string) error {
	return oops.In("registry").
		Code(CodeNotFound).
		With("unit", name).
		Errorf("unit %q not found", name)
}

// ErrContractViolation wraps a call diagnostic.
func ErrContractViolation(d *Diagnostic) error {
	return oops.In("registry").
		Code(CodeContractViolation).
		With("unit", d.Unit).
		With("capability", string(d.Capability)).
		With("category", string(d.Category)).
		With("diagnostic_id", d.ID).
		Hint(d.Hint).
		Wrap(d)
}

// ErrLoadFailure wraps a load diagnostic.
func ErrLoadFailure(d *Diagnostic) error {
	return oops.In("registry").
		Code(CodeLoadFailure).
		With("unit", d.Unit).
		With("source", d.Source).
		With("diagnostic_id", d.ID).
		Hint(d.Hint).
		Wrap(d)
}

// ErrRegistryClosed is returned for operations on a closed registry.
func ErrRegistryClosed() error {
	return oops.In("registry").
		Code(CodeRegistryClosed).
		Errorf("registry is closed")
}
