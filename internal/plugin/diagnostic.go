// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Category classifies a failed unit interaction.
type Category string

// Diagnostic categories.
const (
	CategoryMissingCapability Category = "MissingCapability"
	CategoryWrongReturnType   Category = "WrongReturnType"
	CategoryUnitFault         Category = "UnitFault"
	CategoryLoadFailure       Category = "LoadFailure"
)

// Diagnostic describes why a unit call or load failed. It carries everything
// a caller needs to render the failure without re-deriving it.
type Diagnostic struct {
	ID            string     `json:"id"`
	Unit          string     `json:"unit"`
	Capability    Capability `json:"capability,omitempty"`
	Category      Category   `json:"category"`
	Message       string     `json:"message"`
	FaultKind     string     `json:"fault_kind,omitempty"`
	ReturnedType  string     `json:"returned_type,omitempty"`
	ReturnedValue string     `json:"returned_value,omitempty"`
	Trace         string     `json:"trace,omitempty"`
	Source        string     `json:"source,omitempty"`
	Hint          string     `json:"hint,omitempty"`
}

// Error implements error.
func (d *Diagnostic) Error() string {
	if d.Capability == "" {
		return fmt.Sprintf("%s: %s: %s", d.Unit, d.Category, d.Message)
	}
	return fmt.Sprintf("%s.%s(): %s: %s", d.Unit, d.Capability, d.Category, d.Message)
}

// AsDiagnostic extracts a Diagnostic from err's chain.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newDiagnosticID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func newDiagnostic(unit string, c Capability, cat Category, msg string) *Diagnostic {
	return &Diagnostic{
		ID:         newDiagnosticID(),
		Unit:       unit,
		Capability: c,
		Category:   cat,
		Message:    msg,
	}
}

// hintFor returns author-facing advice for a diagnostic.
func hintFor(d *Diagnostic) string {
	where := d.Unit
	if d.Source != "" {
		where = d.Source
	}
	switch d.Category {
	case CategoryMissingCapability:
		return fmt.Sprintf("define a %s() function in %s", d.Capability, where)
	case CategoryWrongReturnType:
		return fmt.Sprintf("in %s, make sure %s() returns a string", where, d.Capability)
	case CategoryUnitFault:
		return fmt.Sprintf("check %s, look at the %s() function", where, d.Capability)
	case CategoryLoadFailure:
		return fmt.Sprintf("fix %s and save it again to retry the load", where)
	default:
		return ""
	}
}
