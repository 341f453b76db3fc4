// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/holomush/arcade/internal/api"
	"github.com/holomush/arcade/internal/plugin"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	unitStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
)

// renderDiagnostic formats a diagnostic for a terminal.
func renderDiagnostic(d *plugin.Diagnostic) string {
	lines := []string{errStyle.Render(fmt.Sprintf("%s: %s", d.Category, d.Message))}
	if d.Capability != "" {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  unit %s, capability %s()", d.Unit, d.Capability)))
	} else {
		lines = append(lines, dimStyle.Render("  unit "+d.Unit))
	}
	if d.FaultKind != "" {
		lines = append(lines, dimStyle.Render("  fault: "+d.FaultKind))
	}
	if d.ReturnedType != "" {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  returned %s: %s", d.ReturnedType, d.ReturnedValue)))
	}
	if d.Trace != "" {
		for _, l := range strings.Split(strings.TrimRight(d.Trace, "\n"), "\n") {
			lines = append(lines, dimStyle.Render("    "+l))
		}
	}
	if d.Hint != "" {
		lines = append(lines, warnStyle.Render("  hint: "+d.Hint))
	}
	if d.ID != "" {
		lines = append(lines, dimStyle.Render("  id: "+d.ID))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderError formats a client error, expanding API diagnostics.
func renderError(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return errStyle.Render("error: " + err.Error())
	}
	if apiErr.Diagnostic != nil {
		return renderDiagnostic(apiErr.Diagnostic)
	}
	lines := []string{errStyle.Render("error: " + apiErr.Message)}
	if apiErr.AvailableUnits != nil {
		avail := "none"
		if len(apiErr.AvailableUnits) > 0 {
			avail = strings.Join(apiErr.AvailableUnits, ", ")
		}
		lines = append(lines, dimStyle.Render("  available units: "+avail))
	}
	if apiErr.Hint != "" {
		lines = append(lines, warnStyle.Render("  hint: "+apiErr.Hint))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
