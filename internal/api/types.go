// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api exposes the unit registry over HTTP with JSON bodies.
package api

import (
	"fmt"

	"github.com/holomush/arcade/internal/plugin"
)

// UnitsResponse is returned by GET /units.
type UnitsResponse struct {
	Units  []string `json:"units"`
	Active *string  `json:"active"`
}

// ReplyResponse is returned by a successful start or message.
type ReplyResponse struct {
	Message string `json:"message"`
	Unit    string `json:"unit"`
}

// MessageRequest is the body of POST /units/{name}/message.
type MessageRequest struct {
	Input string `json:"input"`
}

// ResetResponse is returned by POST /reset.
type ResetResponse struct {
	Status         string  `json:"status"`
	PreviousActive *string `json:"previous_active"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string  `json:"status"`
	LoadedCount int     `json:"loaded_count"`
	Active      *string `json:"active"`
}

// NotFoundResponse is the 404 body for an unknown unit.
type NotFoundResponse struct {
	Error          string   `json:"error"`
	AvailableUnits []string `json:"available_units"`
}

// FailureResponse is the 500 body for a contract violation or load failure.
type FailureResponse struct {
	Error      string             `json:"error"`
	Diagnostic *plugin.Diagnostic `json:"diagnostic"`
}

// ErrorResponse is the body for other request errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// Error is returned by Client for non-2xx responses.
type Error struct {
	StatusCode     int
	Message        string
	Hint           string
	AvailableUnits []string
	Diagnostic     *plugin.Diagnostic
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
