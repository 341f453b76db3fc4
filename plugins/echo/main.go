// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main implements an echo unit as a go-plugin binary.
//
// Build it into the units directory:
//
//	go build -o games/echo.plugin ./plugins/echo
//
// The host starts the executable and calls it over gRPC.
package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/holomush/arcade/pkg/unitsdk"
)

// Echo repeats every message back with a running count.
type Echo struct {
	mu    sync.Mutex
	count int
}

// Start resets the count.
func (e *Echo) Start(_ context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = 0
	return "Echo ready. Say something!", nil
}

// Message echoes input. "/panic" panics, which the host reports as a unit
// fault without losing the unit.
func (e *Echo) Message(_ context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "/panic" {
		panic("echo asked to panic")
	}
	if input == "" {
		return "", fmt.Errorf("nothing to echo")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	return fmt.Sprintf("Echo #%d: %s", e.count, input), nil
}

// Version implements unitsdk.Versioned.
func (e *Echo) Version() string {
	return "1.0.0"
}

func main() {
	unitsdk.Serve(&unitsdk.ServeConfig{Handler: &Echo{}})
}
