// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

// Package integration drives a full arcade host through real files on disk:
// the watcher, both loaders, the registry and the HTTP API.
package integration

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// reloadTimeout bounds how long a file edit may take to become visible.
const reloadTimeout = 5 * time.Second

func TestArcadeHost(t *testing.T) {
	RegisterFailHandler(Fail)
	SetDefaultEventuallyTimeout(reloadTimeout)
	SetDefaultEventuallyPollingInterval(20 * time.Millisecond)
	RunSpecs(t, "Arcade Host Suite")
}
