// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package goplugin

import (
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/holomush/arcade/pkg/unitsdk"
)

// HandshakeConfig must match what unit binaries serve with, so it is taken
// from unitsdk rather than declared here.
var HandshakeConfig = unitsdk.HandshakeConfig

// PluginMap dispenses the unit service to the host.
var PluginMap = map[string]goplugin.Plugin{
	unitsdk.PluginName: &unitsdk.GRPCPlugin{},
}
