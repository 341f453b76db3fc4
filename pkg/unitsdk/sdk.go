// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package unitsdk provides the SDK for building arcade binary units.
//
// Binary units are standalone executables named <unit>.plugin placed in the
// units directory. The host starts each one as a subprocess and talks to it
// via gRPC using the HashiCorp go-plugin framework.
//
// Example usage:
//
//	package main
//
//	import (
//		"context"
//		"github.com/holomush/arcade/pkg/unitsdk"
//	)
//
//	type Echo struct{}
//
//	func (e *Echo) Start(ctx context.Context) (string, error) {
//		return "say something", nil
//	}
//
//	func (e *Echo) Message(ctx context.Context, input string) (string, error) {
//		return input, nil
//	}
//
//	func main() {
//		unitsdk.Serve(&unitsdk.ServeConfig{Handler: &Echo{}})
//	}
package unitsdk

import (
	"context"
	"errors"

	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
)

// PluginName is the name the unit is dispensed under.
const PluginName = "unit"

// Handler is the interface that binary units must implement. Both
// capabilities are required by the method set.
type Handler interface {
	// Start resets the unit for a new session and returns the opening text.
	Start(ctx context.Context) (string, error)
	// Message handles one line of input and returns the reply text.
	Message(ctx context.Context, input string) (string, error)
}

// Versioned is optionally implemented by handlers that declare a version.
type Versioned interface {
	Version() string
}

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and units must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ARCADE_UNIT",
	MagicCookieValue: "arcade-v1",
}

// ServeConfig configures the unit server.
type ServeConfig struct {
	// Handler is the unit implementation.
	// Required; Serve will panic if nil.
	Handler Handler
}

// Serve starts the unit server. This should be called from main().
// It blocks and never returns under normal operation.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("unitsdk: config cannot be nil")
	}
	if config.Handler == nil {
		panic("unitsdk: config.Handler cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]hashiplug.Plugin{
			PluginName: &GRPCPlugin{Impl: config.Handler},
		},
		GRPCServer: NewGRPCServer,
	})
}

// NewGRPCServer creates the unit's gRPC server with panic recovery.
func NewGRPCServer(opts []grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(append(opts, grpc.ChainUnaryInterceptor(recoverInterceptor))...)
}

// GRPCPlugin implements go-plugin's Plugin interface for gRPC.
type GRPCPlugin struct {
	hashiplug.NetRPCUnsupportedPlugin
	// Impl is used by the unit side (not used by host).
	Impl Handler
}

// GRPCServer registers the unit service (called by the unit process).
func (p *GRPCPlugin) GRPCServer(_ *hashiplug.GRPCBroker, s *grpc.Server) error {
	if p.Impl == nil {
		return errors.New("unitsdk: handler is nil")
	}
	RegisterUnitServer(s, &serverAdapter{handler: p.Impl})
	return nil
}

// GRPCClient returns a unit client (called by the host process).
func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *hashiplug.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return NewClient(c), nil
}
