// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package goplugin loads binary units using HashiCorp's go-plugin system
// over gRPC.
package goplugin

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/holomush/arcade/internal/plugin"
	"github.com/holomush/arcade/pkg/unitsdk"
)

// DefaultCallTimeout bounds a call when the caller's context has no deadline.
const DefaultCallTimeout = 5 * time.Second

// Compile-time interface check.
var _ plugin.Loader = (*Loader)(nil)

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client returns the gRPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the unit process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given unit executable.
	NewClient(name, execPath string) PluginClient
}

// RemoteUnit is the dispensed client for a running unit process.
type RemoteUnit interface {
	unitsdk.Handler
	Version(ctx context.Context) (string, error)
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct {
	// Logger receives go-plugin and unit stderr output. Nil discards it.
	Logger hclog.Logger
}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(name, execPath string) PluginClient {
	logger := f.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath is a file in the units directory
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolGRPC},
		Logger:           logger.Named(name),
	})
}

// Loader starts .plugin executables as units.
type Loader struct {
	clientFactory ClientFactory
	callTimeout   time.Duration
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithClientFactory sets the client factory (for testing).
func WithClientFactory(f ClientFactory) LoaderOption {
	return func(l *Loader) {
		l.clientFactory = f
	}
}

// WithCallTimeout sets the per-call timeout applied when the caller's
// context has no deadline.
func WithCallTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.callTimeout = d
	}
}

// NewLoader creates a binary unit loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		clientFactory: &DefaultClientFactory{},
		callTimeout:   DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clientFactory == nil {
		panic("goplugin: factory cannot be nil")
	}
	return l
}

// Kind implements plugin.Loader.
func (l *Loader) Kind() string { return "binary" }

// Extension implements plugin.Loader.
func (l *Loader) Extension() string { return ".plugin" }

// Load starts the unit process, dispenses its client and reads its version.
func (l *Loader) Load(ctx context.Context, src *plugin.Source) (plugin.Unit, error) {
	errb := oops.In("goplugin").With("unit", src.Name).With("path", src.Path)

	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, errb.Hint("cannot access unit executable").Wrap(err)
	}
	if info.Mode()&0o111 == 0 {
		return nil, errb.Hint("chmod +x the unit executable").Errorf("unit executable %s is not executable", src.Path)
	}

	client := l.clientFactory.NewClient(src.Name, src.Path)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "failed to connect to unit %s", src.Name)
	}

	raw, err := rpcClient.Dispense(unitsdk.PluginName)
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "failed to dispense unit %s", src.Name)
	}

	remote, ok := raw.(RemoteUnit)
	if !ok {
		client.Kill()
		return nil, errb.Errorf("unit %s does not implement the unit service", src.Name)
	}

	u := &Unit{
		name:        src.Name,
		client:      client,
		remote:      remote,
		callTimeout: l.callTimeout,
	}

	vctx, cancel := u.callContext(ctx)
	defer cancel()
	version, err := remote.Version(vctx)
	if err != nil {
		client.Kill()
		return nil, errb.Wrap(toFault(err))
	}
	u.version = version

	return u, nil
}
