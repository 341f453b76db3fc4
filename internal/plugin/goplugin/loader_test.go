// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package goplugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/holomush/arcade/internal/plugin"
)

// mockClientProtocol implements hashiplug.ClientProtocol for testing.
type mockClientProtocol struct {
	remote      RemoteUnit
	dispenseErr error
	rawDispense interface{} // If set, return this instead of remote
}

func (m *mockClientProtocol) Close() error { return nil }
func (m *mockClientProtocol) Dispense(_ string) (interface{}, error) {
	if m.dispenseErr != nil {
		return nil, m.dispenseErr
	}
	if m.rawDispense != nil {
		return m.rawDispense, nil
	}
	return m.remote, nil
}
func (m *mockClientProtocol) Ping() error { return nil }

// mockPluginClient implements PluginClient for testing.
type mockPluginClient struct {
	protocol  *mockClientProtocol
	clientErr error

	mu     sync.Mutex
	killed bool
}

func (m *mockPluginClient) Client() (hashiplug.ClientProtocol, error) {
	if m.clientErr != nil {
		return nil, m.clientErr
	}
	return m.protocol, nil
}

func (m *mockPluginClient) Kill() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killed = true
}

func (m *mockPluginClient) wasKilled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killed
}

// mockRemote implements RemoteUnit for testing.
type mockRemote struct {
	version    string
	versionErr error
	startErr   error
	messageErr error
	block      bool
	lastInput  string
}

func (m *mockRemote) Start(ctx context.Context) (string, error) {
	if m.block {
		<-ctx.Done()
		return "", status.Error(codes.DeadlineExceeded, ctx.Err().Error())
	}
	if m.startErr != nil {
		return "", m.startErr
	}
	return "welcome", nil
}

func (m *mockRemote) Message(_ context.Context, input string) (string, error) {
	m.lastInput = input
	if m.messageErr != nil {
		return "", m.messageErr
	}
	return "got " + input, nil
}

func (m *mockRemote) Version(_ context.Context) (string, error) {
	return m.version, m.versionErr
}

// mockClientFactory creates mock clients for testing.
type mockClientFactory struct {
	client   *mockPluginClient
	lastName string
	lastPath string
}

func (f *mockClientFactory) NewClient(name, execPath string) PluginClient {
	f.lastName = name
	f.lastPath = execPath
	return f.client
}

// writeExecutable creates a dummy file that passes the executable check.
func writeExecutable(t *testing.T, mode os.FileMode) *plugin.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echo.plugin")
	require.NoError(t, os.WriteFile(path, []byte("dummy"), mode))
	return &plugin.Source{Name: "echo", Path: path, Ext: ".plugin"}
}

func newMockLoader(remote *mockRemote) (*Loader, *mockPluginClient, *mockClientFactory) {
	client := &mockPluginClient{protocol: &mockClientProtocol{remote: remote}}
	factory := &mockClientFactory{client: client}
	return NewLoader(WithClientFactory(factory), WithCallTimeout(50*time.Millisecond)), client, factory
}

func TestNewLoader_NilFactoryPanics(t *testing.T) {
	assert.Panics(t, func() { NewLoader(WithClientFactory(nil)) })
}

func TestLoader_KindAndExtension(t *testing.T) {
	l := NewLoader()
	assert.Equal(t, "binary", l.Kind())
	assert.Equal(t, ".plugin", l.Extension())
}

func TestLoad_Success(t *testing.T) {
	remote := &mockRemote{version: "1.0.0"}
	l, client, factory := newMockLoader(remote)
	src := writeExecutable(t, 0o700)

	u, err := l.Load(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "echo", factory.lastName)
	assert.Equal(t, src.Path, factory.lastPath)
	assert.True(t, u.Has(plugin.CapabilityStart))
	assert.True(t, u.Has(plugin.CapabilityMessage))
	assert.Equal(t, "1.0.0", u.(plugin.Versioned).Version())

	res, err := u.Call(context.Background(), plugin.CapabilityStart)
	require.NoError(t, err)
	assert.Equal(t, "welcome", res.Value)

	res, err = u.Call(context.Background(), plugin.CapabilityMessage, "hi")
	require.NoError(t, err)
	assert.Equal(t, "got hi", res.Value)
	assert.Equal(t, "hi", remote.lastInput)

	require.NoError(t, u.Close())
	assert.True(t, client.wasKilled())
}

func TestLoad_MissingExecutable(t *testing.T) {
	l, _, _ := newMockLoader(&mockRemote{})
	src := &plugin.Source{Name: "gone", Path: filepath.Join(t.TempDir(), "gone.plugin"), Ext: ".plugin"}

	_, err := l.Load(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_NotExecutable(t *testing.T) {
	l, _, _ := newMockLoader(&mockRemote{})

	_, err := l.Load(context.Background(), writeExecutable(t, 0o600))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")
}

func TestLoad_ClientError(t *testing.T) {
	client := &mockPluginClient{clientErr: errors.New("connection failed")}
	l := NewLoader(WithClientFactory(&mockClientFactory{client: client}))

	_, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
	assert.True(t, client.wasKilled(), "expected client to be killed after connection failure")
}

func TestLoad_DispenseError(t *testing.T) {
	client := &mockPluginClient{protocol: &mockClientProtocol{dispenseErr: errors.New("dispense failed")}}
	l := NewLoader(WithClientFactory(&mockClientFactory{client: client}))

	_, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dispense")
	assert.True(t, client.wasKilled())
}

func TestLoad_WrongDispenseType(t *testing.T) {
	client := &mockPluginClient{protocol: &mockClientProtocol{rawDispense: "not a unit"}}
	l := NewLoader(WithClientFactory(&mockClientFactory{client: client}))

	_, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not implement")
	assert.True(t, client.wasKilled())
}

func TestLoad_VersionError(t *testing.T) {
	l, client, _ := newMockLoader(&mockRemote{versionErr: status.Error(codes.Unavailable, "gone")})

	_, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.Error(t, err)

	var f *plugin.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "transport", f.Kind)
	assert.True(t, client.wasKilled())
}

func TestUnit_Call_HandlerError(t *testing.T) {
	l, _, _ := newMockLoader(&mockRemote{messageErr: status.Error(codes.Unknown, "bad move")})
	u, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.NoError(t, err)
	defer func() { _ = u.Close() }()

	_, err = u.Call(context.Background(), plugin.CapabilityMessage, "x")
	var f *plugin.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "error", f.Kind)
	assert.Equal(t, "bad move", f.Message)
}

func TestUnit_Call_Panic(t *testing.T) {
	l, _, _ := newMockLoader(&mockRemote{startErr: status.Error(codes.Internal, "panic: boom\ngoroutine 1 [running]:")})
	u, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.NoError(t, err)
	defer func() { _ = u.Close() }()

	_, err = u.Call(context.Background(), plugin.CapabilityStart)
	var f *plugin.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "panic", f.Kind)
	assert.Equal(t, "panic: boom", f.Message)
	assert.Equal(t, "goroutine 1 [running]:", f.Trace)
}

func TestUnit_Call_DefaultTimeoutApplies(t *testing.T) {
	l, _, _ := newMockLoader(&mockRemote{block: true})
	u, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.NoError(t, err)
	defer func() { _ = u.Close() }()

	_, err = u.Call(context.Background(), plugin.CapabilityStart)
	var f *plugin.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "timeout", f.Kind)
}

func TestUnit_Call_AfterClose(t *testing.T) {
	l, _, _ := newMockLoader(&mockRemote{})
	u, err := l.Load(context.Background(), writeExecutable(t, 0o700))
	require.NoError(t, err)
	require.NoError(t, u.Close())
	require.NoError(t, u.Close(), "second close should be a no-op")

	_, err = u.Call(context.Background(), plugin.CapabilityStart)
	var f *plugin.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "closed", f.Kind)
}

func TestToFault_NonStatusError(t *testing.T) {
	f := toFault(errors.New("plain"))
	assert.Equal(t, "error", f.Kind)
	assert.Equal(t, "plain", f.Message)
}
