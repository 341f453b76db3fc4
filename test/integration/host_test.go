// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/arcade/internal/api"
	"github.com/holomush/arcade/internal/plugin"
	"github.com/holomush/arcade/internal/plugin/goplugin"
	pluginlua "github.com/holomush/arcade/internal/plugin/lua"
	"github.com/holomush/arcade/internal/plugin/watch"
)

// testHost is a registry, watcher and API server over a temp directory.
type testHost struct {
	dir     string
	reg     *plugin.Registry
	watcher *watch.Watcher
	server  *httptest.Server
	client  *api.Client
	cancel  context.CancelFunc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestHost(files map[string]string) *testHost {
	dir := GinkgoT().TempDir()
	for name, content := range files {
		writeFile(dir, name, content)
	}

	logger := quietLogger()
	reg, err := plugin.NewRegistry(dir,
		plugin.WithLoader(pluginlua.NewLoader()),
		plugin.WithLoader(goplugin.NewLoader()),
		plugin.WithLogger(logger))
	Expect(err).NotTo(HaveOccurred())
	Expect(reg.DiscoverAndLoadAll(context.Background())).To(Succeed())

	ctx, cancel := context.WithCancel(context.Background())
	w := watch.New(reg, reg.Directory(),
		watch.WithDebounce(20*time.Millisecond),
		watch.WithLogger(logger))
	Expect(w.Start(ctx)).To(Succeed())

	server := httptest.NewServer(api.NewServer("127.0.0.1:0", reg, api.WithLogger(logger)).Handler())

	h := &testHost{
		dir:     dir,
		reg:     reg,
		watcher: w,
		server:  server,
		client:  api.NewClient(server.URL),
		cancel:  cancel,
	}
	DeferCleanup(h.stop)
	return h
}

func (h *testHost) stop() {
	h.server.Close()
	h.cancel()
	Expect(h.watcher.Close()).To(Succeed())
	Expect(h.reg.Close(context.Background())).To(Succeed())
}

func writeFile(dir, name, content string) {
	// Write then rename so the watcher never sees a half-written file.
	tmp := filepath.Join(dir, "."+name+".tmp")
	Expect(os.WriteFile(tmp, []byte(content), 0o600)).To(Succeed())
	Expect(os.Rename(tmp, filepath.Join(dir, name))).To(Succeed())
}

// reply returns the message text of a successful Send, or the error text.
func (h *testHost) reply(name, input string) string {
	resp, err := h.client.Send(context.Background(), name, input)
	if err != nil {
		return "error: " + err.Error()
	}
	return resp.Message
}

func (h *testHost) active() string {
	units, err := h.client.Units(context.Background())
	Expect(err).NotTo(HaveOccurred())
	if units.Active == nil {
		return ""
	}
	return *units.Active
}
