// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/onsi/gomega/gexec"

	"github.com/holomush/arcade/internal/api"
	"github.com/holomush/arcade/internal/plugin"
)

var echoBinary string

var _ = SynchronizedBeforeSuite(func() []byte {
	path, err := gexec.Build("github.com/holomush/arcade/plugins/echo")
	Expect(err).NotTo(HaveOccurred())
	return []byte(path)
}, func(path []byte) {
	echoBinary = string(path)
})

var _ = SynchronizedAfterSuite(func() {}, func() {
	gexec.CleanupBuildArtifacts()
})

func installEcho(dir string) {
	data, err := os.ReadFile(echoBinary)
	Expect(err).NotTo(HaveOccurred())
	tmp := filepath.Join(dir, ".echo.plugin.tmp")
	Expect(os.WriteFile(tmp, data, 0o700)).To(Succeed()) //nolint:gosec // test binary must be executable
	Expect(os.Rename(tmp, filepath.Join(dir, "echo.plugin"))).To(Succeed())
}

var _ = Describe("Binary units", func() {
	ctx := context.Background()

	It("serves a go-plugin unit next to Lua units", func() {
		host := startTestHost(map[string]string{"alpha.lua": alphaUnit})
		installEcho(host.dir)

		Eventually(func() []string {
			units, err := host.client.Units(ctx)
			Expect(err).NotTo(HaveOccurred())
			return units.Units
		}).WithTimeout(10 * time.Second).Should(ContainElement("echo"))

		info, err := host.client.Inspect(ctx, "echo")
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Kind).To(Equal("binary"))
		Expect(info.Version).To(Equal("1.0.0"))

		greeting, err := host.client.Start(ctx, "echo")
		Expect(err).NotTo(HaveOccurred())
		Expect(greeting.Message).To(ContainSubstring("Echo ready"))
		Expect(host.reply("echo", "ping")).To(Equal("Echo #1: ping"))
	})

	It("reports a panicking binary unit as a unit fault and keeps it usable", func() {
		host := startTestHost(nil)
		installEcho(host.dir)
		Eventually(host.reg.ListNames).WithTimeout(10 * time.Second).Should(ContainElement("echo"))

		_, err := host.client.Send(ctx, "echo", "/panic")
		var apiErr *api.Error
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Diagnostic).NotTo(BeNil())
		Expect(apiErr.Diagnostic.Category).To(Equal(plugin.CategoryUnitFault))
		Expect(apiErr.Diagnostic.FaultKind).To(Equal("panic"))
		Expect(apiErr.Diagnostic.Message).To(ContainSubstring("echo asked to panic"))

		Expect(host.reply("echo", "after")).To(Equal("Echo #1: after"))

		_, err = host.client.Send(ctx, "echo", "  ")
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Diagnostic.FaultKind).To(Equal("error"))
	})
})
