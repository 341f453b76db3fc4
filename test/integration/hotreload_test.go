// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/arcade/internal/api"
	"github.com/holomush/arcade/internal/plugin"
)

const alphaUnit = `
local seen = 0
function start()
    seen = 0
    return "alpha says hello"
end
function message(input)
    seen = seen + 1
    return "alpha " .. seen .. ": " .. input
end
`

const betaV1 = `
function start() return "beta v1" end
function message(input) return "beta v1 got " .. input end
`

const betaV2 = `
function start() return "beta v2" end
function message(input) return "BETA V2 GOT " .. input:upper() end
`

var _ = Describe("Hot reload", func() {
	var host *testHost
	ctx := context.Background()

	BeforeEach(func() {
		host = startTestHost(map[string]string{
			"alpha.lua": alphaUnit,
			"beta.lua":  betaV1,
		})
	})

	It("reloads an edited unit without disturbing the others", func() {
		units, err := host.client.Units(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(units.Units).To(Equal([]string{"alpha", "beta"}))

		greeting, err := host.client.Start(ctx, "alpha")
		Expect(err).NotTo(HaveOccurred())
		Expect(greeting.Message).To(Equal("alpha says hello"))
		Expect(host.active()).To(Equal("alpha"))

		Expect(host.reply("alpha", "one")).To(Equal("alpha 1: one"))
		Expect(host.reply("beta", "hi")).To(Equal("beta v1 got hi"))
		Expect(host.active()).To(Equal("alpha"))

		writeFile(host.dir, "beta.lua", betaV2)

		Eventually(func() string { return host.reply("beta", "hi") }).Should(Equal("BETA V2 GOT HI"))

		Expect(host.reply("alpha", "two")).To(Equal("alpha 2: two"), "alpha keeps its state")
		Expect(host.active()).To(Equal("alpha"))
	})

	It("keeps serving the previous instance when an edit breaks the unit", func() {
		Expect(host.reply("beta", "x")).To(Equal("beta v1 got x"))

		writeFile(host.dir, "beta.lua", "function message(input) return ")

		Eventually(func() plugin.Status {
			info, err := host.client.Inspect(ctx, "beta")
			Expect(err).NotTo(HaveOccurred())
			return info.Status
		}).Should(Equal(plugin.StatusFailed))

		Expect(host.reply("beta", "y")).To(Equal("beta v1 got y"))

		info, err := host.client.Inspect(ctx, "beta")
		Expect(err).NotTo(HaveOccurred())
		Expect(info.LastFailure).NotTo(BeNil())
		Expect(info.LastFailure.Category).To(Equal(plugin.CategoryLoadFailure))

		writeFile(host.dir, "beta.lua", betaV2)
		Eventually(func() string { return host.reply("beta", "z") }).
			Should(Equal("BETA V2 GOT Z"))
	})

	It("picks up new units and drops deleted ones", func() {
		writeFile(host.dir, "gamma.lua", `function start() return "gamma" end`)

		Eventually(func() []string {
			units, err := host.client.Units(ctx)
			Expect(err).NotTo(HaveOccurred())
			return units.Units
		}).Should(ContainElement("gamma"))

		_, err := host.client.Start(ctx, "gamma")
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Remove(filepath.Join(host.dir, "gamma.lua"))).To(Succeed())

		Eventually(func() []string {
			units, err := host.client.Units(ctx)
			Expect(err).NotTo(HaveOccurred())
			return units.Units
		}).ShouldNot(ContainElement("gamma"))

		Expect(host.active()).To(Equal("gamma"), "the active selection is never cleared implicitly")

		_, err = host.client.Start(ctx, "gamma")
		var apiErr *api.Error
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(404))
	})

	It("isolates faults and wrong return types", func() {
		writeFile(host.dir, "faulty.lua", `
function start() return 7 end
function message(input) error("kaboom") end
`)
		Eventually(func() bool {
			_, ok := host.reg.Inspect("faulty")
			return ok
		}).Should(BeTrue())

		_, err := host.client.Start(ctx, "faulty")
		var apiErr *api.Error
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Diagnostic.Category).To(Equal(plugin.CategoryWrongReturnType))
		Expect(host.active()).To(BeEmpty())

		_, err = host.client.Send(ctx, "faulty", "go")
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Diagnostic.Category).To(Equal(plugin.CategoryUnitFault))
		Expect(apiErr.Diagnostic.Unit).To(Equal("faulty"))

		Expect(host.reply("alpha", "still fine")).To(Equal("alpha 1: still fine"))
	})
})
