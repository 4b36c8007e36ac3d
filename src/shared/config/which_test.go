//go:build unix

package config_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/shared/config"
	"github.com/veedubyou/stem-splitter/src/shared/config/envvar"
	"github.com/veedubyou/stem-splitter/src/shared/lib/env"
	. "github.com/veedubyou/stem-splitter/src/shared/testing"
)

var _ = Describe("FindBin", func() {
	var binDir string

	BeforeEach(func() {
		for _, key := range allEnvVars {
			setEnv(key, "", true)
		}

		binDir = GinkgoT().TempDir()
		WriteFakeTool(binDir, "demucs", FakeDemucsScript)
		setEnv("PATH", binDir, false)
	})

	It("resolves a bare name through PATH", func() {
		Expect(config.FindBin("demucs")).To(Equal(filepath.Join(binDir, "demucs")))
	})

	It("returns paths as given", func() {
		Expect(config.FindBin("./bin/demucs")).To(Equal("./bin/demucs"))
		Expect(config.FindBin("/opt/demucs")).To(Equal("/opt/demucs"))
	})

	It("fails for a name not on PATH", func() {
		_, err := config.FindBin("spleeter")
		Expect(err).To(HaveOccurred())
	})

	It("resolves the configured tool while loading", func() {
		dir := GinkgoT().TempDir()
		setEnv(envvar.UPLOAD_ROOT, filepath.Join(dir, "uploads"), false)
		setEnv(envvar.PROCESSED_ROOT, filepath.Join(dir, "processed"), false)

		cfg := ExpectSuccess(config.Load("", env.Test))
		Expect(cfg.Tool.BinPath).To(Equal(filepath.Join(binDir, "demucs")))
	})

	It("keeps an unresolved name while loading", func() {
		dir := GinkgoT().TempDir()
		setEnv(envvar.UPLOAD_ROOT, filepath.Join(dir, "uploads"), false)
		setEnv(envvar.PROCESSED_ROOT, filepath.Join(dir, "processed"), false)
		setEnv(envvar.DEMUCS_BIN_PATH, "spleeter", false)

		cfg := ExpectSuccess(config.Load("", env.Test))
		Expect(cfg.Tool.BinPath).To(Equal("spleeter"))
	})
})
