package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/config"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", dir)
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		GinkgoT().Setenv("OPENAI_ORG_ID", "")
		GinkgoT().Setenv("OPENAI_BASE_URL", "")
		GinkgoT().Setenv("PARLEY_MODEL", "")
	})

	write := func(content string) string {
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("returns defaults when the default file is missing", func() {
		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
		Expect(cfg.Stop).To(Equal("***"))
		Expect(cfg.Transcript).To(Equal("LLM_logs.txt"))
	})

	It("reads the default file from ~/.parley", func() {
		Expect(os.MkdirAll(filepath.Join(dir, ".parley"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, ".parley", "config.toml"), []byte(`model = "gpt-4o"`), 0o600)).To(Succeed())

		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Model).To(Equal("gpt-4o"))
	})

	It("fails when an explicit file is missing", func() {
		_, err := config.Load(filepath.Join(dir, "nope.toml"))
		Expect(err).To(HaveOccurred())
	})

	It("decodes every section", func() {
		path := write(`
model = "gpt-4o"
base_url = "http://localhost:4000/v1/"
organization = "org-1"
stop = "END"
transcript = "/tmp/llm.txt"
timeout = "30s"

[storage]
sqlite = "/tmp/dag.db"

[vectors]
sqlite = "/tmp/vec.db"

[server]
listen = ":9090"
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Model).To(Equal("gpt-4o"))
		Expect(cfg.BaseURL).To(Equal("http://localhost:4000/v1/"))
		Expect(cfg.Organization).To(Equal("org-1"))
		Expect(cfg.Stop).To(Equal("END"))
		Expect(cfg.Transcript).To(Equal("/tmp/llm.txt"))
		Expect(cfg.Timeout.Duration).To(Equal(30 * time.Second))
		Expect(cfg.Storage.SQLite).To(Equal("/tmp/dag.db"))
		Expect(cfg.Vectors.SQLite).To(Equal("/tmp/vec.db"))
		Expect(cfg.Server.Listen).To(Equal(":9090"))
	})

	It("rejects unknown keys and bad durations", func() {
		_, err := config.Load(write(`modle = "typo"`))
		Expect(err).To(MatchError(ContainSubstring("unknown config keys")))

		_, err = config.Load(write(`timeout = "soon"`))
		Expect(err).To(HaveOccurred())
	})

	It("applies environment overrides", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-env")
		GinkgoT().Setenv("OPENAI_ORG_ID", "org-env")
		GinkgoT().Setenv("OPENAI_BASE_URL", "http://env/v1/")
		GinkgoT().Setenv("PARLEY_MODEL", "env-model")

		cfg, err := config.Load(write(`model = "file-model"`))
		Expect(err).NotTo(HaveOccurred())

		cc := cfg.Completion()
		Expect(cc.APIKey).To(Equal("sk-env"))
		Expect(cc.Organization).To(Equal("org-env"))
		Expect(cc.BaseURL).To(Equal("http://env/v1/"))
		Expect(cc.Model).To(Equal("env-model"))
		Expect(cc.Timeout).To(Equal(2 * time.Minute))
	})
})
