package searchcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/internal/openaitest"
	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/vectorstore"
)

var _ = Describe("Search Command", func() {
	var (
		ctx        context.Context
		configPath string
		server     *openaitest.Server
	)

	docs := map[string]string{
		"creeper": "Creepers explode when they get close",
		"zombie":  "Zombies burn in daylight",
		"recipe":  "A crafting table needs four planks",
	}

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir := GinkgoT().TempDir()
		vectorsPath := filepath.Join(tmpDir, "vectors.db")

		server = openaitest.NewServer("unused", completion.EmbeddingDimensions)
		DeferCleanup(server.Close)

		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
		GinkgoT().Setenv("OPENAI_BASE_URL", "")
		GinkgoT().Setenv("PARLEY_MODEL", "")

		store, err := vectorstore.Open(vectorsPath, completion.EmbeddingDimensions)
		Expect(err).NotTo(HaveOccurred())
		for id, text := range docs {
			Expect(store.Put(ctx, id, text, server.Vector(text))).To(Succeed())
		}
		Expect(store.Close()).To(Succeed())

		configPath = filepath.Join(tmpDir, "config.toml")
		Expect(os.WriteFile(configPath, []byte(fmt.Sprintf(
			"base_url = %q\ntranscript = %q\n\n[vectors]\nsqlite = %q\n",
			server.BaseURL(), filepath.Join(tmpDir, "LLM_logs.txt"), vectorsPath,
		)), 0o644)).To(Succeed())
	})

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewSearchCmd(&setup.Flags{ConfigPath: configPath})
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("prints the closest document first", func() {
		out, err := run("--k", "2", docs["zombie"])
		Expect(err).NotTo(HaveOccurred())

		lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
		Expect(lines).To(HaveLen(2))
		Expect(string(lines[0])).To(HavePrefix("0.0000  zombie  Zombies burn in daylight"))
		Expect(server.Embeds()).To(Equal([]string{docs["zombie"]}))
	})

	It("prints matches as JSON", func() {
		out, err := run("--json", docs["recipe"])
		Expect(err).NotTo(HaveOccurred())

		var matches []vectorstore.Match
		Expect(json.Unmarshal([]byte(out), &matches)).To(Succeed())
		Expect(matches).To(HaveLen(3))
		Expect(matches[0].ID).To(Equal("recipe"))
		Expect(matches[0].Distance).To(BeNumerically("~", 0, 1e-6))
	})

	It("rejects a non-positive k", func() {
		_, err := run("--k", "0", "anything")
		Expect(err).To(MatchError(vectorstore.ErrInvalidK))
	})

	It("requires a query", func() {
		_, err := run()
		Expect(err).To(HaveOccurred())
	})
})
