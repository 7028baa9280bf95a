package servecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/internal/openaitest"
	"github.com/papercomputeco/parley/pkg/merkle"
	"github.com/papercomputeco/parley/proxy"
)

var _ = Describe("Serve Command", func() {
	var (
		tmpDir     string
		configPath string
		dbPath     string
		server     *openaitest.Server
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "parley.db")

		server = openaitest.NewServer("served", 8)
		DeferCleanup(server.Close)

		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
		GinkgoT().Setenv("OPENAI_BASE_URL", "")
		GinkgoT().Setenv("PARLEY_MODEL", "")

		configPath = filepath.Join(tmpDir, "config.toml")
		Expect(os.WriteFile(configPath, []byte(fmt.Sprintf(
			"model = %q\nbase_url = %q\ntranscript = %q\n",
			"gpt-test", server.BaseURL(), filepath.Join(tmpDir, "LLM_logs.txt"),
		)), 0o644)).To(Succeed())
	})

	freeAddr := func() string {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		Expect(ln.Close()).To(Succeed())
		return addr
	}

	It("answers chats and records them until cancelled", func() {
		addr := freeAddr()
		ctx, cancel := context.WithCancel(context.Background())

		var out bytes.Buffer
		cmd := NewServeCmd(&setup.Flags{ConfigPath: configPath})
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--listen", addr, "--sqlite", dbPath})

		done := make(chan error, 1)
		go func() {
			done <- cmd.ExecuteContext(ctx)
		}()

		var resp *http.Response
		Eventually(func() error {
			body := bytes.NewBufferString(`{"system":"s","turns":[{"role":"user","content":"hi"}]}`)
			var err error
			resp, err = http.Post("http://"+addr+"/api/chat", "application/json", body)
			return err
		}, 5*time.Second, 50*time.Millisecond).Should(Succeed())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var chat proxy.ChatResponse
		Expect(json.NewDecoder(resp.Body).Decode(&chat)).To(Succeed())
		Expect(chat.Content).To(Equal("served"))
		Expect(chat.Fallback).To(BeFalse())

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		Expect(out.String()).To(ContainSubstring("listening on http://" + addr))

		store, err := merkle.NewSQLiteStorer(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()
		leaves, err := store.Leaves(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(leaves).To(HaveLen(1))
		Expect(leaves[0].Content.Content).To(Equal("served"))
	})

	It("fails when the address is taken", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		cmd := NewServeCmd(&setup.Flags{ConfigPath: configPath})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--listen", ln.Addr().String()})

		err = cmd.ExecuteContext(context.Background())
		Expect(err).To(MatchError(ContainSubstring("could not listen")))
	})
})
