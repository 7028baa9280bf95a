package pushcmder

import (
	"bytes"
	"context"
	"net"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/merkle"
	"github.com/papercomputeco/parley/proxy"
)

var _ = Describe("Push Command", func() {
	var (
		ctx       context.Context
		localPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		localPath = filepath.Join(GinkgoT().TempDir(), "local.sqlite")
	})

	makeNode := func(msg llm.Message, parent *merkle.Node) *merkle.Node {
		return merkle.NewNode(merkle.MessageBucket(msg, "test-model"), parent)
	}

	seed := func(nodes ...*merkle.Node) {
		local, err := merkle.NewSQLiteStorer(localPath)
		Expect(err).NotTo(HaveOccurred())
		defer local.Close()
		for _, n := range nodes {
			Expect(local.Put(ctx, n)).To(Succeed())
		}
	}

	startServer := func() (string, *merkle.MemoryStorer) {
		storer := merkle.NewMemoryStorer()
		srv := proxy.New(proxy.Config{ListenAddr: ":0"}, nil, storer, zap.NewNop())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()
		DeferCleanup(srv.Shutdown)

		return "http://" + listener.Addr().String(), storer
	}

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewPushCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("pushes local nodes to a remote server", func() {
		nodeA := makeNode(llm.User("hello from push test"), nil)
		seed(nodeA, makeNode(llm.Assistant("hi back from push test"), nodeA))

		addr, storer := startServer()

		out, err := run("--sqlite", localPath, addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Pushed 2 new nodes"))

		nodes, err := storer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(2))
	})

	It("deduplicates on double push", func() {
		seed(makeNode(llm.User("dedup push test"), nil))

		addr, storer := startServer()

		_, err := run("--sqlite", localPath, addr)
		Expect(err).NotTo(HaveOccurred())

		out, err := run("--sqlite", localPath, addr+"/")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("(1 already existed, 0 errors)"))

		nodes, err := storer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))
	})

	It("pushes in batches", func() {
		nodeA := makeNode(llm.User("one"), nil)
		nodeB := makeNode(llm.Assistant("two"), nodeA)
		seed(nodeA, nodeB, makeNode(llm.User("three"), nodeB))

		addr, storer := startServer()

		_, err := run("--sqlite", localPath, "--batch-size", "1", addr)
		Expect(err).NotTo(HaveOccurred())

		nodes, err := storer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(3))
	})

	It("reports an empty local database", func() {
		seed()

		out, err := run("--sqlite", localPath, "http://127.0.0.1:1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No local nodes to push."))
	})
})
