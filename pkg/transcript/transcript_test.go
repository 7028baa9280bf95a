package transcript_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/transcript"
)

// blocks splits a transcript file into its blocks, without the closing delimiter.
func blocks(content string) []string {
	parts := strings.Split(content, transcript.Delimiter+"\n\n")
	Expect(parts[len(parts)-1]).To(BeEmpty())
	return parts[:len(parts)-1]
}

var _ = Describe("Transcript", func() {
	var (
		dir    string
		path   string
		writer *transcript.Writer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "LLM_logs.txt")
		writer = transcript.New(path)
	})

	Describe("New", func() {
		It("defaults to LLM_logs.txt", func() {
			Expect(transcript.New("").Path()).To(Equal(transcript.DefaultPath))
		})
	})

	Describe("Format", func() {
		It("renders the prompt as indented JSON followed by the answer", func() {
			block, err := transcript.Format([]llm.Message{
				llm.System("be brief"),
				llm.User("hi"),
			}, "hello")
			Expect(err).NotTo(HaveOccurred())

			expected := transcript.Delimiter + "\n" +
				"Prompt:\n" +
				"[\n" +
				"  {\n" +
				"    \"role\": \"system\",\n" +
				"    \"content\": \"be brief\"\n" +
				"  },\n" +
				"  {\n" +
				"    \"role\": \"user\",\n" +
				"    \"content\": \"hi\"\n" +
				"  }\n" +
				"]\n" +
				"LLM Answer:\n" +
				"hello\n" +
				transcript.Delimiter + "\n\n"
			Expect(string(block)).To(Equal(expected))
		})

		It("unescapes newlines inside message content", func() {
			block, err := transcript.Format([]llm.Message{llm.User("line one\nline two")}, "ok")
			Expect(err).NotTo(HaveOccurred())

			Expect(string(block)).To(ContainSubstring("\"content\": \"line one\nline two\""))
			Expect(string(block)).NotTo(ContainSubstring(`\n`))
		})

		It("does not HTML-escape angle brackets", func() {
			block, err := transcript.Format([]llm.Message{llm.User("<b>&</b>")}, "ok")
			Expect(err).NotTo(HaveOccurred())

			Expect(string(block)).To(ContainSubstring("<b>&</b>"))
		})

		It("renders an empty prompt as an empty list", func() {
			block, err := transcript.Format(nil, "ok")
			Expect(err).NotTo(HaveOccurred())

			Expect(string(block)).To(ContainSubstring("Prompt:\n[]\nLLM Answer:\n"))
		})
	})

	Describe("Append", func() {
		It("creates the file and appends one block per call", func() {
			Expect(writer.Append([]llm.Message{llm.User("first")}, "one")).To(Succeed())
			Expect(writer.Append([]llm.Message{llm.User("second")}, "two")).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())

			got := blocks(string(data))
			Expect(got).To(HaveLen(2))
			Expect(got[0]).To(ContainSubstring("LLM Answer:\none\n"))
			Expect(got[1]).To(ContainSubstring("LLM Answer:\ntwo\n"))
		})

		It("keeps existing content", func() {
			Expect(os.WriteFile(path, []byte("previous\n"), 0o644)).To(Succeed())
			Expect(writer.Append([]llm.Message{llm.User("x")}, "y")).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(HavePrefix("previous\n" + transcript.Delimiter))
		})

		It("returns an error when the file cannot be opened", func() {
			w := transcript.New(filepath.Join(dir, "missing", "dir", "log.txt"))

			err := w.Append([]llm.Message{llm.User("x")}, "y")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("open transcript"))
		})

		It("does not interleave concurrent appends", func() {
			const n = 50
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					content := strings.Repeat(fmt.Sprintf("turn %d ", i), 200)
					Expect(writer.Append([]llm.Message{llm.User(content)}, fmt.Sprintf("answer %d", i))).To(Succeed())
				}(i)
			}
			wg.Wait()

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())

			got := blocks(string(data))
			Expect(got).To(HaveLen(n))
			for _, b := range got {
				Expect(b).To(HavePrefix(transcript.Delimiter + "\nPrompt:\n"))
				Expect(strings.Count(b, "LLM Answer:\n")).To(Equal(1))
			}
		})
	})
})
