// Package transcript appends human-readable prompt/answer blocks to a log file.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/papercomputeco/parley/pkg/llm"
)

// DefaultPath is the transcript file used when none is configured.
const DefaultPath = "LLM_logs.txt"

// Delimiter opens and closes every block.
const Delimiter = "============================"

// Writer appends transcript blocks to a file. It keeps no open handle, so a
// single Writer is safe for concurrent use: each block is written with one
// O_APPEND write.
type Writer struct {
	path string
}

// New returns a Writer for path, or DefaultPath when path is empty.
func New(path string) *Writer {
	if path == "" {
		path = DefaultPath
	}
	return &Writer{path: path}
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one block for messages and answer.
func (w *Writer) Append(messages []llm.Message, answer string) error {
	block, err := Format(messages, answer)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}

	if _, err := f.Write(block); err != nil {
		f.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	return f.Close()
}

// Format renders a single block. Escaped newlines inside the JSON prompt are
// turned back into real ones so multi-line prompts stay readable.
func Format(messages []llm.Message, answer string) ([]byte, error) {
	if messages == nil {
		messages = []llm.Message{}
	}

	var prompt bytes.Buffer
	enc := json.NewEncoder(&prompt)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(messages); err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString(Delimiter + "\n")
	b.WriteString("Prompt:\n")
	b.WriteString(strings.ReplaceAll(prompt.String(), `\n`, "\n"))
	b.WriteString("LLM Answer:\n")
	b.WriteString(answer + "\n")
	b.WriteString(Delimiter + "\n\n")

	return []byte(b.String()), nil
}
