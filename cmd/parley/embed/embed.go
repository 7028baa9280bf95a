package embedcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/pkg/completion"
)

const embedLongDesc string = `Embed a text with ` + completion.EmbeddingModel + `.

Prints the vector length and its first values, or the whole vector
with --json. With --store the text and its vector are saved to the
vector store so that "parley search" can find them later.

Examples:
  parley embed "The creeper explodes when close to the player"
  parley embed --store --id creeper-1 "Creepers explode"
  cat notes.md | parley embed --store --vectors ./knowledge.db`

const embedShortDesc string = "Embed a text"

// preview is how many values are printed without --json.
const preview = 5

type embedCommander struct {
	flags *setup.Flags

	store       bool
	id          string
	vectorsPath string
	asJSON      bool
}

func NewEmbedCmd(flags *setup.Flags) *cobra.Command {
	cmder := &embedCommander{flags: flags}

	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: embedShortDesc,
		Long:  embedLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().BoolVar(&cmder.store, "store", false, "Save the text and vector to the vector store")
	cmd.Flags().StringVar(&cmder.id, "id", "", "Document id for --store (default: a random UUID)")
	cmd.Flags().StringVar(&cmder.vectorsPath, "vectors", "", "Path to the sqlite-vec database (default from config)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the full vector as JSON")

	return cmd
}

func (c *embedCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	text, err := readText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	env, err := setup.Open(c.flags, "", setup.StoreConfigured, setup.Quiet())
	if err != nil {
		return err
	}
	defer env.Close()

	vec, err := env.Client.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("could not embed text: %w", err)
	}

	out := cmd.OutOrStdout()
	if c.asJSON {
		if err := json.NewEncoder(out).Encode(vec); err != nil {
			return fmt.Errorf("could not encode vector: %w", err)
		}
	} else {
		fmt.Fprintf(out, "%d dimensions: %v\n", len(vec), head(vec, preview))
	}

	if !c.store {
		return nil
	}

	store, err := env.OpenVectors(c.vectorsPath)
	if err != nil {
		return err
	}
	defer store.Close()

	id := c.id
	if id == "" {
		id = uuid.NewString()
	}
	if err := store.Put(ctx, id, text, vec); err != nil {
		return fmt.Errorf("could not store embedding: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Stored %s\n", id)

	return nil
}

func head(vec []float64, n int) []float64 {
	if len(vec) < n {
		return vec
	}
	return vec[:n]
}

// readText joins the arguments, or reads stdin when there are none.
func readText(in io.Reader, args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("could not read text from stdin: %w", err)
		}
		text = strings.TrimSpace(string(b))
	}
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
