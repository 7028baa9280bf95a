package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/cmd/parley/setup"
)

const searchLongDesc string = `Find the stored texts closest to a query.

The query is embedded and compared against everything saved with
"parley embed --store". Results are printed closest first with their
distance.

Examples:
  parley search "how do I avoid creepers"
  parley search --k 3 --json "crafting table recipe"`

const searchShortDesc string = "Search stored embeddings"

type searchCommander struct {
	flags *setup.Flags

	k           int
	vectorsPath string
	asJSON      bool
}

func NewSearchCmd(flags *setup.Flags) *cobra.Command {
	cmder := &searchCommander{flags: flags}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&cmder.k, "k", 5, "Number of results")
	cmd.Flags().StringVar(&cmder.vectorsPath, "vectors", "", "Path to the sqlite-vec database (default from config)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print matches as JSON")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, cmd *cobra.Command, query string) error {
	env, err := setup.Open(c.flags, "", setup.StoreConfigured, setup.Quiet())
	if err != nil {
		return err
	}
	defer env.Close()

	store, err := env.OpenVectors(c.vectorsPath)
	if err != nil {
		return err
	}
	defer store.Close()

	vec, err := env.Client.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("could not embed query: %w", err)
	}

	matches, err := store.Search(ctx, vec, c.k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.asJSON {
		return json.NewEncoder(out).Encode(matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}

	width := lineWidth(out)
	for _, m := range matches {
		line := fmt.Sprintf("%.4f  %s  %s", m.Distance, m.ID, strings.Join(strings.Fields(m.Text), " "))
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// lineWidth is the terminal width of out, or 0 when it is not a terminal.
func lineWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
