package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/llm"
)

const askLongDesc string = `Send one prompt to the completion endpoint and print the answer.

The prompt is taken from the arguments, or from stdin when none are
given. The exchange is appended to the transcript and recorded in the
conversation store when one is configured.

Examples:
  parley ask "Write a haiku about merge conflicts"
  git diff | parley ask --system "Review this diff" --raw
  parley ask --stop "" --model gpt-4o "List five primes"`

const askShortDesc string = "Ask a single question"

// ErrNoPrompt is returned when neither arguments nor stdin carry a prompt.
var ErrNoPrompt = errors.New("no prompt given")

type askCommander struct {
	flags *setup.Flags

	system     string
	stop       string
	model      string
	sqlitePath string
	raw        bool
}

func NewAskCmd(flags *setup.Flags) *cobra.Command {
	cmder := &askCommander{flags: flags}

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: askShortDesc,
		Long:  askLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVar(&cmder.system, "system", "", "System message sent before the prompt")
	cmd.Flags().StringVar(&cmder.stop, "stop", completion.DefaultStop, "Stop sequence for this call; empty sends none")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model override for this call")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Record the exchange in this SQLite database")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the answer without markdown rendering or colour")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	env, err := setup.Open(c.flags, c.sqlitePath, setup.StoreConfigured, setup.Quiet())
	if err != nil {
		return err
	}
	defer env.Close()

	opts := []completion.CallOption{completion.WithModel(c.model)}
	if cmd.Flags().Changed("stop") {
		opts = append(opts, completion.WithStop(c.stop))
	}

	result := env.Client.SendRequest(ctx, []llm.Message{llm.User(prompt)}, c.system, opts...)
	if result.Fallback {
		env.Logger.Warn("no completion", zap.Error(result.Err), zap.Int("attempts", result.Attempts))
	}

	return c.print(cmd.OutOrStdout(), result)
}

func (c *askCommander) print(out io.Writer, result completion.Result) error {
	tty, width := terminal(out)

	if result.Fallback {
		r := lipgloss.NewRenderer(out)
		if c.raw || !tty {
			r.SetColorProfile(termenv.Ascii)
		}
		style := r.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
		_, err := fmt.Fprintln(out, style.Render(result.Text))
		return err
	}

	if c.raw || !tty {
		_, err := fmt.Fprintln(out, result.Text)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("could not create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(result.Text)
	if err != nil {
		return fmt.Errorf("could not render answer: %w", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("could not read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(b))
	}
	if prompt == "" {
		return "", ErrNoPrompt
	}
	return prompt, nil
}

// terminal reports whether out is a terminal and its width.
func terminal(out io.Writer) (bool, int) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return true, width
}
