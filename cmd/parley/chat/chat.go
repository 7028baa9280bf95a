package chatcmder

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/pkg/completion"
)

const chatLongDesc string = `Hold a conversation in the terminal.

Every prompt is sent with the conversation so far. When the history
no longer fits the model's context window the oldest turns are
dropped, and they stay dropped for the rest of the session. A prompt
that gets no answer is not kept in the history.

Examples:
  parley chat
  parley chat --system "You are a Minecraft expert" --sqlite ~/.parley/parley.db`

const chatShortDesc string = "Interactive chat"

type chatCommander struct {
	flags *setup.Flags

	system     string
	model      string
	sqlitePath string
}

func NewChatCmd(flags *setup.Flags) *cobra.Command {
	cmder := &chatCommander{flags: flags}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.system, "system", "", "System message for the conversation")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model override")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Record exchanges in this SQLite database")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := setup.Open(c.flags, c.sqlitePath, setup.StoreConfigured, setup.Quiet())
	if err != nil {
		return err
	}
	defer env.Close()

	m := newModel(ctx, env.Client, c.system, completion.WithModel(c.model))
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
