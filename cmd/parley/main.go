package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/parley/cmd/parley/ask"
	chatcmder "github.com/papercomputeco/parley/cmd/parley/chat"
	embedcmder "github.com/papercomputeco/parley/cmd/parley/embed"
	mcpcmder "github.com/papercomputeco/parley/cmd/parley/mcp"
	mergecmder "github.com/papercomputeco/parley/cmd/parley/merge"
	pushcmder "github.com/papercomputeco/parley/cmd/parley/push"
	searchcmder "github.com/papercomputeco/parley/cmd/parley/search"
	servecmder "github.com/papercomputeco/parley/cmd/parley/serve"
	"github.com/papercomputeco/parley/cmd/parley/setup"
)

const rootLongDesc string = `parley talks to an OpenAI-compatible completion endpoint.

Every exchange is appended to a plain-text transcript and, when a
conversation store is configured, recorded as a content-addressed
Merkle DAG that can be merged and pushed between machines.

Configuration is read from ~/.parley/config.toml; OPENAI_API_KEY,
OPENAI_ORG_ID, OPENAI_BASE_URL and PARLEY_MODEL override it.`

func newRootCmd() *cobra.Command {
	flags := &setup.Flags{}

	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Chat completions with context-overflow retry and transcripts",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "Path to config file (default ~/.parley/config.toml)")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(askcmder.NewAskCmd(flags))
	cmd.AddCommand(chatcmder.NewChatCmd(flags))
	cmd.AddCommand(embedcmder.NewEmbedCmd(flags))
	cmd.AddCommand(searchcmder.NewSearchCmd(flags))
	cmd.AddCommand(servecmder.NewServeCmd(flags))
	cmd.AddCommand(mcpcmder.NewMCPCmd(flags))
	cmd.AddCommand(mergecmder.NewMergeCmd())
	cmd.AddCommand(pushcmder.NewPushCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
