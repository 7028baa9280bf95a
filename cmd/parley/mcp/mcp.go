package mcpcmder

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/mcpserver"
)

const mcpLongDesc string = `Serve parley as a Model Context Protocol server over stdio.

Tools:
  ask     chat completion with overflow retry
  embed   text embedding
  search  nearest stored texts (only with a vector store)

Exchanges are appended to the transcript and recorded in the
conversation store when one is configured.

Example client configuration:
  {"command": "parley", "args": ["mcp", "--vectors", "/path/to/knowledge.db"]}`

const mcpShortDesc string = "Run an MCP server over stdio"

type mcpCommander struct {
	flags *setup.Flags

	sqlitePath  string
	vectorsPath string
}

func NewMCPCmd(flags *setup.Flags) *cobra.Command {
	cmder := &mcpCommander{flags: flags}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Record exchanges in this SQLite database")
	cmd.Flags().StringVar(&cmder.vectorsPath, "vectors", "", "sqlite-vec database enabling the search tool (default from config)")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context) error {
	env, err := setup.Open(c.flags, c.sqlitePath, setup.StoreConfigured)
	if err != nil {
		return err
	}
	defer env.Close()

	var searcher mcpserver.Searcher
	if c.vectorsPath != "" || env.Config.Vectors.SQLite != "" {
		store, err := env.OpenVectors(c.vectorsPath)
		if err != nil {
			return err
		}
		defer store.Close()
		searcher = store
	}

	srv := mcpserver.New(env.Client, searcher, env.Logger)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
