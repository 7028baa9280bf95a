package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/cmd/parley/setup"
	"github.com/papercomputeco/parley/proxy"
)

const serveLongDesc string = `Run the parley HTTP gateway.

The gateway answers chat and embedding requests through the completion
client and records every exchange in the conversation store. Without
--sqlite or [storage] sqlite the store is kept in memory.

Endpoints:
  POST /api/chat          chat completion with overflow retry
  POST /api/embed         text embedding
  GET  /dag/stats         conversation store statistics
  GET  /dag/history       all conversation histories
  POST /dag/nodes         node import used by "parley push"
  GET  /metrics           Prometheus counters

Examples:
  parley serve
  parley serve --listen 127.0.0.1:9000 --sqlite ~/.parley/parley.db`

const serveShortDesc string = "Run the HTTP gateway"

type serveCommander struct {
	flags *setup.Flags

	listen     string
	sqlitePath string
}

func NewServeCmd(flags *setup.Flags) *cobra.Command {
	cmder := &serveCommander{flags: flags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default from config, \":8080\")")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database (default: in-memory)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := setup.Open(c.flags, c.sqlitePath, setup.StoreAlways)
	if err != nil {
		return err
	}
	defer env.Close()

	listen := c.listen
	if listen == "" {
		listen = env.Config.Server.Listen
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", listen, err)
	}

	p := proxy.New(proxy.Config{ListenAddr: listen}, env.Client, env.Storer, env.Logger)
	fmt.Fprintf(cmd.OutOrStdout(), "parley gateway listening on http://%s (model %s)\n", ln.Addr(), env.Client.Model())

	return serve(ctx, p, ln, env.Logger)
}

// serve runs p on ln until ctx is done or the server fails.
func serve(ctx context.Context, p *proxy.Proxy, ln net.Listener, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.RunWithListener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down gateway")
		if err := p.Shutdown(); err != nil {
			return fmt.Errorf("could not shut down gateway: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}
