package main

import (
	"github.com/metoro-io/mcp-golang/transport"
	"github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/spf13/cobra"

	"github.com/run-bigpig/clemm/pkg/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve every tool over MCP",
		Long: `Serves the ship's tools to MCP clients, over stdin/stdout by default or
over HTTP with --http. Each tool takes a single "arguments" string in
run_tool syntax. Tools that act through a crew member run as the default
crew member. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ship, err := opts.boot(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ship.Close(ctx)

			var t transport.Transport
			if addr != "" {
				t = http.NewHTTPTransport(mcp.DefaultHTTPPath).WithAddr(addr)
			} else {
				t = stdio.NewStdioServerTransportWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			bridge := mcp.NewBridge(ship.Registry,
				mcp.WithAgent(ship.Roster.Default()),
				mcp.WithLogger(ship.Logger),
			)
			return bridge.Serve(ctx, t)
		},
	}

	cmd.Flags().StringVar(&addr, "http", "", "serve over HTTP on this address, for example :8083")
	return cmd
}
