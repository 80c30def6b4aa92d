package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/clemm/pkg/toolcall"
)

func newToolCmd(opts *rootOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "tool [name] [arguments]",
		Short: "Run one tool, or list the tools",
		Example: `  clemm tool --list
  clemm tool status_log
  clemm tool create_file filename="orders.txt", content="Hold position."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return fmt.Errorf("a tool name is required (see --list)")
			}

			ship, err := opts.boot(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer ship.Close(cmd.Context())

			out := cmd.OutOrStdout()
			if list {
				for _, line := range ship.Registry.Descriptions() {
					fmt.Fprintln(out, line)
				}
				return nil
			}

			call, err := toolcall.ParseCommand(toolcall.Keyword + " " + strings.Join(args, " "))
			if err != nil {
				return err
			}
			if call.Err != nil {
				return fmt.Errorf("could not parse arguments %q: %w", call.Raw, call.Err)
			}
			fmt.Fprintln(out, ship.Registry.Invoke(cmd.Context(), call.Name, ship.Roster.Default(), call.Arguments))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the available tools")
	return cmd
}
