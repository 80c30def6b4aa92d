package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/clemm/pkg/config"
	"github.com/run-bigpig/clemm/pkg/console"
)

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open the interactive crew console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts, false)
		},
	}
}

func newBootCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Check the warp drive key, then open the console",
		Long: `Boot verifies WARP_DRIVE_KEY (from the environment or a .env file)
before bringing the core systems online. The key must be longer than
8 characters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts, true)
		},
	}
}

func runConsole(cmd *cobra.Command, opts *rootOptions, checkKey bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if checkKey {
		if err := config.LoadEnvFiles(opts.envFiles...); err != nil {
			return err
		}
		if err := config.CheckWarpKey(); err != nil {
			fmt.Fprintln(out, "ERROR: Invalid or missing warp drive key. System shutdown initiated.")
			return err
		}
		fmt.Fprintln(out, "Warp drive key accepted. Core systems online.")
	}

	ship, err := opts.boot(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer ship.Close(ctx)

	c, err := console.New(ship.Roster,
		console.WithInput(cmd.InOrStdin()),
		console.WithOutput(out),
		console.WithLogger(ship.Logger),
	)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}
