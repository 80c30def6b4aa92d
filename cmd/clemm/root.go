package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	clemm "github.com/run-bigpig/clemm/pkg"
	"github.com/run-bigpig/clemm/pkg/config"
)

type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string
	backend    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "clemm",
		Short: "Clemm 09 - shipboard assistant and crew console",
		Long: `Clemm 09 runs a crew of language-model personas that answer questions
and operate the ship's tools through run_tool commands.

Run without arguments to open the console.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts, false)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.backend, "backend", "", "model backend: server, launch, openai or ollama")

	cmd.AddCommand(
		newConsoleCmd(opts),
		newBootCmd(opts),
		newToolCmd(opts),
		newMCPCmd(opts),
		newCrewCmd(opts),
		newTranscriptsCmd(opts),
	)
	return cmd
}

// loadConfig reads the config and applies the command line overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, o.envFiles...)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.backend != "" {
		cfg.SwitchBackend(o.backend, os.LookupEnv)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// boot loads the config and starts the ship, logging to logOut
func (o *rootOptions) boot(ctx context.Context, logOut io.Writer, extra ...clemm.Option) (*clemm.Ship, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	options := append([]clemm.Option{clemm.WithLogger(clemm.NewLogger(cfg.Log, logOut))}, extra...)
	return clemm.Boot(ctx, cfg, options...)
}
