package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/clemm/pkg/agent"
)

func newCrewCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "List the crew",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			crew, err := cfg.LoadCrew()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tMAX TOKENS\tTEMPERATURE")
			for _, c := range crew {
				p := c.GenerateParams()
				name := c.Name
				if name == "" {
					name = c.Key
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", c.Key, name, p.MaxTokens, p.Temperature)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the crew definition as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			crew, err := cfg.LoadCrew()
			if err != nil {
				return err
			}
			return agent.SaveCrewConfigs(crew, cmd.OutOrStdout())
		},
	})
	return cmd
}
