package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/memory"
)

func newTranscriptsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "transcripts [conversation-id]",
		Short: "List stored conversations, or print one",
		Long: `Reads the SQLite transcript store named by memory.sqlite_path. Without
an argument it lists conversation IDs, most recent first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := memory.OpenSQLite(cfg.Memory.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ids, err := store.Conversations(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			msgs, err := store.GetMessages(memory.WithConversationID(ctx, args[0]), interfaces.WithLimit(limit))
			if err != nil {
				return err
			}
			for _, m := range msgs {
				crew, _ := m.Metadata["crew"].(string)
				fmt.Fprintf(out, "[%s] %s: %s\n", crew, m.Role, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last n messages")
	return cmd
}
