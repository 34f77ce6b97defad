package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"scenematch/internal/config"
	"scenematch/internal/providers"
	"scenematch/internal/queue"
	"scenematch/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process <file>...",
		Short: "Match and organize one or more video files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := ctx.newLogger()
				if err != nil {
					return err
				}
				provider, err := providers.New(cfg.Provider)
				if err != nil {
					return err
				}
				processor, err := workflow.NewProcessor(cfg, store, provider, logger)
				if err != nil {
					return err
				}

				paths := make([]string, 0, len(args))
				for _, arg := range args {
					abs, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve path %q: %w", arg, err)
					}
					paths = append(paths, abs)
				}

				items, batchErr := processor.ProcessBatch(cmd.Context(), paths)

				if jsonOutput {
					if err := writeJSON(cmd, items); err != nil {
						return err
					}
					return batchErr
				}

				if len(items) > 0 {
					table := renderTable(
						[]string{"ID", "File", "Decision", "Reason", "Status", "Destination"},
						buildProcessRows(items),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
					)
					fmt.Fprintln(cmd.OutOrStdout(), table)
				}
				return batchErr
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	return cmd
}

func buildProcessRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		destination := item.FinalPath
		if destination == "" {
			destination = item.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			filepath.Base(item.SourcePath),
			item.Decision,
			item.DecisionReason,
			string(item.Status),
			destination,
		})
	}
	return rows
}
