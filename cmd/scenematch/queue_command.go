package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scenematch/internal/config"
	"scenematch/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					count, ok := stats[status]
					if !ok {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var items []*queue.Item
				var err error
				if len(listStatuses) > 0 {
					statuses, parseErr := parseStatuses(listStatuses)
					if parseErr != nil {
						return parseErr
					}
					items, err = store.ItemsByStatus(cmd.Context(), statuses...)
				} else {
					items, err = store.List(cmd.Context())
				}
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						filepath.Base(item.SourcePath),
						string(item.Status),
						item.Decision,
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				table := renderTable(
					[]string{"ID", "File", "Status", "Decision", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit items as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				statuses, parseErr := parseStatuses(clearStatuses)
				if parseErr != nil {
					return parseErr
				}

				removed, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&clearStatuses, "status", "s", nil, "Only clear items with this status (repeatable)")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return stuck in-flight items to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				reset, err := store.ResetStuck(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items to pending\n", reset)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Queue database: %s\n", health.DBPath)
				fmt.Fprintln(out, renderStatusLine("Database file", boolStatus(health.DatabaseExists), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Readable", boolStatus(health.DatabaseReadable), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Schema", boolStatus(health.TableExists), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Integrity", boolStatus(health.IntegrityCheck), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Items", statusInfo, strconv.Itoa(health.TotalItems), colorize))
				if health.Error != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusError, health.Error, colorize))
				}
				return nil
			})
		},
	}
}

func parseStatuses(raw []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(raw))
	for _, value := range raw {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func boolStatus(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
