package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scenematch/internal/config"
	"scenematch/internal/providers"
	"scenematch/internal/queue"
	"scenematch/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the watch directory and process new files",
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
				watcher, err := workflow.NewWatcher(cfg, processor, store, logger)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (provider %s, poll %ds)\n",
					cfg.Paths.WatchDir, provider.Name(), cfg.Workflow.PollInterval)
				return watcher.Run(runCtx)
			})
		},
	}
}
