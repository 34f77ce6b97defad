package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scenematch/internal/artifact"
	"scenematch/internal/config"
	"scenematch/internal/disambig"
	"scenematch/internal/match"
	"scenematch/internal/organizer"
	"scenematch/internal/queue"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve ambiguous matches",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewShowCommand(ctx))
	reviewCmd.AddCommand(newReviewResolveCommand(ctx))
	reviewCmd.AddCommand(newReviewRejectCommand(ctx))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files waiting for manual review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				items, err := store.ItemsByStatus(cmd.Context(), queue.StatusReview)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing waiting for review")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					candidates := "?"
					if art, err := decodeArtifact(item); err == nil {
						candidates = strconv.Itoa(len(art.Candidates))
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						filepath.Base(item.FinalPath),
						item.DecisionReason,
						candidates,
					})
				}
				table := renderTable(
					[]string{"ID", "File", "Reason", "Candidates"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit items as JSON")
	return cmd
}

func newReviewShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the candidates recorded for one review item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := loadReviewItem(cmd, store, args[0])
				if err != nil {
					return err
				}
				art, err := decodeArtifact(item)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, art)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "File:   %s\n", item.FinalPath)
				fmt.Fprintf(out, "Reason: %s\n", item.DecisionReason)

				rows := make([][]string, 0, len(art.Candidates))
				for _, candidate := range art.Candidates {
					distance := "-"
					if candidate.PhashDistance != nil {
						distance = strconv.Itoa(*candidate.PhashDistance)
					}
					rows = append(rows, []string{
						candidate.GUID,
						candidate.Title,
						candidate.SiteName,
						candidate.ReleaseDate,
						fmt.Sprintf("%.2f", candidate.NameSimilarity),
						distance,
					})
				}
				table := renderTable(
					[]string{"GUID", "Title", "Site", "Date", "Name Sim", "Distance"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the match artifact as JSON")
	return cmd
}

func newReviewResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> <guid>",
		Short: "Accept one candidate for a review item and file it into the library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := loadReviewItem(cmd, store, args[0])
				if err != nil {
					return err
				}
				art, err := decodeArtifact(item)
				if err != nil {
					return err
				}
				chosen, err := candidateByGUID(art, args[1])
				if err != nil {
					return err
				}

				logger, err := ctx.newLogger()
				if err != nil {
					return err
				}
				target, err := organizer.New(cfg, logger).ResolveReview(cmd.Context(), item.FinalPath, chosen)
				if err != nil {
					return err
				}

				item.Status = queue.StatusCompleted
				item.Decision = string(disambig.DecisionAccept)
				item.DecisionReason = "manually_resolved"
				item.ChosenGUID = chosen.GUID
				item.FinalPath = target
				item.ErrorMessage = ""
				if err := store.Update(cmd.Context(), item); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Resolved item %d as %s\n", item.ID, chosen.GUID)
				fmt.Fprintf(cmd.OutOrStdout(), "Filed at %s\n", target)
				return nil
			})
		},
	}
}

func newReviewRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a review item and move its file to the failed directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := loadReviewItem(cmd, store, args[0])
				if err != nil {
					return err
				}

				logger, err := ctx.newLogger()
				if err != nil {
					return err
				}
				target, err := organizer.New(cfg, logger).RejectReview(cmd.Context(), item.FinalPath)
				if err != nil {
					return err
				}

				item.Status = queue.StatusRejected
				item.Decision = string(disambig.DecisionReject)
				item.DecisionReason = "manually_rejected"
				item.FinalPath = target
				if err := store.Update(cmd.Context(), item); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Rejected item %d\n", item.ID)
				return nil
			})
		},
	}
}

func loadReviewItem(cmd *cobra.Command, store *queue.Store, rawID string) (*queue.Item, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid item id %q", rawID)
	}
	item, err := store.GetByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("queue item %d not found", id)
	}
	if item.Status != queue.StatusReview {
		return nil, fmt.Errorf("queue item %d is %s, not waiting for review", id, item.Status)
	}
	return item, nil
}

func decodeArtifact(item *queue.Item) (artifact.Artifact, error) {
	var art artifact.Artifact
	if strings.TrimSpace(item.ArtifactJSON) == "" {
		return art, fmt.Errorf("queue item %d has no match artifact", item.ID)
	}
	if err := json.Unmarshal([]byte(item.ArtifactJSON), &art); err != nil {
		return art, fmt.Errorf("decode match artifact for item %d: %w", item.ID, err)
	}
	return art, nil
}

func candidateByGUID(art artifact.Artifact, guid string) (*match.CandidateScene, error) {
	guid = strings.TrimSpace(guid)
	for _, candidate := range art.Candidates {
		if candidate.GUID == guid {
			return &match.CandidateScene{
				GUID:        candidate.GUID,
				Title:       candidate.Title,
				SiteName:    candidate.SiteName,
				ReleaseDate: candidate.ReleaseDate,
				Performers:  candidate.Performers,
			}, nil
		}
	}
	return nil, fmt.Errorf("guid %s is not among the recorded candidates", guid)
}
