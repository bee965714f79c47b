package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"recap/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain summary requests",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueReclaimCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List summary requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			var filter store.Status
			if statusFlag != "" {
				parsed, ok := store.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				filter = parsed
			}

			summaries, err := rt.store.ListSummaries(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no summary requests")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				detail := summary.ErrorMessage
				if detail == "" && !summary.UpdatedAt.IsZero() {
					detail = summary.UpdatedAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{
					strconv.FormatInt(summary.ID, 10),
					summary.EpisodeID,
					string(summary.Level),
					summary.Language,
					string(summary.Status),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Episode", "Level", "Lang", "Status", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status")
	return cmd
}

func newQueueReclaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Fail in-flight requests abandoned by a crashed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			staleAfter := time.Duration(rt.cfg.Workflow.StaleAfterSeconds) * time.Second
			cutoff := time.Now().Add(-staleAfter)
			reclaimed, err := rt.store.ReclaimStale(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d stale request(s) older than %s\n", reclaimed, staleAfter)
			return nil
		},
	}
}
