package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRequestCommand(ctx *commandContext) *cobra.Command {
	var level string
	var lang string

	cmd := &cobra.Command{
		Use:   "request <episode-id>",
		Short: "Request a summary and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := rt.orch.RequestSummary(cmd.Context(), args[0], level, lang)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "episode %s %s/%s: %s\n",
				result.EpisodeID, result.Level, result.Language, result.Status)
			if result.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "deep", "Summary level (quick, deep, insights)")
	cmd.Flags().StringVar(&lang, "language", "en", "Transcript language")
	return cmd
}
