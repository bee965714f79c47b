package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recap/internal/store"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episode",
		Short: "Manage the episode catalog",
	}
	cmd.AddCommand(newEpisodeAddCommand(ctx))
	cmd.AddCommand(newEpisodeListCommand(ctx))
	return cmd
}

func newEpisodeAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var podcast string
	var audioURL string
	var published string
	var duration float64

	cmd := &cobra.Command{
		Use:   "add <episode-id>",
		Short: "Add or update an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			episode := &store.Episode{
				ID:          args[0],
				Title:       title,
				PodcastName: podcast,
				AudioURL:    audioURL,
				DurationSec: duration,
			}
			if published != "" {
				parsed, err := time.Parse(time.RFC3339, published)
				if err != nil {
					return fmt.Errorf("parse --published: %w", err)
				}
				episode.PublishedAt = parsed
			}
			if err := rt.store.UpsertEpisode(cmd.Context(), episode); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "episode %s saved\n", episode.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Episode title")
	cmd.Flags().StringVar(&podcast, "podcast", "", "Podcast name")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "Audio file URL")
	cmd.Flags().StringVar(&published, "published", "", "Publish time (RFC 3339)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Duration in seconds")
	_ = cmd.MarkFlagRequired("audio-url")
	return cmd
}

func newEpisodeListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			episodes, err := rt.store.ListEpisodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(episodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no episodes")
				return nil
			}

			rows := make([][]string, 0, len(episodes))
			for _, episode := range episodes {
				published := ""
				if !episode.PublishedAt.IsZero() {
					published = episode.PublishedAt.Local().Format("2006-01-02")
				}
				rows = append(rows, []string{
					episode.ID,
					episode.PodcastName,
					episode.Title,
					published,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Podcast", "Title", "Published"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
