package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recap/internal/llm"
	"recap/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		lang   string
		health bool
	)

	cmd := &cobra.Command{
		Use:   "status [episode-id]",
		Short: "Show summary and transcript status for an episode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			if health {
				return runHealthReport(cmd, rt)
			}
			if len(args) != 1 {
				return fmt.Errorf("episode id required unless --health is set")
			}

			snapshot, err := rt.orch.GetSummaryStatus(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			header := fmt.Sprintf("Episode %s (%s)", snapshot.EpisodeID, snapshot.Language)
			if shouldColorize(out) {
				header = ansiBlue + header + ansiReset
			}
			fmt.Fprintln(out, header)
			transcript := "missing"
			if snapshot.TranscriptReady {
				transcript = "ready via " + snapshot.TranscriptProvider
			}
			fmt.Fprintf(out, "Transcript: %s\n\n", transcript)

			rows := make([][]string, 0, len(snapshot.Levels))
			for _, level := range []store.Level{store.LevelQuick, store.LevelDeep, store.LevelInsights} {
				status, ok := snapshot.Levels[level]
				if !ok {
					continue
				}
				detail := status.Error
				if detail == "" && !status.UpdatedAt.IsZero() {
					detail = status.UpdatedAt.Local().Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{string(level), string(status.Status), detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Level", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "language", "en", "Transcript language")
	cmd.Flags().BoolVar(&health, "health", false, "Check database, model, and channel health instead")
	return cmd
}

func runHealthReport(cmd *cobra.Command, rt *runtime) error {
	cfg := rt.cfg
	rows := make([][]string, 0, 5)

	add := func(component string, err error, okDetail string) {
		if err != nil {
			rows = append(rows, []string{component, "error", err.Error()})
			return
		}
		rows = append(rows, []string{component, "ok", okDetail})
	}

	add("database", rt.store.Ping(cmd.Context()), rt.store.Path())

	model := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	add("model", model.HealthCheck(cmd.Context()), cfg.LLM.Model)

	if strings.TrimSpace(cfg.Transcription.Primary.APIKey) == "" {
		rows = append(rows, []string{"asr primary", "unconfigured", "api_key missing"})
	} else {
		rows = append(rows, []string{"asr primary", "ok", cfg.Transcription.Primary.Model})
	}
	if strings.TrimSpace(cfg.Transcription.Fallback.APIKey) == "" {
		rows = append(rows, []string{"asr fallback", "unconfigured", "api_key missing"})
	} else {
		rows = append(rows, []string{"asr fallback", "ok", cfg.Transcription.Fallback.Model})
	}

	channelRow := func(name string, enabled bool, detail string) {
		status := "disabled"
		if enabled {
			status = "enabled"
		}
		rows = append(rows, []string{name, status, detail})
	}
	channelRow("email", cfg.Notifications.Email.Enabled, cfg.Notifications.Email.SMTPHost)
	channelRow("telegram", cfg.Notifications.Telegram.Enabled, "")

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Component", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	return nil
}
