// Package notify delivers summary-ready notifications over the configured
// channels and manages the delivery lifecycle of persisted requests.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"recap/internal/agents"
	"recap/internal/services"
	"recap/internal/store"
)

const maxContentQuotes = 3

// Content is the message body shared by every channel for one episode. It is
// built once per episode and reused across recipients.
type Content struct {
	EpisodeID   string
	Title       string
	PodcastName string
	Headline    string
	Summary     string
	Quotes      []agents.Quote
}

// Subject renders the notification subject line.
func (c Content) Subject() string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = c.EpisodeID
	}
	if podcast := strings.TrimSpace(c.PodcastName); podcast != "" {
		return fmt.Sprintf("New summary: %s: %s", podcast, title)
	}
	return fmt.Sprintf("New summary: %s", title)
}

// Body renders the plain-text notification body.
func (c Content) Body() string {
	var builder strings.Builder
	if headline := strings.TrimSpace(c.Headline); headline != "" {
		builder.WriteString(headline)
		builder.WriteString("\n\n")
	}
	if summary := strings.TrimSpace(c.Summary); summary != "" {
		builder.WriteString(summary)
		builder.WriteString("\n")
	}
	if len(c.Quotes) > 0 {
		builder.WriteString("\nNotable quotes:\n")
		for _, quote := range c.Quotes {
			fmt.Fprintf(&builder, "- %q", quote.Text)
			if quote.Speaker != "" {
				fmt.Fprintf(&builder, " (%s", quote.Speaker)
				if quote.Timestamp != "" {
					fmt.Fprintf(&builder, ", %s", quote.Timestamp)
				}
				builder.WriteString(")")
			}
			builder.WriteString("\n")
		}
	}
	return strings.TrimRight(builder.String(), "\n") + "\n"
}

// ContentSource reads the persisted rows content is built from.
type ContentSource interface {
	GetEpisode(ctx context.Context, id string) (*store.Episode, error)
	GetSummary(ctx context.Context, episodeID string, level store.Level, language string) (*store.Summary, error)
}

// BuildContent assembles notification content for one episode from its ready
// summaries. The quick summary supplies the headline and body; insights, when
// ready, contribute up to three quotes.
func BuildContent(ctx context.Context, src ContentSource, episodeID, language string) (Content, error) {
	content := Content{EpisodeID: episodeID}

	episode, err := src.GetEpisode(ctx, episodeID)
	if err != nil {
		return content, err
	}
	if episode != nil {
		content.Title = episode.Title
		content.PodcastName = episode.PodcastName
	}

	quick, err := readySummary(ctx, src, episodeID, store.LevelQuick, language)
	if err != nil {
		return content, err
	}
	if quick == nil {
		return content, services.Wrap(services.ErrNotFound, "notify", "build_content",
			fmt.Sprintf("no ready quick summary for episode %s", episodeID), nil)
	}

	var quickPayload agents.QuickSummary
	if err := json.Unmarshal([]byte(quick.ContentJSON), &quickPayload); err != nil {
		return content, services.Wrap(services.ErrAgentOutput, "notify", "build_content",
			"stored quick summary is unreadable", err)
	}
	content.Headline = quickPayload.Headline
	content.Summary = quickPayload.Summary

	insights, err := readySummary(ctx, src, episodeID, store.LevelInsights, language)
	if err != nil {
		return content, err
	}
	if insights != nil {
		var insightsPayload agents.InsightsSummary
		if err := json.Unmarshal([]byte(insights.ContentJSON), &insightsPayload); err == nil {
			quotes := insightsPayload.Quotes
			if len(quotes) > maxContentQuotes {
				quotes = quotes[:maxContentQuotes]
			}
			content.Quotes = quotes
		}
	}

	return content, nil
}

// FallbackContent builds the minimal content used when full content cannot be
// assembled but delivery was explicitly forced.
func FallbackContent(ctx context.Context, src ContentSource, episodeID string) Content {
	content := Content{EpisodeID: episodeID}
	if episode, err := src.GetEpisode(ctx, episodeID); err == nil && episode != nil {
		content.Title = episode.Title
		content.PodcastName = episode.PodcastName
	}
	content.Summary = "A new episode summary is ready."
	return content
}

func readySummary(ctx context.Context, src ContentSource, episodeID string, level store.Level, language string) (*store.Summary, error) {
	summary, err := src.GetSummary(ctx, episodeID, level, language)
	if err != nil {
		return nil, err
	}
	if summary == nil || summary.Status != store.StatusReady {
		return nil, nil
	}
	return summary, nil
}
