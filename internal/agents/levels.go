package agents

import (
	"context"
	"log/slog"
	"strings"

	"recap/internal/llm"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/transcript"
)

const quickSystemPrompt = `You summarize podcast and video transcripts.

Produce a compact summary of the episode. Respond with a JSON object only,
no prose around it:

{
  "headline": "one-sentence hook for the episode",
  "summary": "a single paragraph, at most five sentences",
  "bullets": ["three to five short takeaway bullets"]
}`

const insightsSystemPrompt = `You extract notable moments from podcast and video transcripts.

Identify the most quotable lines and the recurring themes. Respond with a
JSON object only, no prose around it:

{
  "quotes": [
    {"text": "verbatim quote", "speaker": "speaker name or Speaker N", "timestamp": "mm:ss"}
  ],
  "themes": ["short theme labels"]
}

Pick at most five quotes. Quotes must appear verbatim in the transcript.`

// QuickAgent produces the quick-level summary in a single model call.
type QuickAgent struct {
	client *llm.Client
	logger *slog.Logger
}

func NewQuickAgent(client *llm.Client, logger *slog.Logger) *QuickAgent {
	return &QuickAgent{client: client, logger: logging.NewComponentLogger(logger, "quick_agent")}
}

func (q *QuickAgent) Run(ctx context.Context, tr *transcript.Transcript) (*QuickSummary, error) {
	if tr == nil || len(tr.Utterances) == 0 {
		return nil, services.Wrap(services.ErrValidation, "quick", "run", "transcript has no utterances", nil)
	}

	content, err := q.client.CompleteJSON(ctx, quickSystemPrompt, tr.Render())
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "quick", "complete", "model call failed", err)
	}

	var payload QuickSummary
	if err := llm.Decode(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrAgentOutput, "quick", "parse", "unparseable model output", err)
	}
	payload.Headline = strings.TrimSpace(payload.Headline)
	payload.Summary = strings.TrimSpace(payload.Summary)
	payload.Bullets = trimAll(payload.Bullets)
	if payload.Summary == "" {
		return nil, services.Wrap(services.ErrAgentOutput, "quick", "validate", "empty summary", nil)
	}

	q.logger.Debug("quick summary produced", logging.Int("bullets", len(payload.Bullets)))
	return &payload, nil
}

// InsightsAgent produces the insights-level summary in a single model call.
type InsightsAgent struct {
	client *llm.Client
	logger *slog.Logger
}

func NewInsightsAgent(client *llm.Client, logger *slog.Logger) *InsightsAgent {
	return &InsightsAgent{client: client, logger: logging.NewComponentLogger(logger, "insights_agent")}
}

func (a *InsightsAgent) Run(ctx context.Context, tr *transcript.Transcript) (*InsightsSummary, error) {
	if tr == nil || len(tr.Utterances) == 0 {
		return nil, services.Wrap(services.ErrValidation, "insights", "run", "transcript has no utterances", nil)
	}

	content, err := a.client.CompleteJSON(ctx, insightsSystemPrompt, tr.Render())
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "insights", "complete", "model call failed", err)
	}

	var payload InsightsSummary
	if err := llm.Decode(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrAgentOutput, "insights", "parse", "unparseable model output", err)
	}
	payload.Themes = trimAll(payload.Themes)
	payload.Quotes = cleanQuotes(payload.Quotes)
	if len(payload.Quotes) == 0 && len(payload.Themes) == 0 {
		return nil, services.Wrap(services.ErrAgentOutput, "insights", "validate", "no quotes or themes extracted", nil)
	}

	a.logger.Debug("insights produced",
		logging.Int("quotes", len(payload.Quotes)),
		logging.Int("themes", len(payload.Themes)))
	return &payload, nil
}

const maxQuotes = 5

func cleanQuotes(quotes []Quote) []Quote {
	out := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		q.Text = strings.TrimSpace(q.Text)
		q.Speaker = strings.TrimSpace(q.Speaker)
		q.Timestamp = strings.TrimSpace(q.Timestamp)
		if q.Text == "" {
			continue
		}
		if q.Speaker == "" {
			q.Speaker = "Unknown"
		}
		out = append(out, q)
		if len(out) == maxQuotes {
			break
		}
	}
	return out
}
