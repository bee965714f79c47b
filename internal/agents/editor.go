package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"recap/internal/llm"
	"recap/internal/logging"
	"recap/internal/services"
)

const editorSystemPrompt = `You are the final editor of a podcast summary.
Given per-topic block summaries, respond with JSON only, no prose:
{"tldr":"...",
 "sections":[{"title":"...","summary":"...","key_points":["..."],"speakers":["..."]}],
 "key_takeaways":["..."],"action_items":["..."],"topics":["..."]}
Rules:
- Synthesize a top-level tldr of at most three sentences.
- Merge or reorder block summaries into coherent sections.
- Deduplicate takeaways and action items that repeat across blocks.
- Produce a flat topics list.
- Keep the transcript's own language throughout.`

// Editor synthesizes the ordered block summaries into the final summary.
// Third and last stage of the pipeline.
type Editor struct {
	client *llm.Client
	logger *slog.Logger
}

// NewEditor constructs the Editor stage.
func NewEditor(client *llm.Client, logger *slog.Logger) *Editor {
	return &Editor{
		client: client,
		logger: logging.NewComponentLogger(logger, "editor"),
	}
}

type editorPayload struct {
	TLDR         string    `json:"tldr"`
	Sections     []Section `json:"sections"`
	KeyTakeaways []string  `json:"key_takeaways"`
	ActionItems  []string  `json:"action_items"`
	Topics       []string  `json:"topics"`
}

// Run merges block summaries into a FinalSummary.
func (e *Editor) Run(ctx context.Context, blocks []BlockSummary, speakers []SpeakerInfo) (*FinalSummary, error) {
	if len(blocks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "editor", "run", "no block summaries", nil)
	}

	content, err := e.client.CompleteJSON(ctx, editorSystemPrompt, e.userPrompt(blocks, speakers))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "editor", "complete", "model call failed", err)
	}

	var payload editorPayload
	if err := llm.Decode(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrAgentOutput, "editor", "parse", "unparseable model output", err)
	}
	if strings.TrimSpace(payload.TLDR) == "" {
		return nil, services.Wrap(services.ErrAgentOutput, "editor", "validate", "missing tldr", nil)
	}
	if len(payload.Sections) == 0 {
		return nil, services.Wrap(services.ErrAgentOutput, "editor", "validate", "missing sections", nil)
	}

	final := &FinalSummary{
		TLDR:         strings.TrimSpace(payload.TLDR),
		Speakers:     speakers,
		Sections:     payload.Sections,
		KeyTakeaways: dedupe(payload.KeyTakeaways),
		ActionItems:  dedupe(payload.ActionItems),
		Topics:       dedupe(payload.Topics),
	}
	e.logger.Debug(
		"final summary synthesized",
		logging.Int("sections", len(final.Sections)),
		logging.Int("takeaways", len(final.KeyTakeaways)),
	)
	return final, nil
}

func (e *Editor) userPrompt(blocks []BlockSummary, speakers []SpeakerInfo) string {
	// Block summaries are already structured; hand them to the model as JSON.
	input := struct {
		Speakers []SpeakerInfo  `json:"speakers"`
		Blocks   []BlockSummary `json:"blocks"`
	}{Speakers: speakers, Blocks: blocks}
	encoded, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return ""
	}
	return string(encoded)
}

// dedupe removes duplicate entries case-insensitively while preserving order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
