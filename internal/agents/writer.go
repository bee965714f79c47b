package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"recap/internal/llm"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/transcript"
)

const writerSystemPrompt = `You summarize one topic block of a podcast
conversation. Respond with JSON only, no prose, matching exactly:
{"summary":"...","key_points":["..."],
 "speaker_contributions":[{"speaker":"...","contribution":"..."}]}
Keep the summary faithful to the block and in the transcript's own language.`

// Writer produces a BlockSummary for one topic block. Second stage of the
// pipeline; blocks are independent, so the pipeline may run several Writer
// calls concurrently.
type Writer struct {
	client *llm.Client
	logger *slog.Logger
}

// NewWriter constructs the Writer stage.
func NewWriter(client *llm.Client, logger *slog.Logger) *Writer {
	return &Writer{
		client: client,
		logger: logging.NewComponentLogger(logger, "writer"),
	}
}

type writerPayload struct {
	Summary              string                `json:"summary"`
	KeyPoints            []string              `json:"key_points"`
	SpeakerContributions []SpeakerContribution `json:"speaker_contributions"`
}

// Run summarizes a single topic block.
func (w *Writer) Run(ctx context.Context, block TopicBlock, tr *transcript.Transcript, speakers []SpeakerInfo) (BlockSummary, error) {
	var empty BlockSummary
	if len(block.UtteranceIndices) == 0 {
		return empty, services.Wrap(services.ErrValidation, "writer", "run", "topic block has no utterances", nil)
	}

	content, err := w.client.CompleteJSON(ctx, writerSystemPrompt, w.userPrompt(block, tr, speakers))
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "writer", "complete",
			fmt.Sprintf("model call failed for block %d", block.ID), err)
	}

	var payload writerPayload
	if err := llm.Decode(content, &payload); err != nil {
		return empty, services.Wrap(services.ErrAgentOutput, "writer", "parse",
			fmt.Sprintf("unparseable model output for block %d", block.ID), err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return empty, services.Wrap(services.ErrAgentOutput, "writer", "validate",
			fmt.Sprintf("empty summary for block %d", block.ID), nil)
	}

	return BlockSummary{
		BlockID:              block.ID,
		Label:                block.Label,
		Summary:              strings.TrimSpace(payload.Summary),
		KeyPoints:            trimAll(payload.KeyPoints),
		SpeakerContributions: payload.SpeakerContributions,
	}, nil
}

func (w *Writer) userPrompt(block TopicBlock, tr *transcript.Transcript, speakers []SpeakerInfo) string {
	names := make(map[int]string, len(speakers))
	for _, s := range speakers {
		names[s.ID] = fmt.Sprintf("%s (%s)", s.Name, s.Role)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Topic: %s\nSpeakers:\n", block.Label)
	for _, s := range speakers {
		fmt.Fprintf(&builder, "- %d: %s\n", s.ID, names[s.ID])
	}
	builder.WriteString("Utterances:\n")
	for _, idx := range block.UtteranceIndices {
		u := tr.Utterances[idx]
		name := names[u.Speaker]
		if name == "" {
			name = fmt.Sprintf("Speaker %d", u.Speaker)
		}
		fmt.Fprintf(&builder, "[%s] %s\n", name, strings.TrimSpace(u.Text))
	}
	return builder.String()
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
