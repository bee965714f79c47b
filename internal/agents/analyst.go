package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"recap/internal/llm"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/transcript"
)

const analystSystemPrompt = `You analyze a diarized podcast transcript.
Respond with JSON only, no prose, matching exactly:
{"speakers":[{"id":0,"name":"...","role":"host|guest|unknown"}],
 "topic_blocks":[{"label":"...","utterance_indices":[0,1,2]}]}
Rules:
- Infer real speaker names from conversational cues (greetings,
  self-introductions). When no cue exists, use "Host" for the host and
  "Guest 1", "Guest 2", ... for others.
- Classify each speaker's role as host, guest, or unknown.
- Partition every utterance index into between %d and %d contiguous topic
  blocks by subject-matter continuity. Every index appears in exactly one
  block; none may be skipped.
- Keep all generated labels in the transcript's own language.`

// Analyst infers speaker identities and partitions the transcript into topic
// blocks. First stage of the pipeline.
type Analyst struct {
	client    *llm.Client
	minBlocks int
	maxBlocks int
	logger    *slog.Logger
}

// NewAnalyst constructs the Analyst stage.
func NewAnalyst(client *llm.Client, minBlocks, maxBlocks int, logger *slog.Logger) *Analyst {
	if minBlocks <= 0 {
		minBlocks = 3
	}
	if maxBlocks < minBlocks {
		maxBlocks = 10
	}
	return &Analyst{
		client:    client,
		minBlocks: minBlocks,
		maxBlocks: maxBlocks,
		logger:    logging.NewComponentLogger(logger, "analyst"),
	}
}

// analystPayload is the untrusted wire shape the model returns.
type analystPayload struct {
	Speakers []struct {
		ID   any    `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"speakers"`
	TopicBlocks []struct {
		Label            string `json:"label"`
		UtteranceIndices []int  `json:"utterance_indices"`
	} `json:"topic_blocks"`
}

// Run analyzes the transcript. Malformed model output, including topic blocks
// that fail the partition check, is an agent output error and fatal for the run.
func (a *Analyst) Run(ctx context.Context, tr *transcript.Transcript) (*AnalysisResult, error) {
	if tr == nil || len(tr.Utterances) == 0 {
		return nil, services.Wrap(services.ErrValidation, "analyst", "run", "transcript has no utterances", nil)
	}

	system := fmt.Sprintf(analystSystemPrompt, a.minBlocks, a.maxBlocks)
	content, err := a.client.CompleteJSON(ctx, system, a.userPrompt(tr))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "analyst", "complete", "model call failed", err)
	}

	var payload analystPayload
	if err := llm.Decode(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrAgentOutput, "analyst", "parse", "unparseable model output", err)
	}

	result, err := a.validate(payload, tr)
	if err != nil {
		return nil, err
	}

	a.logger.Debug(
		"transcript analyzed",
		logging.Int("speakers", len(result.Speakers)),
		logging.Int("topic_blocks", len(result.TopicBlocks)),
	)
	return result, nil
}

func (a *Analyst) userPrompt(tr *transcript.Transcript) string {
	var builder strings.Builder
	builder.Grow(len(tr.Utterances) * 64)
	builder.WriteString("Utterances (index | start | speaker | text):\n")
	for i, u := range tr.Utterances {
		fmt.Fprintf(&builder, "%d | %.1f | %d | %s\n", i, u.Start, u.Speaker, strings.TrimSpace(u.Text))
	}
	return builder.String()
}

// validate converts the untrusted payload into a checked AnalysisResult.
// Block timing and primary speakers are derived from the transcript rather
// than trusted from the model.
func (a *Analyst) validate(payload analystPayload, tr *transcript.Transcript) (*AnalysisResult, error) {
	if len(payload.TopicBlocks) == 0 {
		return nil, services.Wrap(services.ErrAgentOutput, "analyst", "validate", "no topic blocks in output", nil)
	}

	speakers := a.normalizeSpeakers(payload, tr)

	total := len(tr.Utterances)
	seen := make(map[int]int, total)
	blocks := make([]TopicBlock, 0, len(payload.TopicBlocks))
	for blockIdx, raw := range payload.TopicBlocks {
		if len(raw.UtteranceIndices) == 0 {
			return nil, services.Wrap(services.ErrAgentOutput, "analyst", "validate",
				fmt.Sprintf("topic block %d has no utterances", blockIdx), nil)
		}
		indices := append([]int(nil), raw.UtteranceIndices...)
		sort.Ints(indices)
		for _, idx := range indices {
			if idx < 0 || idx >= total {
				return nil, services.Wrap(services.ErrAgentOutput, "analyst", "validate",
					fmt.Sprintf("utterance index %d out of range", idx), nil)
			}
			if prior, dup := seen[idx]; dup {
				return nil, services.Wrap(services.ErrAgentOutput, "analyst", "validate",
					fmt.Sprintf("utterance index %d assigned to blocks %d and %d", idx, prior, blockIdx), nil)
			}
			seen[idx] = blockIdx
		}
		blocks = append(blocks, TopicBlock{
			ID:               blockIdx,
			Label:            strings.TrimSpace(raw.Label),
			UtteranceIndices: indices,
			PrimarySpeaker:   primarySpeaker(indices, tr),
			StartTime:        tr.Utterances[indices[0]].Start,
			EndTime:          tr.Utterances[indices[len(indices)-1]].End,
		})
	}
	if len(seen) != total {
		return nil, services.Wrap(services.ErrAgentOutput, "analyst", "validate",
			fmt.Sprintf("topic blocks cover %d of %d utterances", len(seen), total), nil)
	}

	return &AnalysisResult{Speakers: speakers, TopicBlocks: blocks}, nil
}

// normalizeSpeakers guarantees one entry per transcript speaker ID, filling
// missing names with Host/Guest N fallbacks.
func (a *Analyst) normalizeSpeakers(payload analystPayload, tr *transcript.Transcript) []SpeakerInfo {
	named := make(map[int]SpeakerInfo, len(payload.Speakers))
	for _, raw := range payload.Speakers {
		id := speakerID(raw.ID)
		if id < 0 {
			continue
		}
		named[id] = SpeakerInfo{
			ID:   id,
			Name: strings.TrimSpace(raw.Name),
			Role: ParseRole(strings.ToLower(strings.TrimSpace(raw.Role))),
		}
	}

	ids := make([]int, 0, 4)
	present := make(map[int]struct{}, 4)
	for _, u := range tr.Utterances {
		if _, ok := present[u.Speaker]; !ok {
			present[u.Speaker] = struct{}{}
			ids = append(ids, u.Speaker)
		}
	}
	sort.Ints(ids)

	guestOrdinal := 0
	speakers := make([]SpeakerInfo, 0, len(ids))
	for _, id := range ids {
		info, ok := named[id]
		if !ok {
			info = SpeakerInfo{ID: id, Role: RoleUnknown}
		}
		if info.Name == "" {
			if info.Role == RoleHost || (len(speakers) == 0 && info.Role == RoleUnknown) {
				info.Name = "Host"
			} else {
				guestOrdinal++
				info.Name = fmt.Sprintf("Guest %d", guestOrdinal)
			}
		}
		speakers = append(speakers, info)
	}
	return speakers
}

// primarySpeaker picks the speaker with the most speaking time in the block.
func primarySpeaker(indices []int, tr *transcript.Transcript) int {
	totals := make(map[int]float64, 4)
	for _, idx := range indices {
		u := tr.Utterances[idx]
		totals[u.Speaker] += u.End - u.Start
	}
	best := tr.Utterances[indices[0]].Speaker
	bestTime := -1.0
	for speaker, total := range totals {
		if total > bestTime || (total == bestTime && speaker < best) {
			best = speaker
			bestTime = total
		}
	}
	return best
}

func speakerID(value any) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		var id int
		if _, err := fmt.Sscanf(trimmed, "%d", &id); err == nil {
			return id
		}
		return -1
	default:
		return -1
	}
}
