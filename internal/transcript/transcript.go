// Package transcript defines the diarized transcript model shared by the
// transcription providers and the summarization agents.
//
// A Transcript is immutable once produced: providers build it, every later
// stage only reads it. Derived values (full text, duration, speaker count)
// are computed from the utterance sequence rather than stored.
package transcript

import (
	"fmt"
	"strings"
)

// DefaultConfidence is used when a provider does not emit per-segment confidence.
const DefaultConfidence = 0.9

// Utterance is one timestamped, speaker-attributed span of transcript text.
type Utterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    int     `json:"speaker"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript owns an ordered sequence of utterances for one (episode, language).
type Transcript struct {
	Utterances       []Utterance `json:"utterances"`
	DetectedLanguage string      `json:"detected_language,omitempty"`
}

// FullText joins all utterance text with single spaces.
func (t *Transcript) FullText() string {
	parts := make([]string, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		if text := strings.TrimSpace(u.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Duration returns the end timestamp of the final utterance in seconds.
func (t *Transcript) Duration() float64 {
	if len(t.Utterances) == 0 {
		return 0
	}
	return t.Utterances[len(t.Utterances)-1].End
}

// SpeakerCount returns the number of distinct speaker IDs.
func (t *Transcript) SpeakerCount() int {
	seen := make(map[int]struct{}, 4)
	for _, u := range t.Utterances {
		seen[u.Speaker] = struct{}{}
	}
	return len(seen)
}

// Render produces a caption-style rendering for diagnostics and agent prompts:
//
//	[mm:ss] [Speaker N] text
func (t *Transcript) Render() string {
	var builder strings.Builder
	builder.Grow(len(t.Utterances) * 48)
	for _, u := range t.Utterances {
		builder.WriteString(fmt.Sprintf("[%s] [Speaker %d] %s\n", formatTimestamp(u.Start), u.Speaker, strings.TrimSpace(u.Text)))
	}
	return builder.String()
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
