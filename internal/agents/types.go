package agents

// SpeakerRole classifies a speaker's part in the conversation.
type SpeakerRole string

const (
	RoleHost    SpeakerRole = "host"
	RoleGuest   SpeakerRole = "guest"
	RoleUnknown SpeakerRole = "unknown"
)

// ParseRole normalizes a model-emitted role string.
func ParseRole(value string) SpeakerRole {
	switch SpeakerRole(value) {
	case RoleHost, RoleGuest:
		return SpeakerRole(value)
	default:
		return RoleUnknown
	}
}

// SpeakerInfo names and classifies one diarized speaker. IDs are scoped to a
// single transcript's analysis.
type SpeakerInfo struct {
	ID   int         `json:"id"`
	Name string      `json:"name"`
	Role SpeakerRole `json:"role"`
}

// TopicBlock is a contiguous group of utterances judged to share a subject.
// UtteranceIndices refer into the source transcript's utterance sequence.
type TopicBlock struct {
	ID               int     `json:"id"`
	Label            string  `json:"label"`
	UtteranceIndices []int   `json:"utterance_indices"`
	PrimarySpeaker   int     `json:"primary_speaker"`
	StartTime        float64 `json:"start_time"`
	EndTime          float64 `json:"end_time"`
}

// AnalysisResult is the Analyst stage output.
type AnalysisResult struct {
	Speakers    []SpeakerInfo `json:"speakers"`
	TopicBlocks []TopicBlock  `json:"topic_blocks"`
}

// SpeakerContribution records what one speaker added within a topic block.
type SpeakerContribution struct {
	Speaker      string `json:"speaker"`
	Contribution string `json:"contribution"`
}

// BlockSummary is the Writer stage output for one topic block.
type BlockSummary struct {
	BlockID              int                   `json:"block_id"`
	Label                string                `json:"label"`
	Summary              string                `json:"summary"`
	KeyPoints            []string              `json:"key_points"`
	SpeakerContributions []SpeakerContribution `json:"speaker_contributions"`
}

// Section is one merged portion of the final summary.
type Section struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Speakers  []string `json:"speakers"`
}

// FinalSummary is the Editor stage output persisted for the deep level.
type FinalSummary struct {
	TLDR         string        `json:"tldr"`
	Speakers     []SpeakerInfo `json:"speakers"`
	Sections     []Section     `json:"sections"`
	KeyTakeaways []string      `json:"key_takeaways"`
	ActionItems  []string      `json:"action_items"`
	Topics       []string      `json:"topics"`
}

// QuickSummary is the quick-level content shape.
type QuickSummary struct {
	Headline string   `json:"headline"`
	Summary  string   `json:"summary"`
	Bullets  []string `json:"bullets"`
}

// Quote is one highlighted excerpt in an insights summary. Timestamp keeps
// the model's mm:ss form; it is display text, never arithmetic input.
type Quote struct {
	Text      string `json:"text"`
	Speaker   string `json:"speaker"`
	Timestamp string `json:"timestamp"`
}

// InsightsSummary is the insights-level content shape.
type InsightsSummary struct {
	Quotes []Quote  `json:"quotes"`
	Themes []string `json:"themes"`
}
