package transcript

import (
	"strings"
	"testing"
)

func sample() *Transcript {
	return &Transcript{
		DetectedLanguage: "en",
		Utterances: []Utterance{
			{Start: 0, End: 4, Speaker: 0, Text: " Welcome back. ", Confidence: 0.95},
			{Start: 4, End: 9, Speaker: 1, Text: "Thanks for having me.", Confidence: 0.9},
			{Start: 9, End: 12, Speaker: 0, Text: "", Confidence: 0.9},
			{Start: 3671, End: 3680, Speaker: 1, Text: "Closing thoughts.", Confidence: 0.88},
		},
	}
}

func TestFullText(t *testing.T) {
	got := sample().FullText()
	want := "Welcome back. Thanks for having me. Closing thoughts."
	if got != want {
		t.Fatalf("FullText = %q, want %q", got, want)
	}
}

func TestDuration(t *testing.T) {
	if got := sample().Duration(); got != 3680 {
		t.Fatalf("Duration = %v", got)
	}
	empty := &Transcript{}
	if got := empty.Duration(); got != 0 {
		t.Fatalf("empty Duration = %v", got)
	}
}

func TestSpeakerCount(t *testing.T) {
	if got := sample().SpeakerCount(); got != 2 {
		t.Fatalf("SpeakerCount = %d", got)
	}
}

func TestRender(t *testing.T) {
	rendered := sample().Render()
	if !strings.Contains(rendered, "[00:00] [Speaker 0] Welcome back.") {
		t.Fatalf("missing first line in %q", rendered)
	}
	if !strings.Contains(rendered, "[1:01:11] [Speaker 1] Closing thoughts.") {
		t.Fatalf("missing hour-form timestamp in %q", rendered)
	}
}
