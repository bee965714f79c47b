package asr

import (
	"encoding/json"
	"strconv"
	"strings"

	"recap/internal/transcript"
)

// NormalizeSpeaker converts a provider speaker label into a non-negative
// integer speaker ID. Providers emit numeric indexes, string labels like
// "speaker_0" or "SPEAKER 1", or nothing at all; absent or unparseable labels
// map to 0.
func NormalizeSpeaker(label any) int {
	switch v := label.(type) {
	case nil:
		return 0
	case int:
		return clampSpeaker(v)
	case int64:
		return clampSpeaker(int(v))
	case float64:
		return clampSpeaker(int(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return clampSpeaker(int(n))
		}
		return 0
	case string:
		return normalizeSpeakerString(v)
	default:
		return 0
	}
}

func normalizeSpeakerString(label string) int {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return 0
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return clampSpeaker(n)
	}
	// Strip a leading word such as "speaker" or "spk" with _ - or space separators.
	normalized := strings.ToLower(trimmed)
	for _, sep := range []string{"_", "-", " "} {
		if idx := strings.LastIndex(normalized, sep); idx >= 0 {
			if n, err := strconv.Atoi(normalized[idx+len(sep):]); err == nil {
				return clampSpeaker(n)
			}
		}
	}
	// Trailing digits without a separator ("speaker0").
	digits := ""
	for i := len(normalized) - 1; i >= 0; i-- {
		if normalized[i] < '0' || normalized[i] > '9' {
			break
		}
		digits = string(normalized[i]) + digits
	}
	if digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			return clampSpeaker(n)
		}
	}
	return 0
}

func clampSpeaker(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// NormalizeConfidence substitutes the default confidence constant when a
// provider does not emit a usable per-segment value.
func NormalizeConfidence(value float64) float64 {
	if value <= 0 || value > 1 {
		return transcript.DefaultConfidence
	}
	return value
}
