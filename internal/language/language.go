// Package language provides unified language code normalization.
//
// All language-related conversions (BCP-47 tags, ISO 639-1 codes, display
// names) are consolidated here to avoid duplication across the transcription
// providers and summarization agents.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize converts any recognized language identifier (BCP-47 tag, ISO code,
// or English word form like "english") to an ISO 639-1 base code. Returns
// empty string for unrecognized input.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if mapped, ok := byWord[strings.ToLower(code)]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// DisplayName returns a human-readable English language name for any
// recognized code. Returns "Unknown" for empty or unrecognized input.
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return "Unknown"
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return "Unknown"
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(normalized)
}

// NormalizeList deduplicates and normalizes a list of language codes.
// Unrecognized entries are dropped.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		mapped := Normalize(lang)
		if mapped == "" {
			continue
		}
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		normalized = append(normalized, mapped)
	}
	return normalized
}

// Word forms that show up in caller input and provider metadata but are not
// parseable BCP-47 tags.
var byWord = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}
