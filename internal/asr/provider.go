// Package asr adapts heterogeneous speech-to-text backends behind a uniform
// diarizing Provider interface.
//
// Three variants are supported: a primary diarizing ASR API, a fallback
// Whisper-style API without diarization, and platform-published caption
// documents. Callers pick a variant with SelectProvider; transient backend
// failures are retried inside the adapter with exponential backoff so the
// orchestrator only ever sees exhausted or permanent errors.
package asr

import (
	"context"

	"recap/internal/transcript"
)

// Stage is the error-wrapping stage label used by all providers.
const Stage = "transcription"

// Provider is the uniform contract over speech-to-text backends.
type Provider interface {
	// Name identifies the provider in logs and persisted rows.
	Name() string
	// SupportsLanguage reports whether the provider can transcribe the
	// normalized ISO 639-1 language code.
	SupportsLanguage(language string) bool
	// Transcribe converts the referenced audio into a diarized transcript.
	// languageHint may be empty, letting the backend detect the language.
	Transcribe(ctx context.Context, audioRef, languageHint string) (*transcript.Transcript, error)
}

// SelectProvider returns the first variant that supports the requested
// language, or fallback when none does. Pure function: no provider calls.
func SelectProvider(variants []Provider, language string, fallback Provider) Provider {
	for _, p := range variants {
		if p == nil {
			continue
		}
		if p.SupportsLanguage(language) {
			return p
		}
	}
	return fallback
}
