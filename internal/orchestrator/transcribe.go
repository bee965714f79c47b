package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"recap/internal/asr"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/transcript"
)

// resolveTranscript produces a ready transcript for the summary's episode and
// language, reusing a stored one when available. The summary row sits in
// transcribing for the duration.
func (o *Orchestrator) resolveTranscript(ctx context.Context, summary *store.Summary) (*transcript.Transcript, error) {
	moved, err := o.store.TransitionSummary(ctx, summary.ID, store.StatusQueued, store.StatusTranscribing)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, errOvertaken
	}
	logger := logging.WithContext(ctx, o.logger)

	stored, err := o.store.GetTranscript(ctx, summary.EpisodeID, summary.Language)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		var tr transcript.Transcript
		if err := json.Unmarshal([]byte(stored.TranscriptJSON), &tr); err == nil && len(tr.Utterances) > 0 {
			logger.Info("reusing stored transcript",
				logging.String(logging.FieldProvider, stored.Provider),
				logging.Int("utterances", len(tr.Utterances)))
			return &tr, nil
		}
		logger.Warn("stored transcript unreadable, re-transcribing")
	}

	episode, err := o.store.GetEpisode(ctx, summary.EpisodeID)
	if err != nil {
		return nil, err
	}
	if episode == nil || episode.AudioURL == "" {
		return nil, services.Wrap(services.ErrValidation, asr.Stage, "resolve",
			fmt.Sprintf("episode %s has no audio reference", summary.EpisodeID), nil)
	}

	provider := asr.SelectProvider(o.providers, summary.Language, o.fallback)
	if provider == nil {
		return nil, services.Wrap(services.ErrConfiguration, asr.Stage, "resolve",
			"no transcription provider configured", nil)
	}

	tr, err := provider.Transcribe(ctx, episode.AudioURL, summary.Language)
	if err != nil && o.fallback != nil && provider != o.fallback {
		logger.Warn("transcription provider failed, trying fallback",
			logging.String(logging.FieldProvider, provider.Name()),
			logging.Error(err))
		tr, err = o.fallback.Transcribe(ctx, episode.AudioURL, summary.Language)
		if err == nil {
			provider = o.fallback
		}
	}
	if err != nil {
		return nil, err
	}

	if err := o.persistTranscript(ctx, summary, provider.Name(), tr); err != nil {
		logger.Error("failed to persist transcript", logging.Error(err))
	}
	logger.Info("transcription complete",
		logging.String(logging.FieldProvider, provider.Name()),
		logging.Int("utterances", len(tr.Utterances)),
		logging.Int("speakers", tr.SpeakerCount()))
	return tr, nil
}

func (o *Orchestrator) persistTranscript(ctx context.Context, summary *store.Summary, provider string, tr *transcript.Transcript) error {
	encoded, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	return o.store.SaveTranscript(ctx, &store.Transcript{
		EpisodeID:      summary.EpisodeID,
		Language:       summary.Language,
		Provider:       provider,
		TranscriptJSON: string(encoded),
		SpeakerCount:   tr.SpeakerCount(),
		DurationSecs:   tr.Duration(),
	})
}
