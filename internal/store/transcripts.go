package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const transcriptColumns = "id, episode_id, language, provider, transcript_json, speaker_count, duration_seconds, created_at"

func scanTranscript(scanner interface{ Scan(dest ...any) error }) (*Transcript, error) {
	var (
		id           int64
		episodeID    string
		language     string
		provider     string
		payload      string
		speakerCount int
		duration     float64
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &episodeID, &language, &provider, &payload, &speakerCount, &duration, &createdRaw); err != nil {
		return nil, err
	}

	return &Transcript{
		ID:             id,
		EpisodeID:      episodeID,
		Language:       language,
		Provider:       provider,
		TranscriptJSON: payload,
		SpeakerCount:   speakerCount,
		DurationSecs:   duration,
		CreatedAt:      parseTimestamp(createdRaw),
	}, nil
}

// GetTranscript returns the stored transcript for one episode and language.
// Returns nil when none exists.
func (s *Store) GetTranscript(ctx context.Context, episodeID, language string) (*Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE episode_id = ? AND language = ?`,
		episodeID, language,
	)
	tr, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return tr, nil
}

// SaveTranscript stores a transcript, replacing any prior row for the same
// episode and language.
func (s *Store) SaveTranscript(ctx context.Context, tr *Transcript) error {
	if tr == nil {
		return errors.New("transcript is nil")
	}
	now := time.Now().UTC().Format(sqlTimeLayout)
	return s.execWithoutResultRetry(ctx,
		`INSERT INTO transcripts (
            episode_id, language, provider, transcript_json, speaker_count, duration_seconds, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (episode_id, language) DO UPDATE SET
            provider = excluded.provider,
            transcript_json = excluded.transcript_json,
            speaker_count = excluded.speaker_count,
            duration_seconds = excluded.duration_seconds,
            created_at = excluded.created_at`,
		tr.EpisodeID, tr.Language, tr.Provider, tr.TranscriptJSON, tr.SpeakerCount, tr.DurationSecs, now,
	)
}

// DeleteTranscript removes the stored transcript for one episode and language.
func (s *Store) DeleteTranscript(ctx context.Context, episodeID, language string) error {
	return s.execWithoutResultRetry(ctx,
		`DELETE FROM transcripts WHERE episode_id = ? AND language = ?`,
		episodeID, language,
	)
}
