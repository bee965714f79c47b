package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const episodeColumns = "id, title, podcast_name, audio_url, duration_seconds, published_at, created_at, updated_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		id           string
		title        string
		podcastName  string
		audioURL     string
		duration     float64
		publishedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(&id, &title, &podcastName, &audioURL, &duration, &publishedRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	return &Episode{
		ID:          id,
		Title:       title,
		PodcastName: podcastName,
		AudioURL:    audioURL,
		DurationSec: duration,
		PublishedAt: parseTimestamp(publishedRaw),
		CreatedAt:   parseTimestamp(createdRaw),
		UpdatedAt:   parseTimestamp(updatedRaw),
	}, nil
}

// GetEpisode fetches an episode catalog row. Returns nil when unknown.
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id,
	)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// UpsertEpisode inserts or refreshes an episode catalog row.
func (s *Store) UpsertEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return errors.New("episode is nil")
	}
	now := time.Now().UTC().Format(sqlTimeLayout)
	return s.execWithoutResultRetry(ctx,
		`INSERT INTO episodes (
            id, title, podcast_name, audio_url, duration_seconds, published_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            title = excluded.title,
            podcast_name = excluded.podcast_name,
            audio_url = excluded.audio_url,
            duration_seconds = excluded.duration_seconds,
            published_at = excluded.published_at,
            updated_at = excluded.updated_at`,
		episode.ID, episode.Title, episode.PodcastName, episode.AudioURL,
		episode.DurationSec, nullableTime(episode.PublishedAt), now, now,
	)
}

// ListEpisodes returns catalog rows ordered by most recently updated.
func (s *Store) ListEpisodes(ctx context.Context) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes ORDER BY updated_at DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return episodes, nil
}
