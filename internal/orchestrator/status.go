package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"recap/internal/cache"
	"recap/internal/language"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
)

// LevelStatus is the per-level slice of a status snapshot.
type LevelStatus struct {
	Status    store.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at,omitempty"`
}

// StatusSnapshot reports the current state of every summary level and the
// transcript for one episode and language.
type StatusSnapshot struct {
	EpisodeID          string                      `json:"episode_id"`
	Language           string                      `json:"language"`
	Levels             map[store.Level]LevelStatus `json:"levels"`
	TranscriptReady    bool                        `json:"transcript_ready"`
	TranscriptProvider string                      `json:"transcript_provider,omitempty"`
}

const snapshotCacheKind = "status"

// GetSummaryStatus returns the status snapshot for one episode and language,
// served from cache when fresh.
func (o *Orchestrator) GetSummaryStatus(ctx context.Context, episodeID, rawLanguage string) (*StatusSnapshot, error) {
	if episodeID == "" {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "status", "episode id is required", nil)
	}
	lang := language.Normalize(rawLanguage)
	key := cache.SummaryKey(episodeID, snapshotCacheKind, lang)

	if o.cache != nil {
		if value, ok, err := o.cache.Get(ctx, key); err == nil && ok {
			var snapshot StatusSnapshot
			if err := json.Unmarshal(value, &snapshot); err == nil {
				return &snapshot, nil
			}
		}
	}

	snapshot, err := o.buildSnapshot(ctx, episodeID, lang)
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		if value, err := json.Marshal(snapshot); err == nil {
			ttl := o.policy.For(snapshot.settled())
			if err := o.cache.Set(ctx, key, value, ttl); err != nil {
				o.logger.Warn("status snapshot cache write failed", logging.Error(err))
			}
		}
	}
	return snapshot, nil
}

func (o *Orchestrator) buildSnapshot(ctx context.Context, episodeID, lang string) (*StatusSnapshot, error) {
	snapshot := &StatusSnapshot{
		EpisodeID: episodeID,
		Language:  lang,
		Levels:    make(map[store.Level]LevelStatus),
	}

	found := false
	for _, level := range []store.Level{store.LevelQuick, store.LevelDeep, store.LevelInsights} {
		summary, err := o.store.GetSummary(ctx, episodeID, level, lang)
		if err != nil {
			return nil, err
		}
		if summary == nil {
			snapshot.Levels[level] = LevelStatus{Status: store.StatusNotReady}
			continue
		}
		found = true
		snapshot.Levels[level] = LevelStatus{
			Status:    summary.Status,
			Error:     summary.ErrorMessage,
			UpdatedAt: summary.UpdatedAt,
		}
	}

	tr, err := o.store.GetTranscript(ctx, episodeID, lang)
	if err != nil {
		return nil, err
	}
	if tr != nil {
		found = true
		snapshot.TranscriptReady = true
		snapshot.TranscriptProvider = tr.Provider
	}

	if !found {
		if episode, err := o.store.GetEpisode(ctx, episodeID); err != nil {
			return nil, err
		} else if episode == nil {
			return nil, services.Wrap(services.ErrNotFound, "orchestrator", "status",
				"episode "+episodeID+" is unknown", nil)
		}
	}
	return snapshot, nil
}

// settled reports whether some work has started and every started level sits
// in a terminal state. It controls the snapshot's cache TTL tier; an episode
// nothing has touched yet stays on the short tier so a first request shows up
// promptly.
func (s *StatusSnapshot) settled() bool {
	started := false
	for _, level := range s.Levels {
		if level.Status.InFlight() {
			return false
		}
		if level.Status != store.StatusNotReady {
			started = true
		}
	}
	return started
}

func (o *Orchestrator) invalidateSnapshot(ctx context.Context, episodeID, lang string) {
	if o.cache == nil {
		return
	}
	key := cache.SummaryKey(episodeID, snapshotCacheKind, lang)
	if err := o.cache.Delete(ctx, key); err != nil {
		o.logger.Warn("status snapshot cache invalidation failed", logging.Error(err))
	}
}
