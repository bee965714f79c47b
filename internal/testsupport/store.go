package testsupport

import (
	"context"
	"testing"
	"time"

	"recap/internal/config"
	"recap/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEpisode inserts an episode catalog row for tests.
func NewEpisode(t testing.TB, st *store.Store, id, audioURL string) *store.Episode {
	t.Helper()

	episode := &store.Episode{
		ID:          id,
		Title:       "Episode " + id,
		PodcastName: "Test Podcast",
		AudioURL:    audioURL,
		PublishedAt: time.Now().UTC(),
	}
	if err := st.UpsertEpisode(context.Background(), episode); err != nil {
		t.Fatalf("store.UpsertEpisode: %v", err)
	}
	return episode
}
