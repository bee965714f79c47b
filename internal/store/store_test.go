package store_test

import (
	"context"
	"testing"
	"time"

	"recap/internal/store"
	"recap/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	episode := testsupport.NewEpisode(t, st, "ep-1", "https://example.com/ep-1.mp3")

	fetched, err := st.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode failed: %v", err)
	}
	if fetched == nil || fetched.AudioURL != episode.AudioURL {
		t.Fatalf("unexpected fetched episode: %#v", fetched)
	}
}

func TestClaimSummaryInsertsQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	summary, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelDeep, "en", "corr-1")
	if err != nil {
		t.Fatalf("ClaimSummary failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected fresh claim to succeed")
	}
	if summary.Status != store.StatusQueued {
		t.Fatalf("expected queued, got %s", summary.Status)
	}
	if summary.CorrelationID != "corr-1" {
		t.Fatalf("expected correlation id to persist, got %q", summary.CorrelationID)
	}
}

func TestClaimSummaryRefusesInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelDeep, "en", "corr-1")
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	second, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelDeep, "en", "corr-2")
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to lose while first is queued")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got %d and %d", first.ID, second.ID)
	}
	if second.CorrelationID != "corr-1" {
		t.Fatalf("losing claim must not overwrite correlation id, got %q", second.CorrelationID)
	}
}

func TestClaimSummaryReclaimsFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	summary, _, err := st.ClaimSummary(ctx, "ep-1", store.LevelQuick, "en", "corr-1")
	if err != nil {
		t.Fatalf("ClaimSummary failed: %v", err)
	}
	if ok, err := st.MarkSummaryFailed(ctx, summary.ID, "provider exploded"); err != nil || !ok {
		t.Fatalf("MarkSummaryFailed: ok=%v err=%v", ok, err)
	}

	reclaimed, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelQuick, "en", "corr-2")
	if err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected failed row to be claimable")
	}
	if reclaimed.Status != store.StatusQueued {
		t.Fatalf("expected queued after re-claim, got %s", reclaimed.Status)
	}
	if reclaimed.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", reclaimed.ErrorMessage)
	}
}

func TestSummariesIndependentPerLevelAndLanguage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	keys := []struct {
		level store.Level
		lang  string
	}{
		{store.LevelQuick, "en"},
		{store.LevelDeep, "en"},
		{store.LevelDeep, "es"},
	}
	for _, key := range keys {
		if _, claimed, err := st.ClaimSummary(ctx, "ep-1", key.level, key.lang, ""); err != nil || !claimed {
			t.Fatalf("claim %s/%s: claimed=%v err=%v", key.level, key.lang, claimed, err)
		}
	}

	summaries, err := st.ListSummaries(ctx, store.StatusQueued)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if len(summaries) != len(keys) {
		t.Fatalf("expected %d queued rows, got %d", len(keys), len(summaries))
	}
}

func TestTransitionSummaryGuardsCurrentStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	summary, _, err := st.ClaimSummary(ctx, "ep-1", store.LevelDeep, "en", "")
	if err != nil {
		t.Fatalf("ClaimSummary failed: %v", err)
	}

	ok, err := st.TransitionSummary(ctx, summary.ID, store.StatusQueued, store.StatusTranscribing)
	if err != nil || !ok {
		t.Fatalf("queued->transcribing: ok=%v err=%v", ok, err)
	}
	ok, err = st.TransitionSummary(ctx, summary.ID, store.StatusQueued, store.StatusTranscribing)
	if err != nil {
		t.Fatalf("second transition errored: %v", err)
	}
	if ok {
		t.Fatal("expected transition from stale status to be refused")
	}
}

func TestMarkSummaryReadyRequiresInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	summary, _, err := st.ClaimSummary(ctx, "ep-1", store.LevelDeep, "en", "")
	if err != nil {
		t.Fatalf("ClaimSummary failed: %v", err)
	}
	if err := st.MarkSummaryReady(ctx, summary.ID, `{"tldr":"done"}`, "model-x"); err != nil {
		t.Fatalf("MarkSummaryReady failed: %v", err)
	}

	fetched, err := st.GetSummary(ctx, "ep-1", store.LevelDeep, "en")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if fetched.Status != store.StatusReady {
		t.Fatalf("expected ready, got %s", fetched.Status)
	}
	if fetched.ContentJSON == "" || fetched.Model != "model-x" {
		t.Fatalf("expected content and model persisted: %#v", fetched)
	}

	if err := st.MarkSummaryReady(ctx, summary.ID, "{}", "model-x"); err == nil {
		t.Fatal("expected ready row to refuse a second ready mark")
	}
}

func TestMarkSummaryFailedNeverRegressesReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	// A slow first run gets reclaimed, a second run claims the slot and
	// finishes. The first run's late failure report must bounce off the
	// ready row.
	ctx := context.Background()
	first, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelQuick, "en", "corr-1")
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	if _, err := st.ReclaimStale(ctx, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	second, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelQuick, "en", "corr-2")
	if err != nil || !claimed {
		t.Fatalf("second claim: claimed=%v err=%v", claimed, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same slot, got rows %d and %d", first.ID, second.ID)
	}
	if err := st.MarkSummaryReady(ctx, second.ID, `{"tldr":"done"}`, "model-x"); err != nil {
		t.Fatalf("MarkSummaryReady failed: %v", err)
	}

	ok, err := st.MarkSummaryFailed(ctx, first.ID, "stale run gave up")
	if err != nil {
		t.Fatalf("MarkSummaryFailed errored: %v", err)
	}
	if ok {
		t.Fatal("expected failure mark on a ready row to be refused")
	}
	row, err := st.GetSummaryByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetSummaryByID failed: %v", err)
	}
	if row.Status != store.StatusReady {
		t.Fatalf("expected row to stay ready, got %s", row.Status)
	}
	if row.ContentJSON != `{"tldr":"done"}` {
		t.Fatalf("expected content intact, got %q", row.ContentJSON)
	}
}

func TestReclaimStaleFailsOnlyExpiredRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale, _, err := st.ClaimSummary(ctx, "ep-stale", store.LevelDeep, "en", "")
	if err != nil {
		t.Fatalf("claim stale: %v", err)
	}
	if _, _, err := st.ClaimSummary(ctx, "ep-fresh", store.LevelDeep, "en", ""); err != nil {
		t.Fatalf("claim fresh: %v", err)
	}

	// Only the fresh row gets a heartbeat after the cutoff.
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	fresh, err := st.GetSummary(ctx, "ep-fresh", store.LevelDeep, "en")
	if err != nil {
		t.Fatalf("GetSummary fresh: %v", err)
	}
	if err := st.Heartbeat(ctx, fresh.ID); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	reclaimed, err := st.ReclaimStale(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed row, got %d", reclaimed)
	}

	staleRow, err := st.GetSummaryByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetSummaryByID failed: %v", err)
	}
	if staleRow.Status != store.StatusFailed {
		t.Fatalf("expected stale row failed, got %s", staleRow.Status)
	}
	freshRow, err := st.GetSummaryByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetSummaryByID failed: %v", err)
	}
	if freshRow.Status != store.StatusQueued {
		t.Fatalf("expected fresh row untouched, got %s", freshRow.Status)
	}
}

func TestSaveTranscriptReplacesExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := &store.Transcript{
		EpisodeID:      "ep-1",
		Language:       "en",
		Provider:       "primary",
		TranscriptJSON: `{"utterances":[]}`,
	}
	if err := st.SaveTranscript(ctx, first); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	second := &store.Transcript{
		EpisodeID:      "ep-1",
		Language:       "en",
		Provider:       "fallback",
		TranscriptJSON: `{"utterances":[]}`,
		SpeakerCount:   2,
	}
	if err := st.SaveTranscript(ctx, second); err != nil {
		t.Fatalf("SaveTranscript replace failed: %v", err)
	}

	fetched, err := st.GetTranscript(ctx, "ep-1", "en")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if fetched.Provider != "fallback" || fetched.SpeakerCount != 2 {
		t.Fatalf("expected replacement row, got %#v", fetched)
	}
}

func TestNotificationLifecycleGuards(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	notification, err := st.CreateNotification(ctx, "ep-1", store.ChannelEmail, "user@example.com", time.Time{})
	if err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	if notification.Status != store.NotificationPending {
		t.Fatalf("expected pending, got %s", notification.Status)
	}

	sentAt := time.Now()
	ok, err := st.MarkNotificationSent(ctx, notification.ID, sentAt)
	if err != nil || !ok {
		t.Fatalf("MarkNotificationSent: ok=%v err=%v", ok, err)
	}

	// Every transition below starts from a non-matching status and must refuse.
	if ok, _ := st.MarkNotificationSent(ctx, notification.ID, sentAt); ok {
		t.Fatal("sent row must not be marked sent again")
	}
	if ok, _ := st.CancelNotification(ctx, notification.ID); ok {
		t.Fatal("sent row must not be cancellable")
	}
	if ok, _ := st.MarkNotificationFailed(ctx, notification.ID, "late failure"); ok {
		t.Fatal("sent row must not be marked failed")
	}
	if ok, _ := st.RequeueNotification(ctx, notification.ID, time.Now()); ok {
		t.Fatal("sent row must not be requeued")
	}

	fetched, err := st.GetNotificationByID(ctx, notification.ID)
	if err != nil {
		t.Fatalf("GetNotificationByID failed: %v", err)
	}
	if fetched.Status != store.NotificationSent || fetched.SentAt.IsZero() {
		t.Fatalf("expected sent with timestamp, got %#v", fetched)
	}
}

func TestRequeueNotificationResetsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	notification, err := st.CreateNotification(ctx, "ep-1", store.ChannelTelegram, "12345", time.Time{})
	if err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	if ok, err := st.MarkNotificationFailed(ctx, notification.ID, "smtp timeout"); err != nil || !ok {
		t.Fatalf("MarkNotificationFailed: ok=%v err=%v", ok, err)
	}

	ok, err := st.RequeueNotification(ctx, notification.ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("RequeueNotification: ok=%v err=%v", ok, err)
	}
	fetched, err := st.GetNotificationByID(ctx, notification.ID)
	if err != nil {
		t.Fatalf("GetNotificationByID failed: %v", err)
	}
	if fetched.Status != store.NotificationPending || fetched.ErrorMessage != "" || !fetched.SentAt.IsZero() {
		t.Fatalf("expected clean pending row, got %#v", fetched)
	}
}

func TestListDueNotificationsHonorsSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	now := time.Now()
	if _, err := st.CreateNotification(ctx, "ep-1", store.ChannelEmail, "due@example.com", now.Add(-time.Minute)); err != nil {
		t.Fatalf("CreateNotification due failed: %v", err)
	}
	if _, err := st.CreateNotification(ctx, "ep-1", store.ChannelEmail, "future@example.com", now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateNotification future failed: %v", err)
	}

	due, err := st.ListDueNotifications(ctx, now)
	if err != nil {
		t.Fatalf("ListDueNotifications failed: %v", err)
	}
	if len(due) != 1 || due[0].Recipient != "due@example.com" {
		t.Fatalf("expected only the due notification, got %#v", due)
	}
}
