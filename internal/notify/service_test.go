package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/testsupport"
)

// recordingSender records deliveries and optionally fails them.
type recordingSender struct {
	channel    store.Channel
	sent       []Content
	recipients []string
	err        error
}

func (r *recordingSender) Channel() store.Channel { return r.channel }

func (r *recordingSender) Send(_ context.Context, recipient string, content Content) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, content)
	r.recipients = append(r.recipients, recipient)
	return nil
}

func newNotifyStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg)
}

func readyQuickSummary(t *testing.T, st *store.Store, episodeID string) {
	t.Helper()
	ctx := context.Background()
	summary, claimed, err := st.ClaimSummary(ctx, episodeID, store.LevelQuick, "en", "corr-quick")
	if err != nil || !claimed {
		t.Fatalf("ClaimSummary: claimed=%v err=%v", claimed, err)
	}
	content := `{"headline":"Big launch","summary":"The team shipped the thing.","bullets":["b"]}`
	if err := st.MarkSummaryReady(ctx, summary.ID, content, "test-model"); err != nil {
		t.Fatalf("MarkSummaryReady: %v", err)
	}
}

func readyInsightsSummary(t *testing.T, st *store.Store, episodeID string, quoteCount int) {
	t.Helper()
	ctx := context.Background()
	summary, claimed, err := st.ClaimSummary(ctx, episodeID, store.LevelInsights, "en", "corr-insights")
	if err != nil || !claimed {
		t.Fatalf("ClaimSummary: claimed=%v err=%v", claimed, err)
	}
	quotes := ""
	for i := 0; i < quoteCount; i++ {
		if i > 0 {
			quotes += ","
		}
		quotes += fmt.Sprintf(`{"text":"quote %d","speaker":"Sam","timestamp":"00:0%d"}`, i, i)
	}
	content := fmt.Sprintf(`{"quotes":[%s],"themes":["scale"]}`, quotes)
	if err := st.MarkSummaryReady(ctx, summary.ID, content, "test-model"); err != nil {
		t.Fatalf("MarkSummaryReady: %v", err)
	}
}

func scheduleNotification(t *testing.T, st *store.Store, episodeID string, channel store.Channel, recipient string) *store.Notification {
	t.Helper()
	notification, err := st.CreateNotification(context.Background(), episodeID, channel, recipient, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	return notification
}

func TestTriggerPendingFansOutPerChannel(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	readyQuickSummary(t, st, "ep-1")
	readyInsightsSummary(t, st, "ep-1", 5)

	scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")
	scheduleNotification(t, st, "ep-1", store.ChannelTelegram, "chat-1")

	email := &recordingSender{channel: store.ChannelEmail}
	telegram := &recordingSender{channel: store.ChannelTelegram}
	svc := NewService(st, []Sender{email, telegram}, "en", logging.NewNop())

	result, err := svc.TriggerPending(ctx)
	if err != nil {
		t.Fatalf("TriggerPending failed: %v", err)
	}
	if result.Sent != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(email.sent) != 1 || len(telegram.sent) != 1 {
		t.Fatalf("expected one delivery per channel, email=%d telegram=%d", len(email.sent), len(telegram.sent))
	}
	content := email.sent[0]
	if content.Headline != "Big launch" {
		t.Fatalf("expected quick headline in content, got %q", content.Headline)
	}
	if len(content.Quotes) != 3 {
		t.Fatalf("expected quotes capped at 3, got %d", len(content.Quotes))
	}

	rows, err := st.ListNotificationsForEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("ListNotificationsForEpisode: %v", err)
	}
	for _, row := range rows {
		if row.Status != store.NotificationSent {
			t.Fatalf("expected all rows sent, notification %d is %s", row.ID, row.Status)
		}
		if row.SentAt.IsZero() {
			t.Fatalf("expected sent_at recorded for notification %d", row.ID)
		}
	}
}

func TestTriggerPendingIsolatesDeliveryFailures(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	readyQuickSummary(t, st, "ep-1")

	failing := scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")
	ok := scheduleNotification(t, st, "ep-1", store.ChannelTelegram, "chat-1")

	email := &recordingSender{channel: store.ChannelEmail, err: errors.New("smtp refused")}
	telegram := &recordingSender{channel: store.ChannelTelegram}
	svc := NewService(st, []Sender{email, telegram}, "en", logging.NewNop())

	result, err := svc.TriggerPending(ctx)
	if err != nil {
		t.Fatalf("TriggerPending failed: %v", err)
	}
	if result.Sent != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	failedRow, _ := st.GetNotificationByID(ctx, failing.ID)
	if failedRow.Status != store.NotificationFailed || failedRow.ErrorMessage != "smtp refused" {
		t.Fatalf("expected failure recorded, got %+v", failedRow)
	}
	sentRow, _ := st.GetNotificationByID(ctx, ok.ID)
	if sentRow.Status != store.NotificationSent {
		t.Fatalf("expected telegram delivery to survive the email failure, got %s", sentRow.Status)
	}
}

func TestTriggerPendingMarksAllFailedWhenContentUnbuildable(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	// The quick summary is ready but its stored payload is garbage, so
	// content genuinely cannot be built.
	summary, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelQuick, "en", "corr-quick")
	if err != nil || !claimed {
		t.Fatalf("ClaimSummary: claimed=%v err=%v", claimed, err)
	}
	if err := st.MarkSummaryReady(ctx, summary.ID, "not json at all", "test-model"); err != nil {
		t.Fatalf("MarkSummaryReady: %v", err)
	}

	first := scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")
	second := scheduleNotification(t, st, "ep-1", store.ChannelTelegram, "chat-1")

	svc := NewService(st, []Sender{
		&recordingSender{channel: store.ChannelEmail},
		&recordingSender{channel: store.ChannelTelegram},
	}, "en", logging.NewNop())

	result, err := svc.TriggerPending(ctx)
	if err != nil {
		t.Fatalf("TriggerPending failed: %v", err)
	}
	if result.Sent != 0 || result.Failed != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, id := range []int64{first.ID, second.ID} {
		row, _ := st.GetNotificationByID(ctx, id)
		if row.Status != store.NotificationFailed {
			t.Fatalf("expected notification %d failed, got %s", id, row.Status)
		}
	}
}

func TestTriggerLeavesPendingUntilQuickSummaryReady(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	// Only the deep summary is ready. Quick drives notification content, so
	// the scheduled request must survive this pass untouched.
	summary, claimed, err := st.ClaimSummary(ctx, "ep-1", store.LevelDeep, "en", "corr-deep")
	if err != nil || !claimed {
		t.Fatalf("ClaimSummary: claimed=%v err=%v", claimed, err)
	}
	if err := st.MarkSummaryReady(ctx, summary.ID, `{"tldr":"deep dive"}`, "test-model"); err != nil {
		t.Fatalf("MarkSummaryReady: %v", err)
	}
	row := scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")

	email := &recordingSender{channel: store.ChannelEmail}
	svc := NewService(st, []Sender{email}, "en", logging.NewNop())

	result, err := svc.TriggerEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("TriggerEpisode failed: %v", err)
	}
	if result.Sent != 0 || result.Failed != 0 || result.Pending != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := st.GetNotificationByID(ctx, row.ID)
	if stored.Status != store.NotificationPending {
		t.Fatalf("expected request to stay pending, got %s", stored.Status)
	}

	// Once quick lands, the next pass delivers the same request.
	readyQuickSummary(t, st, "ep-1")
	result, err = svc.TriggerEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("second TriggerEpisode failed: %v", err)
	}
	if result.Sent != 1 || result.Pending != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(email.sent) != 1 || email.sent[0].Headline != "Big launch" {
		t.Fatalf("expected delivery with quick content, got %+v", email.sent)
	}
}

func TestTriggerPendingFailsUnconfiguredChannel(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	readyQuickSummary(t, st, "ep-1")
	row := scheduleNotification(t, st, "ep-1", store.ChannelTelegram, "chat-1")

	svc := NewService(st, []Sender{&recordingSender{channel: store.ChannelEmail}}, "en", logging.NewNop())
	result, err := svc.TriggerPending(ctx)
	if err != nil {
		t.Fatalf("TriggerPending failed: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := st.GetNotificationByID(ctx, row.ID)
	if stored.Status != store.NotificationFailed {
		t.Fatalf("expected failure for unconfigured channel, got %s", stored.Status)
	}
}

func TestTriggerEpisodeIgnoresSchedule(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	readyQuickSummary(t, st, "ep-1")

	// Scheduled in the future: a global pass would skip it.
	if _, err := st.CreateNotification(ctx, "ep-1", store.ChannelEmail, "a@example.com", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	email := &recordingSender{channel: store.ChannelEmail}
	svc := NewService(st, []Sender{email}, "en", logging.NewNop())

	result, err := svc.TriggerEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("TriggerEpisode failed: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("expected future-scheduled row delivered on episode trigger, got %+v", result)
	}
}

func TestCancelRequiresPending(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	readyQuickSummary(t, st, "ep-1")
	row := scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")

	email := &recordingSender{channel: store.ChannelEmail}
	svc := NewService(st, []Sender{email}, "en", logging.NewNop())

	if err := svc.Cancel(ctx, row.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	stored, _ := st.GetNotificationByID(ctx, row.ID)
	if stored.Status != store.NotificationCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}

	// Already cancelled, a second cancel is rejected.
	if err := svc.Cancel(ctx, row.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := svc.Cancel(ctx, 9999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for unknown id, got %v", err)
	}
}

func TestForceSendFallsBackToMinimalContent(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	// No ready summary: full content cannot be built.
	row := scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")

	email := &recordingSender{channel: store.ChannelEmail}
	svc := NewService(st, []Sender{email}, "en", logging.NewNop())

	if err := svc.ForceSend(ctx, row.ID); err != nil {
		t.Fatalf("ForceSend failed: %v", err)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(email.sent))
	}
	if email.sent[0].Summary != "A new episode summary is ready." {
		t.Fatalf("expected fallback content, got %+v", email.sent[0])
	}
	if email.sent[0].Title != "Episode ep-1" {
		t.Fatalf("fallback content should still carry the episode title, got %q", email.sent[0].Title)
	}

	// Now sent; force-send rejects everything but pending.
	if err := svc.ForceSend(ctx, row.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for sent notification, got %v", err)
	}
}

func TestResendRequeuesFailedAndDelivers(t *testing.T) {
	ctx := context.Background()
	st := newNotifyStore(t)
	testsupport.NewEpisode(t, st, "ep-1", "https://example.com/a.mp3")
	readyQuickSummary(t, st, "ep-1")
	row := scheduleNotification(t, st, "ep-1", store.ChannelEmail, "a@example.com")

	if _, err := st.MarkNotificationFailed(ctx, row.ID, "smtp refused"); err != nil {
		t.Fatalf("MarkNotificationFailed: %v", err)
	}

	email := &recordingSender{channel: store.ChannelEmail}
	svc := NewService(st, []Sender{email}, "en", logging.NewNop())

	if err := svc.Resend(ctx, row.ID); err != nil {
		t.Fatalf("Resend failed: %v", err)
	}
	stored, _ := st.GetNotificationByID(ctx, row.ID)
	if stored.Status != store.NotificationSent {
		t.Fatalf("expected resent notification marked sent, got %s", stored.Status)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(email.sent))
	}

	// Resend only accepts failed rows.
	if err := svc.Resend(ctx, row.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for sent notification, got %v", err)
	}
}

func TestContentSubjectAndBody(t *testing.T) {
	content := Content{
		EpisodeID:   "ep-1",
		Title:       "Scaling Databases",
		PodcastName: "Infra Weekly",
		Headline:    "How to scale",
		Summary:     "A discussion about scale.",
	}
	if got := content.Subject(); got != "New summary: Infra Weekly: Scaling Databases" {
		t.Fatalf("unexpected subject %q", got)
	}
	content.PodcastName = ""
	if got := content.Subject(); got != "New summary: Scaling Databases" {
		t.Fatalf("unexpected subject %q", got)
	}
	body := content.Body()
	if body == "" || body[len(body)-1] != '\n' {
		t.Fatalf("body must end with a newline: %q", body)
	}
}
