package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
)

// Sender delivers notification content to one recipient on one channel.
type Sender interface {
	Channel() store.Channel
	Send(ctx context.Context, recipient string, content Content) error
}

// Store is the persistence surface the service needs.
type Store interface {
	ContentSource
	GetNotificationByID(ctx context.Context, id int64) (*store.Notification, error)
	ListDueNotifications(ctx context.Context, now time.Time) ([]*store.Notification, error)
	ListPendingForEpisode(ctx context.Context, episodeID string) ([]*store.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) (bool, error)
	MarkNotificationFailed(ctx context.Context, id int64, message string) (bool, error)
	CancelNotification(ctx context.Context, id int64) (bool, error)
	RequeueNotification(ctx context.Context, id int64, scheduledAt time.Time) (bool, error)
}

// Service fans summary-ready notifications out to the configured channels.
type Service struct {
	store    Store
	senders  map[store.Channel]Sender
	language string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the delivery channels. Senders for disabled channels are
// simply omitted; requests on a missing channel fail individually.
func NewService(st Store, senders []Sender, language string, logger *slog.Logger) *Service {
	byChannel := make(map[store.Channel]Sender, len(senders))
	for _, sender := range senders {
		byChannel[sender.Channel()] = sender
	}
	if language == "" {
		language = "en"
	}
	return &Service{
		store:    st,
		senders:  byChannel,
		language: language,
		logger:   logging.NewComponentLogger(logger, "notify"),
		now:      time.Now,
	}
}

// Result reports the outcome of one trigger pass.
type Result struct {
	Sent    int
	Failed  int
	Pending int
}

// TriggerPending delivers every due pending notification. Content is built
// once per episode; a delivery failure marks that single request failed and
// never stops the rest of the pass. An episode whose quick summary is not
// ready yet keeps its requests pending for a later pass; only genuinely
// broken content marks them failed.
func (s *Service) TriggerPending(ctx context.Context) (Result, error) {
	var result Result

	due, err := s.store.ListDueNotifications(ctx, s.now())
	if err != nil {
		return result, fmt.Errorf("list due notifications: %w", err)
	}
	return s.dispatch(ctx, due), nil
}

// TriggerEpisode delivers every pending notification for one episode,
// regardless of scheduled time. Used on the ready transition.
func (s *Service) TriggerEpisode(ctx context.Context, episodeID string) (Result, error) {
	pending, err := s.store.ListPendingForEpisode(ctx, episodeID)
	if err != nil {
		return Result{}, fmt.Errorf("list pending notifications: %w", err)
	}
	return s.dispatch(ctx, pending), nil
}

func (s *Service) dispatch(ctx context.Context, due []*store.Notification) Result {
	var result Result
	if len(due) == 0 {
		return result
	}

	contents := make(map[string]Content)
	buildErrs := make(map[string]error)
	notReady := make(map[string]bool)

	for _, notification := range due {
		if notReady[notification.EpisodeID] {
			result.Pending++
			continue
		}
		content, ok := contents[notification.EpisodeID]
		if !ok {
			if buildErr, failed := buildErrs[notification.EpisodeID]; failed {
				s.markFailed(ctx, notification.ID, buildErr.Error())
				result.Failed++
				continue
			}
			built, buildErr := BuildContent(ctx, s.store, notification.EpisodeID, s.language)
			if buildErr != nil {
				// A missing quick summary means the episode has not reached
				// ready yet; the request stays pending for a later pass.
				if errors.Is(buildErr, services.ErrNotFound) {
					notReady[notification.EpisodeID] = true
					s.logger.Info("summary not ready yet, leaving notification pending",
						logging.String(logging.FieldEpisodeID, notification.EpisodeID))
					result.Pending++
					continue
				}
				buildErrs[notification.EpisodeID] = buildErr
				s.logger.Error("notification content build failed",
					logging.String(logging.FieldEpisodeID, notification.EpisodeID),
					logging.Error(buildErr))
				s.markFailed(ctx, notification.ID, buildErr.Error())
				result.Failed++
				continue
			}
			contents[notification.EpisodeID] = built
			content = built
		}

		if s.deliver(ctx, notification, content) {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	return result
}

// deliver attempts one delivery and records the outcome. Returns true on a
// successful send.
func (s *Service) deliver(ctx context.Context, notification *store.Notification, content Content) bool {
	sender, ok := s.senders[notification.Channel]
	if !ok {
		s.markFailed(ctx, notification.ID, fmt.Sprintf("channel %s is not configured", notification.Channel))
		return false
	}

	if err := sender.Send(ctx, notification.Recipient, content); err != nil {
		s.logger.Error("notification delivery failed",
			logging.Int64("notification_id", notification.ID),
			logging.String(logging.FieldChannel, string(notification.Channel)),
			logging.Error(err))
		s.markFailed(ctx, notification.ID, err.Error())
		return false
	}

	if _, err := s.store.MarkNotificationSent(ctx, notification.ID, s.now()); err != nil {
		s.logger.Error("failed to record sent notification",
			logging.Int64("notification_id", notification.ID),
			logging.Error(err))
		return false
	}
	s.logger.Info("notification sent",
		logging.Int64("notification_id", notification.ID),
		logging.String(logging.FieldChannel, string(notification.Channel)),
		logging.String(logging.FieldEpisodeID, notification.EpisodeID))
	return true
}

func (s *Service) markFailed(ctx context.Context, id int64, message string) {
	if _, err := s.store.MarkNotificationFailed(ctx, id, message); err != nil {
		s.logger.Error("failed to record notification failure",
			logging.Int64("notification_id", id),
			logging.Error(err))
	}
}

// Cancel cancels a pending notification. Requests in any other status are
// rejected.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	notification, err := s.requireNotification(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.CancelNotification(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "notify", "cancel",
			fmt.Sprintf("notification %d is %s, only pending requests can be cancelled", id, notification.Status), nil)
	}
	return nil
}

// ForceSend delivers a pending notification immediately, regardless of its
// scheduled time. When full content cannot be built it falls back to a
// minimal message rather than failing the request.
func (s *Service) ForceSend(ctx context.Context, id int64) error {
	notification, err := s.requireNotification(ctx, id)
	if err != nil {
		return err
	}
	if notification.Status != store.NotificationPending {
		return services.Wrap(services.ErrValidation, "notify", "force_send",
			fmt.Sprintf("notification %d is %s, only pending requests can be force-sent", id, notification.Status), nil)
	}

	content, err := BuildContent(ctx, s.store, notification.EpisodeID, s.language)
	if err != nil {
		s.logger.Warn("falling back to minimal notification content",
			logging.Int64("notification_id", id),
			logging.Error(err))
		content = FallbackContent(ctx, s.store, notification.EpisodeID)
	}

	if !s.deliver(ctx, notification, content) {
		return services.Wrap(services.ErrTransient, "notify", "force_send",
			fmt.Sprintf("delivery failed for notification %d", id), nil)
	}
	return nil
}

// Resend requeues a failed notification and attempts delivery right away.
// Requests in any other status are rejected.
func (s *Service) Resend(ctx context.Context, id int64) error {
	notification, err := s.requireNotification(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.RequeueNotification(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "notify", "resend",
			fmt.Sprintf("notification %d is %s, only failed requests can be resent", id, notification.Status), nil)
	}
	return s.ForceSend(ctx, id)
}

func (s *Service) requireNotification(ctx context.Context, id int64) (*store.Notification, error) {
	notification, err := s.store.GetNotificationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, services.Wrap(services.ErrNotFound, "notify", "lookup",
			fmt.Sprintf("notification %d does not exist", id), nil)
	}
	return notification, nil
}
