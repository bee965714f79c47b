package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/store"
)

type summaryRequest struct {
	EpisodeID string `json:"episode_id"`
	Level     string `json:"level"`
	Language  string `json:"language"`
}

type episodeRequest struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	PodcastName string  `json:"podcast_name"`
	AudioURL    string  `json:"audio_url"`
	DurationSec float64 `json:"duration_seconds"`
	PublishedAt string  `json:"published_at"`
}

type notificationRequest struct {
	EpisodeID   string `json:"episode_id"`
	Channel     string `json:"channel"`
	Recipient   string `json:"recipient"`
	ScheduledAt string `json:"scheduled_at"`
}

type healthComponent struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

type healthReport struct {
	Status     string            `json:"status"`
	Components []healthComponent `json:"components"`
}

// handleHealth reports per-component reachability: database, model endpoint,
// transcription credentials, and delivery channels. The endpoint answers 503
// only when the database is down; anything else degrades the report.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report := healthReport{Status: "ok"}
	degrade := func(component, status, detail string) {
		report.Status = "degraded"
		report.Components = append(report.Components, healthComponent{Component: component, Status: status, Detail: detail})
	}
	healthy := func(component, detail string) {
		report.Components = append(report.Components, healthComponent{Component: component, Status: "ok", Detail: detail})
	}

	dbErr := s.store.Ping(r.Context())
	if dbErr != nil {
		degrade("database", "error", dbErr.Error())
	} else {
		healthy("database", "")
	}

	if err := s.model.HealthCheck(r.Context()); err != nil {
		degrade("model", "error", err.Error())
	} else {
		healthy("model", s.cfg.LLM.Model)
	}

	if strings.TrimSpace(s.cfg.Transcription.Primary.APIKey) == "" {
		degrade("asr_primary", "unconfigured", "api_key missing")
	} else {
		healthy("asr_primary", s.cfg.Transcription.Primary.Model)
	}

	channel := func(name string, enabled bool) {
		status := "disabled"
		if enabled {
			status = "enabled"
		}
		report.Components = append(report.Components, healthComponent{Component: name, Status: status})
	}
	channel("email", s.cfg.Notifications.Email.Enabled)
	channel("telegram", s.cfg.Notifications.Telegram.Enabled)

	code := http.StatusOK
	if dbErr != nil {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, report)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req summaryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		result, err := s.orch.RequestSummary(r.Context(), req.EpisodeID, req.Level, req.Language)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	case http.MethodGet:
		episodeID := strings.TrimSpace(r.URL.Query().Get("episode_id"))
		lang := r.URL.Query().Get("language")
		snapshot, err := s.orch.GetSummaryStatus(r.Context(), episodeID, lang)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snapshot)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req episodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			s.writeError(w, http.StatusBadRequest, "episode id is required")
			return
		}
		episode := &store.Episode{
			ID:          strings.TrimSpace(req.ID),
			Title:       strings.TrimSpace(req.Title),
			PodcastName: strings.TrimSpace(req.PodcastName),
			AudioURL:    strings.TrimSpace(req.AudioURL),
			DurationSec: req.DurationSec,
		}
		if req.PublishedAt != "" {
			published, err := time.Parse(time.RFC3339, req.PublishedAt)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "published_at must be RFC 3339")
				return
			}
			episode.PublishedAt = published
		}
		if err := s.store.UpsertEpisode(r.Context(), episode); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, episode)
	case http.MethodGet:
		episodes, err := s.store.ListEpisodes(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req notificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		channel, ok := store.ParseChannel(req.Channel)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown channel")
			return
		}
		if strings.TrimSpace(req.EpisodeID) == "" || strings.TrimSpace(req.Recipient) == "" {
			s.writeError(w, http.StatusBadRequest, "episode_id and recipient are required")
			return
		}
		var scheduledAt time.Time
		if req.ScheduledAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "scheduled_at must be RFC 3339")
				return
			}
			scheduledAt = parsed
		}
		notification, err := s.store.CreateNotification(r.Context(),
			strings.TrimSpace(req.EpisodeID), channel, strings.TrimSpace(req.Recipient), scheduledAt)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, notification)
	case http.MethodGet:
		episodeID := strings.TrimSpace(r.URL.Query().Get("episode_id"))
		if episodeID == "" {
			s.writeError(w, http.StatusBadRequest, "episode_id is required")
			return
		}
		notifications, err := s.store.ListNotificationsForEpisode(r.Context(), episodeID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleNotificationAction covers /api/notifications/trigger and the
// per-request admin actions /api/notifications/{id}/{action}.
func (s *Server) handleNotificationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")

	if rest == "trigger" {
		var req struct {
			EpisodeID string `json:"episode_id"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		var result any
		var err error
		if strings.TrimSpace(req.EpisodeID) != "" {
			result, err = s.notifier.TriggerEpisode(r.Context(), strings.TrimSpace(req.EpisodeID))
		} else {
			result, err = s.notifier.TriggerPending(r.Context())
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	idStr, action, ok := strings.Cut(rest, "/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	switch action {
	case "cancel":
		err = s.notifier.Cancel(r.Context(), id)
	case "force-send":
		err = s.notifier.ForceSend(r.Context(), id)
	case "resend":
		err = s.notifier.Resend(r.Context(), id)
	default:
		s.writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrQuota):
		status = http.StatusTooManyRequests
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout):
		status = http.StatusBadGateway
	}
	message := services.Details(err).Message
	if message == "" {
		message = err.Error()
	}
	s.writeError(w, status, message)
}
