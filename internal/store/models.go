package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a summary request.
type Status string

const (
	StatusNotReady     Status = "not_ready"
	StatusQueued       Status = "queued"
	StatusTranscribing Status = "transcribing"
	StatusSummarizing  Status = "summarizing"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusNotReady,
	StatusQueued,
	StatusTranscribing,
	StatusSummarizing,
	StatusReady,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := statusSet[status]
	return status, ok
}

// InFlight reports whether the status marks an active summarization run.
func (s Status) InFlight() bool {
	switch s {
	case StatusQueued, StatusTranscribing, StatusSummarizing:
		return true
	}
	return false
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Level selects the summary depth.
type Level string

const (
	LevelQuick    Level = "quick"
	LevelDeep     Level = "deep"
	LevelInsights Level = "insights"
)

var allLevels = []Level{LevelQuick, LevelDeep, LevelInsights}

// ParseLevel validates a raw level string.
func ParseLevel(raw string) (Level, bool) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range allLevels {
		if level == known {
			return level, true
		}
	}
	return "", false
}

// Summary is a persisted summary request, keyed by episode, level, and language.
type Summary struct {
	ID            int64
	EpisodeID     string
	Level         Level
	Language      string
	Status        Status
	ContentJSON   string
	Model         string
	ErrorMessage  string
	CorrelationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat time.Time
}

// Transcript is a persisted transcript, keyed by episode and language.
type Transcript struct {
	ID             int64
	EpisodeID      string
	Language       string
	Provider       string
	TranscriptJSON string
	SpeakerCount   int
	DurationSecs   float64
	CreatedAt      time.Time
}

// NotificationStatus represents the delivery lifecycle of a notification request.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

// ParseNotificationStatus validates a raw notification status string.
func ParseNotificationStatus(raw string) (NotificationStatus, bool) {
	status := NotificationStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case NotificationPending, NotificationSent, NotificationFailed, NotificationCancelled:
		return status, true
	}
	return "", false
}

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// ParseChannel validates a raw channel string.
func ParseChannel(raw string) (Channel, bool) {
	channel := Channel(strings.ToLower(strings.TrimSpace(raw)))
	switch channel {
	case ChannelEmail, ChannelTelegram:
		return channel, true
	}
	return "", false
}

// Notification is a persisted notification request for one recipient on one channel.
type Notification struct {
	ID           int64
	EpisodeID    string
	Channel      Channel
	Recipient    string
	Status       NotificationStatus
	ScheduledAt  time.Time
	SentAt       time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Episode is a catalog row describing a known episode.
type Episode struct {
	ID          string
	Title       string
	PodcastName string
	AudioURL    string
	DurationSec float64
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
