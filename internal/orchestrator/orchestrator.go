// Package orchestrator drives summary runs through the persistent status
// state machine.
//
// Each request either returns the current state of the (episode, level,
// language) slot or claims it and runs the full pipeline within the request's
// lifetime: resolve a transcript, run the agents, persist the result. The
// claim is a single conditional update, so concurrent requests for the same
// slot cannot start duplicate runs.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"recap/internal/agents"
	"recap/internal/asr"
	"recap/internal/cache"
	"recap/internal/config"
	"recap/internal/language"
	"recap/internal/llm"
	"recap/internal/logging"
	"recap/internal/notify"
	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/tasks"
	"recap/internal/transcript"
)

// defaultHeartbeatSeconds matches the workflow configuration default for runs
// built without an explicit interval.
const defaultHeartbeatSeconds = 60

// errOvertaken signals that another run reclaimed the summary slot while this
// run was still working. The losing run must stop without touching the row.
var errOvertaken = errors.New("summary run overtaken by a newer claim")

// Notifier triggers notification delivery after a summary becomes ready.
type Notifier interface {
	TriggerEpisode(ctx context.Context, episodeID string) (notify.Result, error)
}

// Orchestrator coordinates transcription, summarization, and persistence.
type Orchestrator struct {
	store     *store.Store
	providers []asr.Provider
	fallback  asr.Provider
	pipeline  *agents.Pipeline
	cache     cache.Service
	policy    cache.TTLPolicy
	notifier  Notifier
	runner    *tasks.Runner
	model     string
	heartbeat time.Duration
	logger    *slog.Logger
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Store     *store.Store
	Providers []asr.Provider
	Fallback  asr.Provider
	Pipeline  *agents.Pipeline
	Cache     cache.Service
	Policy    cache.TTLPolicy
	Notifier  Notifier
	Runner    *tasks.Runner
	Model     string
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// New builds an orchestrator. Cache and notifier are optional.
func New(opts Options) *Orchestrator {
	policy := opts.Policy
	if policy.Processing == 0 && policy.Ready == 0 {
		policy = cache.DefaultPolicy()
	}
	heartbeat := opts.Heartbeat
	if heartbeat == 0 {
		heartbeat = time.Duration(defaultHeartbeatSeconds) * time.Second
	}
	return &Orchestrator{
		store:     opts.Store,
		providers: opts.Providers,
		fallback:  opts.Fallback,
		pipeline:  opts.Pipeline,
		cache:     opts.Cache,
		policy:    policy,
		notifier:  opts.Notifier,
		runner:    opts.Runner,
		model:     opts.Model,
		heartbeat: heartbeat,
		logger:    logging.NewComponentLogger(opts.Logger, "orchestrator"),
	}
}

// NewFromConfig assembles the orchestrator with providers and pipeline built
// from configuration.
func NewFromConfig(cfg *config.Config, st *store.Store, cacheSvc cache.Service, notifier Notifier, runner *tasks.Runner, logger *slog.Logger) *Orchestrator {
	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	pipeline := agents.NewPipeline(llmClient, agents.Config{
		WriterConcurrency: cfg.Agents.WriterConcurrency,
		MinTopicBlocks:    cfg.Agents.MinTopicBlocks,
		MaxTopicBlocks:    cfg.Agents.MaxTopicBlocks,
	}, logger)

	primary := asr.NewPrimaryProvider(asr.PrimaryConfig{
		APIKey:         cfg.Transcription.Primary.APIKey,
		BaseURL:        cfg.Transcription.Primary.BaseURL,
		Model:          cfg.Transcription.Primary.Model,
		Languages:      cfg.Transcription.Primary.Languages,
		TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		RetryAttempts:  cfg.Transcription.RetryAttempts,
		RetryBaseMS:    cfg.Transcription.RetryBaseMS,
	})
	fallback := asr.NewFallbackProvider(asr.FallbackConfig{
		APIKey:         cfg.Transcription.Fallback.APIKey,
		BaseURL:        cfg.Transcription.Fallback.BaseURL,
		Model:          cfg.Transcription.Fallback.Model,
		TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		RetryAttempts:  cfg.Transcription.RetryAttempts,
		RetryBaseMS:    cfg.Transcription.RetryBaseMS,
	})

	providers := []asr.Provider{primary}
	if captionsURL := cfg.Transcription.CaptionsBaseURL; captionsURL != "" {
		providers = append(providers, asr.NewCaptionsProvider(asr.CaptionsConfig{
			BaseURL:        captionsURL,
			TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		}))
	}

	return New(Options{
		Store:     st,
		Providers: providers,
		Fallback:  fallback,
		Pipeline:  pipeline,
		Cache:     cacheSvc,
		Policy: cache.TTLPolicy{
			Processing: time.Duration(cfg.Cache.ProcessingTTLSeconds) * time.Second,
			Ready:      time.Duration(cfg.Cache.ReadyTTLSeconds) * time.Second,
		},
		Notifier:  notifier,
		Runner:    runner,
		Model:     cfg.LLM.Model,
		Heartbeat: time.Duration(cfg.Workflow.HeartbeatSeconds) * time.Second,
		Logger:    logger,
	})
}

// RequestResult is what callers get back from a summary request.
type RequestResult struct {
	EpisodeID string       `json:"episode_id"`
	Level     store.Level  `json:"level"`
	Language  string       `json:"language"`
	Status    store.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
}

func resultFrom(summary *store.Summary) RequestResult {
	return RequestResult{
		EpisodeID: summary.EpisodeID,
		Level:     summary.Level,
		Language:  summary.Language,
		Status:    summary.Status,
		Error:     summary.ErrorMessage,
	}
}

// RequestSummary requests a summary for one episode, level, and language.
// A ready or in-flight slot returns its current status without new work;
// otherwise this call claims the slot and runs the pipeline to completion.
func (o *Orchestrator) RequestSummary(ctx context.Context, episodeID, rawLevel, rawLanguage string) (RequestResult, error) {
	var zero RequestResult
	if episodeID == "" {
		return zero, services.Wrap(services.ErrValidation, "orchestrator", "request", "episode id is required", nil)
	}
	level, ok := store.ParseLevel(rawLevel)
	if !ok {
		return zero, services.Wrap(services.ErrValidation, "orchestrator", "request",
			fmt.Sprintf("unknown summary level %q", rawLevel), nil)
	}
	lang := language.Normalize(rawLanguage)

	existing, err := o.store.GetSummary(ctx, episodeID, level, lang)
	if err != nil {
		return zero, err
	}
	if existing != nil && (existing.Status == store.StatusReady || existing.Status.InFlight()) {
		return resultFrom(existing), nil
	}

	correlationID := uuid.NewString()
	summary, claimed, err := o.store.ClaimSummary(ctx, episodeID, level, lang, correlationID)
	if err != nil {
		return zero, err
	}
	if !claimed {
		return resultFrom(summary), nil
	}
	o.invalidateSnapshot(ctx, episodeID, lang)

	ctx = services.WithEpisodeID(ctx, episodeID)
	ctx = services.WithLevel(ctx, string(level))
	ctx = services.WithLanguage(ctx, lang)
	ctx = services.WithRequestID(ctx, correlationID)

	// External calls already started are allowed to finish so their results
	// can be persisted even if the caller goes away.
	runCtx := context.WithoutCancel(ctx)
	final := o.run(runCtx, summary)
	return final, nil
}

// run executes the claimed summary through its stages and persists the
// terminal state. It never returns an error; failures land in the row.
func (o *Orchestrator) run(ctx context.Context, summary *store.Summary) RequestResult {
	logger := logging.WithContext(ctx, o.logger)
	stop := o.startHeartbeat(ctx, summary.ID)
	defer stop()

	tr, err := o.resolveTranscript(ctx, summary)
	if err != nil {
		return o.fail(ctx, summary, err, logger)
	}

	moved, err := o.store.TransitionSummary(ctx, summary.ID, store.StatusTranscribing, store.StatusSummarizing)
	if err != nil {
		return o.fail(ctx, summary, err, logger)
	}
	if !moved {
		return o.fail(ctx, summary, errOvertaken, logger)
	}
	logger.Info("summarizing", logging.Int("utterances", len(tr.Utterances)))

	content, err := o.summarize(ctx, summary.Level, tr)
	if err != nil {
		return o.fail(ctx, summary, err, logger)
	}

	if err := o.store.MarkSummaryReady(ctx, summary.ID, content, o.model); err != nil {
		return o.fail(ctx, summary, err, logger)
	}
	o.invalidateSnapshot(ctx, summary.EpisodeID, summary.Language)
	logger.Info("summary ready")

	o.triggerNotifications(summary.EpisodeID)

	return RequestResult{
		EpisodeID: summary.EpisodeID,
		Level:     summary.Level,
		Language:  summary.Language,
		Status:    store.StatusReady,
	}
}

func (o *Orchestrator) fail(ctx context.Context, summary *store.Summary, cause error, logger *slog.Logger) RequestResult {
	if errors.Is(cause, errOvertaken) {
		logger.Warn("summary run overtaken, yielding to the newer run")
		return o.currentResult(ctx, summary)
	}
	message := services.Details(cause).Message
	if message == "" {
		message = cause.Error()
	}
	logger.Error("summary run failed", logging.Error(cause))
	marked, err := o.store.MarkSummaryFailed(ctx, summary.ID, message)
	if err != nil {
		logger.Error("failed to persist failure", logging.Error(err))
	}
	o.invalidateSnapshot(ctx, summary.EpisodeID, summary.Language)
	if err == nil && !marked {
		// The row left the in-flight statuses while this run was failing, so
		// a reclaim already happened and the newer run owns the outcome.
		logger.Warn("summary run overtaken, keeping the newer run's state")
		return o.currentResult(ctx, summary)
	}
	return RequestResult{
		EpisodeID: summary.EpisodeID,
		Level:     summary.Level,
		Language:  summary.Language,
		Status:    store.StatusFailed,
		Error:     message,
	}
}

// currentResult re-reads the row and reports whatever state the winning run
// left behind. Falls back to the claimed snapshot if the read fails.
func (o *Orchestrator) currentResult(ctx context.Context, summary *store.Summary) RequestResult {
	current, err := o.store.GetSummaryByID(ctx, summary.ID)
	if err == nil && current != nil {
		return resultFrom(current)
	}
	return resultFrom(summary)
}

// startHeartbeat refreshes the row's liveness timestamp on an interval until
// the returned stop function is called, so long transcription or writer
// stages never look abandoned to the stale-run reclaim.
func (o *Orchestrator) startHeartbeat(ctx context.Context, id int64) func() {
	if o.heartbeat <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(o.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := o.store.Heartbeat(ctx, id); err != nil {
					o.logger.Warn("heartbeat refresh failed", logging.Error(err))
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// summarize runs the level-appropriate agent pipeline and returns the content
// as JSON.
func (o *Orchestrator) summarize(ctx context.Context, level store.Level, tr *transcript.Transcript) (string, error) {
	var (
		payload any
		err     error
	)
	switch level {
	case store.LevelQuick:
		payload, err = o.pipeline.RunQuick(ctx, tr)
	case store.LevelInsights:
		payload, err = o.pipeline.RunInsights(ctx, tr)
	default:
		payload, err = o.pipeline.RunDeep(ctx, tr)
	}
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "encode", "marshal summary content", err)
	}
	return string(encoded), nil
}

func (o *Orchestrator) triggerNotifications(episodeID string) {
	if o.notifier == nil {
		return
	}
	if o.runner == nil {
		if _, err := o.notifier.TriggerEpisode(context.Background(), episodeID); err != nil {
			o.logger.Error("notification trigger failed",
				logging.String(logging.FieldEpisodeID, episodeID),
				logging.Error(err))
		}
		return
	}
	o.runner.Go("notify_"+episodeID, func(ctx context.Context) error {
		_, err := o.notifier.TriggerEpisode(ctx, episodeID)
		return err
	})
}
