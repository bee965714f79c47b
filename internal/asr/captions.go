package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recap/internal/language"
	"recap/internal/services"
	"recap/internal/transcript"
)

// CaptionsProvider fetches platform-published caption documents. Captions
// carry timing and text but no speaker attribution or confidence, so both are
// normalized to defaults.
type CaptionsProvider struct {
	baseURL    string
	httpClient *http.Client
	policy     retryPolicy
}

// CaptionsConfig holds construction settings for the captions provider.
type CaptionsConfig struct {
	BaseURL        string
	TimeoutSeconds int
	RetryAttempts  int
	RetryBaseMS    int
}

// CaptionsOption customizes the provider.
type CaptionsOption func(*CaptionsProvider)

// WithCaptionsHTTPClient overrides the default HTTP client.
func WithCaptionsHTTPClient(client *http.Client) CaptionsOption {
	return func(p *CaptionsProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithCaptionsSleeper overrides retry sleeps (useful for tests).
func WithCaptionsSleeper(sleeper func(time.Duration)) CaptionsOption {
	return func(p *CaptionsProvider) {
		p.policy.sleeper = sleeper
	}
}

// NewCaptionsProvider constructs the platform captions provider.
func NewCaptionsProvider(cfg CaptionsConfig, opts ...CaptionsOption) *CaptionsProvider {
	provider := &CaptionsProvider{
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		httpClient: &http.Client{},
		policy:     newRetryPolicy(cfg.TimeoutSeconds, cfg.RetryAttempts, cfg.RetryBaseMS),
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Name identifies the provider.
func (p *CaptionsProvider) Name() string { return "captions" }

// SupportsLanguage reports whether a captions endpoint is configured. Whether
// a caption track exists for a given episode and language is only known at
// fetch time, so support here means the variant is usable at all.
func (p *CaptionsProvider) SupportsLanguage(string) bool {
	return p.baseURL != ""
}

type captionDocument struct {
	Events []struct {
		StartMS    int64  `json:"tStartMs"`
		DurationMS int64  `json:"dDurationMs"`
		Text       string `json:"text"`
	} `json:"events"`
}

// Transcribe fetches the caption document for the referenced media.
func (p *CaptionsProvider) Transcribe(ctx context.Context, audioRef, languageHint string) (*transcript.Transcript, error) {
	if strings.TrimSpace(audioRef) == "" {
		return nil, services.Wrap(services.ErrValidation, Stage, p.Name(), "audio reference required", nil)
	}
	if p.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, Stage, p.Name(), "captions endpoint not configured", nil)
	}

	endpoint, err := p.buildURL(audioRef, languageHint)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, Stage, p.Name(), "build url", err)
	}

	var parsed captionDocument
	err = p.policy.do(ctx, p.Name(), func(callCtx context.Context) error {
		req, reqErr := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
		if reqErr != nil {
			return services.Wrap(services.ErrValidation, Stage, p.Name(), "new request", reqErr)
		}
		resp, doErr := p.httpClient.Do(req)
		if doErr != nil {
			return fmt.Errorf("%s request: %w", p.Name(), doErr)
		}
		defer resp.Body.Close()
		payload, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("%s read body: %w", p.Name(), readErr)
		}
		if statusErr := classifyStatus(p.Name(), resp.StatusCode, string(payload)); statusErr != nil {
			return statusErr
		}
		if decodeErr := json.Unmarshal(payload, &parsed); decodeErr != nil {
			return services.Wrap(services.ErrTransient, Stage, p.Name(), "decode caption document", decodeErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(parsed.Events) == 0 {
		return nil, services.Wrap(services.ErrNotFound, Stage, p.Name(), "no caption track for media", nil)
	}
	utterances := make([]transcript.Utterance, 0, len(parsed.Events))
	for _, event := range parsed.Events {
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		start := float64(event.StartMS) / 1000
		utterances = append(utterances, transcript.Utterance{
			Start:      start,
			End:        start + float64(event.DurationMS)/1000,
			Speaker:    NormalizeSpeaker(nil),
			Text:       text,
			Confidence: NormalizeConfidence(0),
		})
	}
	return &transcript.Transcript{
		Utterances:       utterances,
		DetectedLanguage: language.Normalize(languageHint),
	}, nil
}

func (p *CaptionsProvider) buildURL(mediaRef, languageHint string) (string, error) {
	parsed, err := url.Parse(p.baseURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("media", mediaRef)
	if lang := language.Normalize(languageHint); lang != "" {
		query.Set("lang", lang)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
