package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recap/internal/language"
	"recap/internal/services"
	"recap/internal/transcript"
)

// FallbackProvider adapts a Whisper-style transcription API. It accepts any
// language but emits no speaker labels, so every utterance is attributed to
// speaker 0.
type FallbackProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	policy     retryPolicy
}

// FallbackConfig holds construction settings for the fallback provider.
type FallbackConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	RetryAttempts  int
	RetryBaseMS    int
}

// FallbackOption customizes the provider.
type FallbackOption func(*FallbackProvider)

// WithFallbackHTTPClient overrides the default HTTP client.
func WithFallbackHTTPClient(client *http.Client) FallbackOption {
	return func(p *FallbackProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithFallbackSleeper overrides retry sleeps (useful for tests).
func WithFallbackSleeper(sleeper func(time.Duration)) FallbackOption {
	return func(p *FallbackProvider) {
		p.policy.sleeper = sleeper
	}
}

// NewFallbackProvider constructs the Whisper-style fallback provider.
func NewFallbackProvider(cfg FallbackConfig, opts ...FallbackOption) *FallbackProvider {
	provider := &FallbackProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{},
		policy:     newRetryPolicy(cfg.TimeoutSeconds, cfg.RetryAttempts, cfg.RetryBaseMS),
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Name identifies the provider.
func (p *FallbackProvider) Name() string { return "fallback" }

// SupportsLanguage always returns true; the fallback handles any language.
func (p *FallbackProvider) SupportsLanguage(string) bool { return true }

type fallbackResponse struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		// Whisper emits avg_logprob rather than a confidence; absent maps to
		// the default constant during normalization.
		Confidence float64 `json:"confidence"`
	} `json:"segments"`
}

// Transcribe submits the audio reference for transcription without diarization.
func (p *FallbackProvider) Transcribe(ctx context.Context, audioRef, languageHint string) (*transcript.Transcript, error) {
	if strings.TrimSpace(audioRef) == "" {
		return nil, services.Wrap(services.ErrValidation, Stage, p.Name(), "audio reference required", nil)
	}
	if p.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, Stage, p.Name(), "api key required", nil)
	}

	request := map[string]string{
		"url":             audioRef,
		"model":           p.model,
		"response_format": "verbose_json",
	}
	if lang := language.Normalize(languageHint); lang != "" {
		request["language"] = lang
	}

	var parsed fallbackResponse
	err := p.policy.do(ctx, p.Name(), func(callCtx context.Context) error {
		body, marshalErr := json.Marshal(request)
		if marshalErr != nil {
			return services.Wrap(services.ErrValidation, Stage, p.Name(), "encode request", marshalErr)
		}
		req, reqErr := http.NewRequestWithContext(callCtx, http.MethodPost, p.baseURL, bytes.NewReader(body))
		if reqErr != nil {
			return services.Wrap(services.ErrValidation, Stage, p.Name(), "new request", reqErr)
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Content-Type", "application/json")

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
			return services.Wrap(services.ErrTransient, Stage, p.Name(), "decode response", decodeErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(parsed.Segments) == 0 {
		return nil, services.Wrap(services.ErrTransient, Stage, p.Name(), "empty transcription result", nil)
	}
	utterances := make([]transcript.Utterance, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		utterances = append(utterances, transcript.Utterance{
			Start:      seg.Start,
			End:        seg.End,
			Speaker:    NormalizeSpeaker(nil),
			Text:       text,
			Confidence: NormalizeConfidence(seg.Confidence),
		})
	}
	detected := language.Normalize(parsed.Language)
	if detected == "" {
		detected = language.Normalize(languageHint)
	}
	return &transcript.Transcript{Utterances: utterances, DetectedLanguage: detected}, nil
}
