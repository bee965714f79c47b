package asr

import (
	"bytes"
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

// PrimaryProvider adapts a Deepgram-style prerecorded transcription API with
// native speaker diarization.
type PrimaryProvider struct {
	apiKey     string
	baseURL    string
	model      string
	languages  map[string]struct{}
	httpClient *http.Client
	policy     retryPolicy
}

// PrimaryConfig holds construction settings for the primary provider.
type PrimaryConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Languages      []string
	TimeoutSeconds int
	RetryAttempts  int
	RetryBaseMS    int
}

// PrimaryOption customizes the provider.
type PrimaryOption func(*PrimaryProvider)

// WithPrimaryHTTPClient overrides the default HTTP client.
func WithPrimaryHTTPClient(client *http.Client) PrimaryOption {
	return func(p *PrimaryProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithPrimarySleeper overrides retry sleeps (useful for tests).
func WithPrimarySleeper(sleeper func(time.Duration)) PrimaryOption {
	return func(p *PrimaryProvider) {
		p.policy.sleeper = sleeper
	}
}

// NewPrimaryProvider constructs the primary diarizing provider.
func NewPrimaryProvider(cfg PrimaryConfig, opts ...PrimaryOption) *PrimaryProvider {
	supported := make(map[string]struct{}, len(cfg.Languages))
	for _, lang := range language.NormalizeList(cfg.Languages) {
		supported[lang] = struct{}{}
	}
	provider := &PrimaryProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		model:      strings.TrimSpace(cfg.Model),
		languages:  supported,
		httpClient: &http.Client{},
		policy:     newRetryPolicy(cfg.TimeoutSeconds, cfg.RetryAttempts, cfg.RetryBaseMS),
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Name identifies the provider.
func (p *PrimaryProvider) Name() string { return "primary" }

// SupportsLanguage reports whether the configured language set includes code.
func (p *PrimaryProvider) SupportsLanguage(code string) bool {
	normalized := language.Normalize(code)
	if normalized == "" {
		return false
	}
	_, ok := p.languages[normalized]
	return ok
}

type primaryResponse struct {
	Results struct {
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Transcript string  `json:"transcript"`
			Speaker    any     `json:"speaker"`
		} `json:"utterances"`
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe submits the audio reference for diarized transcription.
func (p *PrimaryProvider) Transcribe(ctx context.Context, audioRef, languageHint string) (*transcript.Transcript, error) {
	if strings.TrimSpace(audioRef) == "" {
		return nil, services.Wrap(services.ErrValidation, Stage, p.Name(), "audio reference required", nil)
	}
	if p.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, Stage, p.Name(), "api key required", nil)
	}

	endpoint, err := p.buildURL(languageHint)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, Stage, p.Name(), "build url", err)
	}

	var parsed primaryResponse
	err = p.policy.do(ctx, p.Name(), func(callCtx context.Context) error {
		body, marshalErr := json.Marshal(map[string]string{"url": audioRef})
		if marshalErr != nil {
			return services.Wrap(services.ErrValidation, Stage, p.Name(), "encode request", marshalErr)
		}
		req, reqErr := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if reqErr != nil {
			return services.Wrap(services.ErrValidation, Stage, p.Name(), "new request", reqErr)
		}
		req.Header.Set("Authorization", "Token "+p.apiKey)
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

	return p.convert(parsed, languageHint)
}

func (p *PrimaryProvider) buildURL(languageHint string) (string, error) {
	parsed, err := url.Parse(p.baseURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	if p.model != "" {
		query.Set("model", p.model)
	}
	query.Set("diarize", "true")
	query.Set("utterances", "true")
	query.Set("punctuate", "true")
	if lang := language.Normalize(languageHint); lang != "" {
		query.Set("language", lang)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (p *PrimaryProvider) convert(resp primaryResponse, languageHint string) (*transcript.Transcript, error) {
	if len(resp.Results.Utterances) == 0 {
		return nil, services.Wrap(services.ErrTransient, Stage, p.Name(), "empty transcription result", nil)
	}
	utterances := make([]transcript.Utterance, 0, len(resp.Results.Utterances))
	for _, u := range resp.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		utterances = append(utterances, transcript.Utterance{
			Start:      u.Start,
			End:        u.End,
			Speaker:    NormalizeSpeaker(u.Speaker),
			Text:       text,
			Confidence: NormalizeConfidence(u.Confidence),
		})
	}
	detected := language.Normalize(languageHint)
	if len(resp.Results.Channels) > 0 {
		if lang := language.Normalize(resp.Results.Channels[0].DetectedLanguage); lang != "" {
			detected = lang
		}
	}
	return &transcript.Transcript{Utterances: utterances, DetectedLanguage: detected}, nil
}
