package asr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"recap/internal/services"
	"recap/internal/transcript"
)

func TestSelectProviderPrefersFirstSupporting(t *testing.T) {
	primary := NewPrimaryProvider(PrimaryConfig{Languages: []string{"en", "es"}})
	fallback := NewFallbackProvider(FallbackConfig{})

	if got := SelectProvider([]Provider{primary}, "en", fallback); got != Provider(primary) {
		t.Fatalf("expected primary for supported language, got %v", got.Name())
	}
	if got := SelectProvider([]Provider{primary}, "ja", fallback); got != Provider(fallback) {
		t.Fatalf("expected fallback for unsupported language, got %v", got.Name())
	}
	if got := SelectProvider([]Provider{nil, primary}, "es", fallback); got != Provider(primary) {
		t.Fatal("nil variants should be skipped")
	}
	if got := SelectProvider(nil, "en", nil); got != nil {
		t.Fatal("expected nil when nothing is configured")
	}
}

func TestPrimaryTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		query := r.URL.Query()
		if query.Get("diarize") != "true" || query.Get("utterances") != "true" {
			t.Errorf("missing diarization parameters in %q", r.URL.RawQuery)
		}
		if query.Get("language") != "en" {
			t.Errorf("expected language hint, got %q", query.Get("language"))
		}
		w.Write([]byte(`{"results":{"utterances":[
			{"start":0,"end":4.5,"confidence":0.92,"transcript":"Welcome back to the show.","speaker":"speaker_0"},
			{"start":4.5,"end":9,"confidence":0.88,"transcript":"Thanks for having me.","speaker":"speaker_1"},
			{"start":9,"end":9.5,"confidence":0.5,"transcript":"  ","speaker":0}
		],"channels":[{"detected_language":"en-US"}]}}`))
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Model:     "nova-2",
		Languages: []string{"en"},
	}, WithPrimarySleeper(func(time.Duration) {}))

	tr, err := provider.Transcribe(context.Background(), "https://example.com/audio.mp3", "EN")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(tr.Utterances) != 2 {
		t.Fatalf("expected blank utterance dropped, got %d utterances", len(tr.Utterances))
	}
	if tr.Utterances[0].Speaker != 0 || tr.Utterances[1].Speaker != 1 {
		t.Fatalf("unexpected speakers: %+v", tr.Utterances)
	}
	if tr.DetectedLanguage != "en" {
		t.Fatalf("expected detected language en, got %q", tr.DetectedLanguage)
	}
}

func TestPrimaryTranscribeRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	var delays []time.Duration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results":{"utterances":[{"start":0,"end":1,"confidence":0.9,"transcript":"ok","speaker":0}]}}`))
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		RetryAttempts: 3,
		RetryBaseMS:   10,
	}, WithPrimarySleeper(func(d time.Duration) { delays = append(delays, d) }))

	if _, err := provider.Transcribe(context.Background(), "ref", "en"); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(delays) != 2 || delays[1] <= delays[0] {
		t.Fatalf("expected increasing backoff delays, got %v", delays)
	}
}

func TestPrimaryTranscribeExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		RetryAttempts: 2,
		RetryBaseMS:   1,
	}, WithPrimarySleeper(func(time.Duration) {}))

	_, err := provider.Transcribe(context.Background(), "ref", "en")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestPrimaryTranscribeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio reference", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		RetryAttempts: 3,
		RetryBaseMS:   1,
	}, WithPrimarySleeper(func(time.Duration) {}))

	_, err := provider.Transcribe(context.Background(), "ref", "en")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected single attempt for 4xx, got %d", got)
	}
}

func TestPrimaryTranscribeRequiresInputs(t *testing.T) {
	provider := NewPrimaryProvider(PrimaryConfig{APIKey: "k", BaseURL: "http://localhost"})
	if _, err := provider.Transcribe(context.Background(), " ", "en"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty audio ref, got %v", err)
	}
	unconfigured := NewPrimaryProvider(PrimaryConfig{BaseURL: "http://localhost"})
	if _, err := unconfigured.Transcribe(context.Background(), "ref", "en"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without api key, got %v", err)
	}
}

func TestFallbackTranscribeAssignsSingleSpeaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"language":"es","segments":[
			{"start":0,"end":3,"text":" Hola a todos. "},
			{"start":3,"end":6,"text":"Bienvenidos."}
		]}`))
	}))
	defer server.Close()

	provider := NewFallbackProvider(FallbackConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "whisper-1",
	}, WithFallbackSleeper(func(time.Duration) {}))

	if !provider.SupportsLanguage("anything") {
		t.Fatal("fallback must accept every language")
	}
	tr, err := provider.Transcribe(context.Background(), "ref", "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(tr.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(tr.Utterances))
	}
	for _, u := range tr.Utterances {
		if u.Speaker != 0 {
			t.Fatalf("fallback utterances must carry speaker 0, got %d", u.Speaker)
		}
		if u.Confidence != transcript.DefaultConfidence {
			t.Fatalf("missing confidence should map to default, got %v", u.Confidence)
		}
	}
	if tr.Utterances[0].Text != "Hola a todos." {
		t.Fatalf("expected trimmed text, got %q", tr.Utterances[0].Text)
	}
	if tr.DetectedLanguage != "es" {
		t.Fatalf("expected detected language es, got %q", tr.DetectedLanguage)
	}
}

func TestCaptionsTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("media") != "video-123" {
			t.Errorf("expected media ref in query, got %q", query.Get("media"))
		}
		w.Write([]byte(`{"events":[
			{"tStartMs":0,"dDurationMs":2500,"text":"First caption"},
			{"tStartMs":2500,"dDurationMs":2000,"text":"Second caption"}
		]}`))
	}))
	defer server.Close()

	provider := NewCaptionsProvider(CaptionsConfig{BaseURL: server.URL},
		WithCaptionsSleeper(func(time.Duration) {}))

	tr, err := provider.Transcribe(context.Background(), "video-123", "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(tr.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(tr.Utterances))
	}
	if tr.Utterances[0].End != 2.5 {
		t.Fatalf("expected millisecond timing converted to seconds, got %v", tr.Utterances[0].End)
	}
}

func TestCaptionsTranscribeMissingTrack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()

	provider := NewCaptionsProvider(CaptionsConfig{BaseURL: server.URL},
		WithCaptionsSleeper(func(time.Duration) {}))
	_, err := provider.Transcribe(context.Background(), "video-123", "en")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for empty caption document, got %v", err)
	}
}
