package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recap/internal/config"
)

func TestLoadWithoutFileUsesDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "recap")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7519" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.Primary.BaseURL == "" {
		t.Fatal("expected primary transcription base url default")
	}
	if len(cfg.Transcription.Primary.Languages) == 0 || cfg.Transcription.Primary.Languages[0] != "en" {
		t.Fatalf("unexpected primary languages: %v", cfg.Transcription.Primary.Languages)
	}
	if cfg.Notifications.Email.Enabled {
		t.Fatal("expected email notifications disabled by default")
	}
	if cfg.Notifications.Telegram.Enabled {
		t.Fatal("expected telegram notifications disabled by default")
	}
	if cfg.Cache.ReadyTTLSeconds <= cfg.Cache.ProcessingTTLSeconds {
		t.Fatalf("expected ready TTL above processing TTL: %d vs %d",
			cfg.Cache.ReadyTTLSeconds, cfg.Cache.ProcessingTTLSeconds)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "recap.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != filepath.Join(wantData, "recap.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadExplicitFileOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "recap.toml")
	body := `
[paths]
data_dir = "~/recap-data"
api_bind = " 0.0.0.0:9000 "
api_token = "  secret  "

[llm]
model = "openai/gpt-5-mini"

[agents]
writer_concurrency = 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as present")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, path)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "recap-data") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("expected trimmed api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected trimmed api token, got %q", cfg.Paths.APIToken)
	}
	if cfg.LLM.Model != "openai/gpt-5-mini" {
		t.Fatalf("unexpected llm model: %q", cfg.LLM.Model)
	}
	if cfg.Agents.WriterConcurrency != 5 {
		t.Fatalf("unexpected writer concurrency: %d", cfg.Agents.WriterConcurrency)
	}
	// Untouched sections retain defaults.
	if cfg.LLM.BaseURL != config.Default().LLM.BaseURL {
		t.Fatalf("unexpected llm base url: %q", cfg.LLM.BaseURL)
	}
}

func TestLoadMissingExplicitFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected absent file to be reported as missing")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.APIBind != config.Default().Paths.APIBind {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recap.toml")
	if err := os.WriteFile(path, []byte("[paths\ndata_dir = 3"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected parse error for malformed TOML")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{
			name:    "missing data dir",
			mutate:  func(c *config.Config) { c.Paths.DataDir = " " },
			wantMsg: "paths.data_dir",
		},
		{
			name:    "missing log dir",
			mutate:  func(c *config.Config) { c.Paths.LogDir = "" },
			wantMsg: "paths.log_dir",
		},
		{
			name:    "zero transcription timeout",
			mutate:  func(c *config.Config) { c.Transcription.TimeoutSeconds = 0 },
			wantMsg: "transcription.timeout_seconds",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *config.Config) { c.Transcription.RetryAttempts = 0 },
			wantMsg: "transcription.retry_attempts",
		},
		{
			name:    "missing fallback base url",
			mutate:  func(c *config.Config) { c.Transcription.Fallback.BaseURL = "" },
			wantMsg: "transcription.fallback.base_url",
		},
		{
			name:    "missing llm model",
			mutate:  func(c *config.Config) { c.LLM.Model = "" },
			wantMsg: "llm.model",
		},
		{
			name:    "negative llm timeout",
			mutate:  func(c *config.Config) { c.LLM.TimeoutSeconds = -1 },
			wantMsg: "llm.timeout_seconds",
		},
		{
			name:    "zero writer concurrency",
			mutate:  func(c *config.Config) { c.Agents.WriterConcurrency = 0 },
			wantMsg: "writer_concurrency",
		},
		{
			name: "inverted topic block bounds",
			mutate: func(c *config.Config) {
				c.Agents.MinTopicBlocks = 8
				c.Agents.MaxTopicBlocks = 4
			},
			wantMsg: "topic block bounds",
		},
		{
			name: "email enabled without host",
			mutate: func(c *config.Config) {
				c.Notifications.Email.Enabled = true
				c.Notifications.Email.From = "recap@example.com"
			},
			wantMsg: "notifications.email.smtp_host",
		},
		{
			name: "email enabled without from",
			mutate: func(c *config.Config) {
				c.Notifications.Email.Enabled = true
				c.Notifications.Email.SMTPHost = "smtp.example.com"
			},
			wantMsg: "notifications.email.from",
		},
		{
			name: "telegram enabled without token",
			mutate: func(c *config.Config) {
				c.Notifications.Telegram.Enabled = true
			},
			wantMsg: "notifications.telegram.bot_token",
		},
		{
			name:    "zero processing ttl",
			mutate:  func(c *config.Config) { c.Cache.ProcessingTTLSeconds = 0 },
			wantMsg: "cache.processing_ttl_seconds",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = "/tmp/recap"
			cfg.Paths.LogDir = "/tmp/recap/logs"
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestValidateAcceptsDefaultsWithExpandedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/tmp/recap"
	cfg.Paths.LogDir = "/tmp/recap/logs"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	got, err := config.ExpandPath("~/recap/config.toml")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != filepath.Join(tempHome, "recap", "config.toml") {
		t.Fatalf("unexpected expansion: %q", got)
	}

	got, err = config.ExpandPath("~")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != tempHome {
		t.Fatalf("expected bare tilde to expand to home, got %q", got)
	}

	got, err = config.ExpandPath("")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty path to stay empty, got %q", got)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[transcription") {
		t.Fatal("expected sample to contain a transcription section")
	}
}
