package config

const (
	defaultDataDir              = "~/.local/share/recap"
	defaultLogDir               = "~/.local/share/recap/logs"
	defaultAPIBind              = "127.0.0.1:7519"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultTranscribeTimeout    = 90
	defaultTranscribeAttempts   = 3
	defaultTranscribeRetryMS    = 500
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMTitle             = "Recap Summarizer"
	defaultLLMTimeoutSeconds    = 60
	defaultWriterConcurrency    = 3
	defaultMinTopicBlocks       = 3
	defaultMaxTopicBlocks       = 10
	defaultTelegramBaseURL      = "https://api.telegram.org"
	defaultTelegramTimeout      = 10
	defaultSMTPPort             = 587
	defaultProcessingTTLSeconds = 300
	defaultReadyTTLSeconds      = 86400
	defaultStaleAfterSeconds    = 1800
	defaultHeartbeatSeconds     = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcription: Transcription{
			Primary: ASRProvider{
				BaseURL:   "https://api.deepgram.com/v1/listen",
				Model:     "nova-3",
				Languages: []string{"en", "es", "fr", "de", "pt", "nl", "hi", "ja"},
			},
			Fallback: ASRProvider{
				BaseURL: "https://api.openai.com/v1/audio/transcriptions",
				Model:   "whisper-1",
			},
			TimeoutSeconds: defaultTranscribeTimeout,
			RetryAttempts:  defaultTranscribeAttempts,
			RetryBaseMS:    defaultTranscribeRetryMS,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Agents: Agents{
			WriterConcurrency: defaultWriterConcurrency,
			MinTopicBlocks:    defaultMinTopicBlocks,
			MaxTopicBlocks:    defaultMaxTopicBlocks,
		},
		Notifications: Notifications{
			Email: Email{
				SMTPPort: defaultSMTPPort,
			},
			Telegram: Telegram{
				BaseURL:        defaultTelegramBaseURL,
				TimeoutSeconds: defaultTelegramTimeout,
			},
		},
		Cache: Cache{
			ProcessingTTLSeconds: defaultProcessingTTLSeconds,
			ReadyTTLSeconds:      defaultReadyTTLSeconds,
		},
		Workflow: Workflow{
			StaleAfterSeconds: defaultStaleAfterSeconds,
			HeartbeatSeconds:  defaultHeartbeatSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
