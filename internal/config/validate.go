package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateAgents(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	if c.Transcription.RetryAttempts <= 0 {
		return errors.New("transcription.retry_attempts must be positive")
	}
	if strings.TrimSpace(c.Transcription.Primary.BaseURL) == "" {
		return errors.New("transcription.primary.base_url must be set")
	}
	if strings.TrimSpace(c.Transcription.Fallback.BaseURL) == "" {
		return errors.New("transcription.fallback.base_url must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateAgents() error {
	if c.Agents.WriterConcurrency <= 0 {
		return errors.New("agents.writer_concurrency must be positive")
	}
	if c.Agents.MinTopicBlocks <= 0 || c.Agents.MaxTopicBlocks < c.Agents.MinTopicBlocks {
		return fmt.Errorf(
			"agents topic block bounds invalid: min=%d max=%d",
			c.Agents.MinTopicBlocks,
			c.Agents.MaxTopicBlocks,
		)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.Email.Enabled {
		if strings.TrimSpace(c.Notifications.Email.SMTPHost) == "" {
			return errors.New("notifications.email.smtp_host must be set when email is enabled")
		}
		if c.Notifications.Email.SMTPPort <= 0 {
			return errors.New("notifications.email.smtp_port must be positive")
		}
		if strings.TrimSpace(c.Notifications.Email.From) == "" {
			return errors.New("notifications.email.from must be set when email is enabled")
		}
	}
	if c.Notifications.Telegram.Enabled {
		if strings.TrimSpace(c.Notifications.Telegram.BotToken) == "" {
			return errors.New("notifications.telegram.bot_token must be set when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.ProcessingTTLSeconds <= 0 {
		return errors.New("cache.processing_ttl_seconds must be positive")
	}
	if c.Cache.ReadyTTLSeconds <= 0 {
		return errors.New("cache.ready_ttl_seconds must be positive")
	}
	return nil
}
