package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recap/internal/config"
	"recap/internal/store"
)

const userAgent = "recap/0.1.0"

// TelegramSender delivers notifications through the Telegram Bot API. The
// recipient is a chat identifier.
type TelegramSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTelegramSender builds a Bot API sender from configuration.
func NewTelegramSender(cfg config.Telegram) *TelegramSender {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramSender{
		baseURL: baseURL,
		token:   cfg.BotToken,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *TelegramSender) Channel() store.Channel {
	return store.ChannelTelegram
}

// Send posts the content to one chat using MarkdownV2 formatting.
func (t *TelegramSender) Send(ctx context.Context, recipient string, content Content) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("telegram chat id is empty")
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":    recipient,
		"text":       t.renderMessage(content),
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (t *TelegramSender) renderMessage(content Content) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "*%s*\n", EscapeMarkdownV2(content.Subject()))
	builder.WriteString(EscapeMarkdownV2(content.Body()))
	return builder.String()
}

// markdownV2Reserved are the characters the Bot API requires escaping in
// MarkdownV2 text.
const markdownV2Reserved = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 backslash-escapes every reserved MarkdownV2 character.
func EscapeMarkdownV2(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Reserved, r) {
			builder.WriteByte('\\')
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
