package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"recap/internal/config"
	"recap/internal/store"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	send     func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender builds an SMTP sender from configuration.
func NewEmailSender(cfg config.Email) *EmailSender {
	return &EmailSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		send:     smtp.SendMail,
	}
}

func (e *EmailSender) Channel() store.Channel {
	return store.ChannelEmail
}

// Send delivers a plain-text message to one recipient address.
func (e *EmailSender) Send(ctx context.Context, recipient string, content Content) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("email recipient is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	msg := e.buildMessage(recipient, content)
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	if err := e.send(addr, auth, e.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient, err)
	}
	return nil
}

func (e *EmailSender) buildMessage(recipient string, content Content) []byte {
	var builder strings.Builder
	fmt.Fprintf(&builder, "From: %s\r\n", e.from)
	fmt.Fprintf(&builder, "To: %s\r\n", recipient)
	fmt.Fprintf(&builder, "Subject: %s\r\n", content.Subject())
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(strings.ReplaceAll(content.Body(), "\n", "\r\n"))
	return []byte(builder.String())
}
