// Package mailer delivers customer notification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/merchline/backend/config"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail through a plain-auth SMTP relay.
type SMTPSender struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewSMTPSender creates an SMTP sender from config.
func NewSMTPSender(cfg config.EmailConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send delivers an email. The context deadline is not honored by net/smtp;
// the worker's retry loop bounds a stuck delivery.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	from := s.cfg.FromAddress

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.cfg.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NopSender logs instead of sending; used when SMTP is not configured.
type NopSender struct {
	logger *zap.Logger
}

// NewNopSender creates a no-op sender.
func NewNopSender(logger *zap.Logger) *NopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NopSender{logger: logger}
}

// Send logs the email and drops it.
func (s *NopSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("email delivery skipped (SMTP not configured)", zap.String("to", to), zap.String("subject", subject))
	return nil
}
