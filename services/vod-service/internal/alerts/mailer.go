// Package alerts delivers operator notifications by e-mail
package alerts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// Sender delivers a composed message
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// mailer sends operator alerts with gopkg.in/mail.v2
type mailer struct {
	sender Sender
	from   string
	to     string
	logger *zap.Logger
}

// NewMailer creates a mailer that sends from `from` to `to` through an SMTP server.
// An empty recipient disables delivery; alerts are then only logged.
func NewMailer(host string, port int, username, password, from, to string, logger *zap.Logger) *mailer {
	return NewMailerWithSender(mail.NewDialer(host, port, username, password), from, to, logger)
}

// NewMailerWithSender creates a mailer on an arbitrary sender
func NewMailerWithSender(sender Sender, from, to string, logger *zap.Logger) *mailer {
	return &mailer{
		sender: sender,
		from:   from,
		to:     strings.TrimSpace(to),
		logger: logger,
	}
}

// SendAlert sends a plain-text alert to the operator address
func (m *mailer) SendAlert(ctx context.Context, subject, body string) error {
	if m.to == "" {
		m.logger.Warn("alert not sent: no recipient configured", zap.String("subject", subject))
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	m.logger.Info("alert sent", zap.String("subject", subject), zap.String("to", m.to))
	return nil
}
