// Package mailer delivers account emails over SMTP.
package mailer

import (
	"context"

	"github.com/nkiryanov/accounts/internal/logger"
)

// Mailer sends a single html letter to one recipient
type Mailer interface {
	Send(ctx context.Context, to string, subject string, htmlBody string) error
}

// LogMailer writes letters to the log instead of sending them
// Useful for dev environments without an SMTP endpoint
type LogMailer struct {
	Logger logger.Logger
}

func (m LogMailer) Send(_ context.Context, to string, subject string, htmlBody string) error {
	m.Logger.Info("mail sent to log", "to", to, "subject", subject, "body_size", len(htmlBody))
	return nil
}
