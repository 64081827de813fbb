package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

// SMTPMailer sends letters through a plain SMTP endpoint
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTP(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp address must not be empty")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender address must not be empty")
	}

	// Auth is optional: local relays accept mail without it
	var auth smtp.Auth
	if cfg.Username != "" {
		host, _, ok := strings.Cut(cfg.Addr, ":")
		if !ok {
			return nil, fmt.Errorf("smtp address %q must be in host:port format", cfg.Addr)
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}

	return &SMTPMailer{
		addr: cfg.Addr,
		auth: auth,
		from: cfg.From,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to string, subject string, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("error while sending mail. Err: %w", err)
	}

	return nil
}
