// Package mail delivers transactional email over SMTP. Transport failures
// are logged with their cause and surfaced to clients as a single
// SendEmailFailed error; the underlying error never leaves the server.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"github.com/studylog/studylog-api/internal/config"
	"github.com/studylog/studylog-api/internal/httperr"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender is the transport contract the auth flows depend on; tests use an
// in-memory fake.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through a single authenticated SMTP account.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	log  zerolog.Logger
}

func NewSMTPSender(cfg config.Config, log zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		addr: cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth: smtp.PlainAuth("", cfg.SMTPAccount, cfg.SMTPPass, cfg.SMTPHost),
		from: cfg.MailFrom,
		log:  log,
	}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, msg.To, msg.Subject, msg.HTML,
	)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, []byte(body)); err != nil {
		s.log.Error().Str("to", msg.To).Str("subject", msg.Subject).Err(err).Msg("smtp send failed")
		return httperr.SendEmailFailed()
	}
	return nil
}
