package mailer

import (
	"crypto/tls"
	"fmt"
	"html"

	"community-backend/internal/config"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// Mailer sends transactional email
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTP sends mail through an SMTP relay
type SMTP struct {
	cfg config.SMTPConfig
}

// New returns an SMTP mailer, or a log-only mailer when no host is configured
func New(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return Noop{}
	}
	return &SMTP{cfg: cfg}
}

func (s *SMTP) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// Noop drops mail
type Noop struct{}

func (Noop) Send(to, subject, _ string) error {
	log.Debug().Str("to", to).Str("subject", subject).Msg("Mail not sent, SMTP disabled")
	return nil
}

// ApprovalBody renders the registration-approved notice
func ApprovalBody(name string) string {
	return fmt.Sprintf(`<p>Hello %s,</p><p>Your registration has been approved. You can now sign in.</p>`,
		html.EscapeString(name))
}
