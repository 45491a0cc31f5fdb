// Package email delivers plain-text notification mail. The outbox dispatcher
// is the only caller; request handlers never send mail directly.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"
)

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent email failure")

// Message is one outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures a Mailer.
type Config struct {
	Provider       string // smtp, sendgrid or log
	Host           string
	Port           int
	Username       string
	Password       string
	FromName       string
	FromEmail      string
	UseTLS         bool
	SendGridAPIKey string
	SubjectPrefix  string
}

// NewMailer builds the Mailer named by cfg.Provider.
func NewMailer(cfg Config, logger zerolog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPMailer(cfg, logger), nil
	case "sendgrid":
		return NewSendGridMailer(cfg, logger), nil
	case "log", "":
		return NewLogMailer(logger), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}

func (m Message) validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", ErrPermanent, m.To)
	}
	return nil
}

func (c Config) subject(s string) string {
	if c.SubjectPrefix == "" {
		return s
	}
	return c.SubjectPrefix + " " + s
}
