package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
	config Config
	logger zerolog.Logger
}

// NewSendGridMailer creates a new SendGridMailer
func NewSendGridMailer(config Config, logger zerolog.Logger) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(config.SendGridAPIKey),
		from:   sgmail.NewEmail(config.FromName, config.FromEmail),
		config: config,
		logger: logger.With().Str("mailer", "sendgrid").Logger(),
	}
}

func (s *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.config.subject(msg.Subject)
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	return m
}

// Send posts msg to SendGrid. 4xx responses other than 429 are permanent.
func (s *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	res, err := s.client.SendWithContext(ctx, s.prepare(msg))
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Warn().Int("status", res.StatusCode).Str("body", res.Body).Msg("SendGrid rejected message")
		if res.StatusCode < http.StatusInternalServerError && res.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: sendgrid status %d", ErrPermanent, res.StatusCode)
		}
		return fmt.Errorf("sendgrid status %d", res.StatusCode)
	}
	return nil
}
