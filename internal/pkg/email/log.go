package email

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogMailer writes messages to the log instead of sending them. It keeps the
// sent messages so tests and the CLI can inspect them.
type LogMailer struct {
	logger zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogMailer creates a new LogMailer
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("mailer", "log").Logger()}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	l.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("Email (not sent, log provider)")

	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()
	return nil
}

// Sent returns a copy of the logged messages.
func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
