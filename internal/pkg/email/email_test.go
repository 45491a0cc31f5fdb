package email

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailerSelectsProvider(t *testing.T) {
	m, err := NewMailer(Config{Provider: "log"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	m, err = NewMailer(Config{Provider: "sendgrid", SendGridAPIKey: "k"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SendGridMailer{}, m)

	m, err = NewMailer(Config{Provider: "smtp", Host: "localhost", Port: 25}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	_, err = NewMailer(Config{Provider: "pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestLogMailerRecordsMessages(t *testing.T) {
	m := NewLogMailer(zerolog.Nop())
	require.NoError(t, m.Send(context.Background(), Message{To: "jane@example.com", Subject: "Hi", Body: "b"}))
	assert.Len(t, m.Sent(), 1)

	err := m.Send(context.Background(), Message{To: "not-an-address"})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Len(t, m.Sent(), 1)
}

func TestSMTPMessageHeaders(t *testing.T) {
	m := NewSMTPMailer(Config{FromName: "AITS", FromEmail: "noreply@aits.test", SubjectPrefix: "[AITS]"}, zerolog.Nop())
	raw := string(m.buildMessage(Message{To: "jane@example.com", Subject: "Issue Assigned", Body: "hello"}))
	assert.Contains(t, raw, "From: AITS <noreply@aits.test>\r\n")
	assert.Contains(t, raw, "Subject: [AITS] Issue Assigned\r\n")
	assert.Contains(t, raw, "\r\n\r\nhello")
}
