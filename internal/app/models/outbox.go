package models

import "time"

// OutboxStatus tracks delivery of a queued email.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEmail is an email queued in the same transaction as the change that caused it.
type OutboxEmail struct {
	ID            int64        `db:"id"`
	Recipient     string       `db:"recipient"`
	RecipientName string       `db:"recipient_name"`
	Subject       string       `db:"subject"`
	Body          string       `db:"body"`
	Status        OutboxStatus `db:"status"`
	Attempts      int          `db:"attempts"`
	LastError     *string      `db:"last_error"`
	NextAttemptAt time.Time    `db:"next_attempt_at"`
	SentAt        *time.Time   `db:"sent_at"`
	CreatedAt     time.Time    `db:"created_at"`
}

// RefreshToken is a stored, revocable refresh token.
type RefreshToken struct {
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	IsRevoked bool      `db:"is_revoked"`
	CreatedAt time.Time `db:"created_at"`
}
