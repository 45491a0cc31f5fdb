package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/logger"
)

// OutboxRepository stores queued emails. Rows are written in the same
// transaction as the change that triggers them and drained by the dispatcher.
type OutboxRepository struct {
	db DBTX
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts a pending email due immediately.
func (r *OutboxRepository) Enqueue(ctx context.Context, email *models.OutboxEmail) error {
	sql, args, err := psql.Insert("email_outbox").
		Columns("recipient", "recipient_name", "subject", "body", "status", "attempts").
		Values(email.Recipient, email.RecipientName, email.Subject, email.Body, models.OutboxPending, 0).
		Suffix("RETURNING id, next_attempt_at, created_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building enqueue email SQL")
		return fmt.Errorf("failed to build enqueue email query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&email.ID, &email.NextAttemptAt, &email.CreatedAt); err != nil {
		logger.Error().Err(err).Str("recipient", email.Recipient).Msg("Error executing enqueue email query")
		return fmt.Errorf("error enqueueing email: %w", err)
	}
	email.Status = models.OutboxPending
	return nil
}

// ClaimDue leases a batch of due emails in one statement. SKIP LOCKED keeps
// concurrent dispatchers from picking the same rows.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxEmail, error) {
	const query = `
		UPDATE email_outbox SET next_attempt_at = $1
		WHERE id IN (
			SELECT id FROM email_outbox
			WHERE status = 'pending' AND next_attempt_at <= $2
			ORDER BY next_attempt_at, id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, recipient, recipient_name, subject, body, status, attempts, last_error, next_attempt_at, sent_at, created_at`

	rows, err := r.db.Query(ctx, query, now.Add(lease), now, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing claim due emails query")
		return nil, fmt.Errorf("error claiming emails: %w", err)
	}
	defer rows.Close()

	batch := []*models.OutboxEmail{}
	for rows.Next() {
		e := &models.OutboxEmail{}
		if err := rows.Scan(&e.ID, &e.Recipient, &e.RecipientName, &e.Subject, &e.Body, &e.Status,
			&e.Attempts, &e.LastError, &e.NextAttemptAt, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning outbox email: %w", err)
		}
		batch = append(batch, e)
	}
	return batch, rows.Err()
}

// MarkSent records a successful delivery.
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE email_outbox SET status = 'sent', sent_at = $1, attempts = attempts + 1, last_error = NULL WHERE id = $2`,
		at, id)
	if err != nil {
		return fmt.Errorf("error marking email sent: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and either reschedules or gives up.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id int64, attempts int, lastErr string, next *time.Time) error {
	var err error
	if next == nil {
		_, err = r.db.Exec(ctx,
			`UPDATE email_outbox SET status = 'failed', attempts = $1, last_error = $2 WHERE id = $3`,
			attempts, lastErr, id)
	} else {
		_, err = r.db.Exec(ctx,
			`UPDATE email_outbox SET attempts = $1, last_error = $2, next_attempt_at = $3 WHERE id = $4`,
			attempts, lastErr, *next, id)
	}
	if err != nil {
		return fmt.Errorf("error recording email attempt: %w", err)
	}
	return nil
}

// CountByStatus summarises the queue.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM email_outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("error counting outbox: %w", err)
	}
	defer rows.Close()

	counts := map[models.OutboxStatus]int64{}
	for rows.Next() {
		var s models.OutboxStatus
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("error scanning outbox count: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
