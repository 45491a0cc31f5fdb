package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
)

type notificationRepository struct {
	s *Store
}

func (r *notificationRepository) Create(_ context.Context, n *models.Notification) error {
	if err := r.s.fail("notifications.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n.ID = r.s.db.nextID()
	n.CreatedAt = r.s.now()
	n.IsRead = false
	cp := *n
	r.s.db.notifications[n.ID] = &cp
	return nil
}

func (r *notificationRepository) ListByUser(_ context.Context, userID int64, unreadOnly bool, pageNum, size int) ([]*models.Notification, int64, error) {
	r.s.mu.RLock()
	list := []*models.Notification{}
	for _, n := range r.s.db.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			cp := *n
			list = append(list, &cp)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return page(list, pageNum, size), int64(len(list)), nil
}

func (r *notificationRepository) CountUnread(_ context.Context, userID int64) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, item := range r.s.db.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *notificationRepository) MarkRead(_ context.Context, id, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.db.notifications[id]
	if !ok || n.UserID != userID {
		return apperrors.ErrNotificationNotFound
	}
	cp := *n
	cp.IsRead = true
	r.s.db.notifications[id] = &cp
	return nil
}

func (r *notificationRepository) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated int64
	for id, n := range r.s.db.notifications {
		if n.UserID == userID && !n.IsRead {
			cp := *n
			cp.IsRead = true
			r.s.db.notifications[id] = &cp
			updated++
		}
	}
	return updated, nil
}

type auditLogRepository struct {
	s *Store
}

func (r *auditLogRepository) Create(_ context.Context, entry *models.AuditLog) error {
	if err := r.s.fail("audit_logs.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry.ID = r.s.db.nextID()
	entry.Timestamp = r.s.now()
	cp := *entry
	r.s.db.auditLogs[entry.ID] = &cp
	return nil
}

func (r *auditLogRepository) List(_ context.Context, p repositories.AuditLogListParams) ([]*models.AuditLog, int64, error) {
	r.s.mu.RLock()
	list := []*models.AuditLog{}
	for _, a := range r.s.db.auditLogs {
		if p.UserID != nil && a.UserID != *p.UserID {
			continue
		}
		if p.IssueID != nil && (a.IssueID == nil || *a.IssueID != *p.IssueID) {
			continue
		}
		if p.College != nil {
			u, ok := r.s.db.users[a.UserID]
			if !ok || u.College != *p.College {
				continue
			}
		}
		cp := *a
		list = append(list, &cp)
	}
	r.s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].ID > list[j].ID
	})
	return page(list, p.Page, p.Size), int64(len(list)), nil
}

type tokenRepository struct {
	s *Store
}

func (r *tokenRepository) CreateToken(_ context.Context, token string, userID int64, expiresAt time.Time) error {
	if err := r.s.fail("tokens.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.db.tokens[token]; ok {
		return apperrors.ErrTokenInvalid
	}
	r.s.db.tokens[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.now(),
	}
	return nil
}

func (r *tokenRepository) GetTokenByValue(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rt, ok := r.s.db.tokens[token]
	switch {
	case !ok:
		return nil, apperrors.ErrTokenNotFound
	case rt.IsRevoked:
		return nil, apperrors.ErrTokenRevoked
	case rt.ExpiresAt.Before(r.s.now()):
		return nil, apperrors.ErrTokenExpired
	}
	cp := *rt
	return &cp, nil
}

func (r *tokenRepository) RevokeToken(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rt, ok := r.s.db.tokens[token]
	if !ok {
		return apperrors.ErrTokenNotFound
	}
	cp := *rt
	cp.IsRevoked = true
	r.s.db.tokens[token] = &cp
	return nil
}

func (r *tokenRepository) RevokeAllUserTokens(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, rt := range r.s.db.tokens {
		if rt.UserID == userID && !rt.IsRevoked {
			cp := *rt
			cp.IsRevoked = true
			r.s.db.tokens[k] = &cp
		}
	}
	return nil
}

func (r *tokenRepository) CleanupExpiredTokens(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	var deleted int64
	for k, rt := range r.s.db.tokens {
		if rt.ExpiresAt.Before(now) || (rt.IsRevoked && rt.CreatedAt.Before(now.Add(-30*24*time.Hour))) {
			delete(r.s.db.tokens, k)
			deleted++
		}
	}
	return deleted, nil
}

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Enqueue(_ context.Context, email *models.OutboxEmail) error {
	if err := r.s.fail("outbox.enqueue"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	email.ID = r.s.db.nextID()
	email.Status = models.OutboxPending
	email.Attempts = 0
	email.NextAttemptAt = now
	email.CreatedAt = now
	cp := *email
	r.s.db.outbox[email.ID] = &cp
	return nil
}

func (r *outboxRepository) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	due := []*models.OutboxEmail{}
	for _, e := range r.s.db.outbox {
		if e.Status == models.OutboxPending && !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*models.OutboxEmail, 0, len(due))
	for _, e := range due {
		leased := *e
		leased.NextAttemptAt = now.Add(lease)
		r.s.db.outbox[e.ID] = &leased
		cp := leased
		out = append(out, &cp)
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.db.outbox[id]
	if !ok {
		return nil
	}
	cp := *e
	cp.Status = models.OutboxSent
	cp.SentAt = &at
	cp.Attempts++
	cp.LastError = nil
	r.s.db.outbox[id] = &cp
	return nil
}

func (r *outboxRepository) MarkRetry(_ context.Context, id int64, attempts int, lastErr string, next *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.db.outbox[id]
	if !ok {
		return nil
	}
	cp := *e
	cp.Attempts = attempts
	cp.LastError = &lastErr
	if next == nil {
		cp.Status = models.OutboxFailed
	} else {
		cp.NextAttemptAt = *next
	}
	r.s.db.outbox[id] = &cp
	return nil
}

func (r *outboxRepository) CountByStatus(_ context.Context) (map[models.OutboxStatus]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[models.OutboxStatus]int64{}
	for _, e := range r.s.db.outbox {
		counts[e.Status]++
	}
	return counts, nil
}
