// Package inmem is a map-backed repositories.Store for tests and local demos.
// WithTx snapshots every table and restores the snapshot when fn fails, so
// rollback behaves like the PostgreSQL store.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories"
)

type tables struct {
	users         map[int64]*models.User
	issues        map[int64]*models.Issue
	comments      map[int64]*models.Comment
	notifications map[int64]*models.Notification
	auditLogs     map[int64]*models.AuditLog
	attachments   map[int64]*models.Attachment
	tokens        map[string]*models.RefreshToken
	outbox        map[int64]*models.OutboxEmail
	seq           int64
}

func newTables() *tables {
	return &tables{
		users:         map[int64]*models.User{},
		issues:        map[int64]*models.Issue{},
		comments:      map[int64]*models.Comment{},
		notifications: map[int64]*models.Notification{},
		auditLogs:     map[int64]*models.AuditLog{},
		attachments:   map[int64]*models.Attachment{},
		tokens:        map[string]*models.RefreshToken{},
		outbox:        map[int64]*models.OutboxEmail{},
	}
}

func (t *tables) nextID() int64 {
	t.seq++
	return t.seq
}

func cloneMap[K comparable, V any](in map[K]*V) map[K]*V {
	out := make(map[K]*V, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		users:         cloneMap(t.users),
		issues:        cloneMap(t.issues),
		comments:      cloneMap(t.comments),
		notifications: cloneMap(t.notifications),
		auditLogs:     cloneMap(t.auditLogs),
		attachments:   cloneMap(t.attachments),
		tokens:        cloneMap(t.tokens),
		outbox:        cloneMap(t.outbox),
		seq:           t.seq,
	}
}

// Store implements repositories.Store in memory.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	db   *tables

	// Now is the clock used for timestamps. Tests may replace it.
	Now func() time.Time

	// FailOn, when set, is consulted before every write; a non-nil return
	// aborts the write with that error.
	FailOn func(op string) error
}

var _ repositories.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{db: newTables(), Now: time.Now}
}

func (s *Store) now() time.Time {
	return s.Now().UTC()
}

func (s *Store) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op)
}

func (s *Store) Users() repositories.IUserRepository                 { return &userRepository{s: s} }
func (s *Store) Issues() repositories.IIssueRepository               { return &issueRepository{s: s} }
func (s *Store) Comments() repositories.ICommentRepository           { return &commentRepository{s: s} }
func (s *Store) Notifications() repositories.INotificationRepository { return &notificationRepository{s: s} }
func (s *Store) AuditLogs() repositories.IAuditLogRepository         { return &auditLogRepository{s: s} }
func (s *Store) Attachments() repositories.IAttachmentRepository     { return &attachmentRepository{s: s} }
func (s *Store) Tokens() repositories.ITokenRepository               { return &tokenRepository{s: s} }
func (s *Store) Outbox() repositories.IOutboxRepository              { return &outboxRepository{s: s} }

// WithTx runs fn with all-or-nothing semantics. Transactions are serialised.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.db.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &txStore{Store: s}); err != nil {
		s.mu.Lock()
		s.db = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is handed to WithTx callbacks; nested WithTx joins the outer one.
type txStore struct {
	*Store
}

func (t *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	return fn(ctx, t)
}

// AllNotifications returns a copy of every stored notification, oldest first.
func (s *Store) AllNotifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.db.notifications))
	for _, n := range s.db.notifications {
		out = append(out, *n)
	}
	sortByID(out, func(n models.Notification) int64 { return n.ID })
	return out
}

// AllAuditLogs returns a copy of the audit trail, oldest first.
func (s *Store) AllAuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditLog, 0, len(s.db.auditLogs))
	for _, a := range s.db.auditLogs {
		out = append(out, *a)
	}
	sortByID(out, func(a models.AuditLog) int64 { return a.ID })
	return out
}

// AllOutbox returns a copy of the email queue, oldest first.
func (s *Store) AllOutbox() []models.OutboxEmail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OutboxEmail, 0, len(s.db.outbox))
	for _, e := range s.db.outbox {
		out = append(out, *e)
	}
	sortByID(out, func(e models.OutboxEmail) int64 { return e.ID })
	return out
}
