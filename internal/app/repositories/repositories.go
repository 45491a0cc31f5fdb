package repositories

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository can
// run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// psql is the shared statement builder using $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// IUserRepository defines the interface for user-related database operations
type IUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	RegNumberExists(ctx context.Context, regNumber string) (bool, error)
	// FirstByRoleAndCollege returns the lowest-id active user with role in college.
	FirstByRoleAndCollege(ctx context.Context, role models.Role, college string) (*models.User, error)
	ListByRoleAndCollege(ctx context.Context, role models.Role, college string) ([]*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
}

// IssueListParams filters, sorts and pages an issue query.
type IssueListParams struct {
	Scope        models.IssueScope
	Status       *models.IssueStatus
	Category     *models.IssueCategory
	Priority     *models.IssuePriority
	AssignedToID *int64
	Search       string
	SortBy       string
	SortDesc     bool
	Page         int
	Size         int
}

// IIssueRepository persists issues.
type IIssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id int64) (*models.Issue, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Issue, error)
	List(ctx context.Context, params IssueListParams) ([]*models.Issue, int64, error)
	// Update writes every mutable column when the stored version equals
	// issue.Version, then increments issue.Version. A stale version yields
	// apperrors.ErrIssueModified.
	Update(ctx context.Context, issue *models.Issue) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context, scope models.IssueScope) (map[models.IssueStatus]int64, error)
}

// ICommentRepository persists comments.
type ICommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByIssue(ctx context.Context, issueID int64) ([]*models.Comment, error)
}

// INotificationRepository persists in-app notifications.
type INotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, page, size int) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// AuditLogListParams filters the audit trail.
type AuditLogListParams struct {
	UserID  *int64
	IssueID *int64
	College *string
	Page    int
	Size    int
}

// IAuditLogRepository persists the append-only audit trail.
type IAuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, params AuditLogListParams) ([]*models.AuditLog, int64, error)
}

// IAttachmentRepository persists issue attachments.
type IAttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id int64) (*models.Attachment, error)
	ListByIssue(ctx context.Context, issueID int64) ([]*models.Attachment, error)
	Delete(ctx context.Context, id int64) error
}

// ITokenRepository stores refresh tokens.
type ITokenRepository interface {
	CreateToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	// GetTokenByValue returns the token row, failing with ErrTokenNotFound,
	// ErrTokenRevoked or ErrTokenExpired.
	GetTokenByValue(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// IOutboxRepository queues emails for the dispatcher.
type IOutboxRepository interface {
	Enqueue(ctx context.Context, email *models.OutboxEmail) error
	// ClaimDue returns up to limit pending emails whose next attempt is due and
	// pushes their next attempt forward by lease so concurrent dispatchers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxEmail, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	// MarkRetry records a failed attempt. A nil next marks the email as failed for good.
	MarkRetry(ctx context.Context, id int64, attempts int, lastErr string, next *time.Time) error
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error)
}

// Store groups every repository behind one handle so services can run a set of
// writes atomically with WithTx.
type Store interface {
	Users() IUserRepository
	Issues() IIssueRepository
	Comments() ICommentRepository
	Notifications() INotificationRepository
	AuditLogs() IAuditLogRepository
	Attachments() IAttachmentRepository
	Tokens() ITokenRepository
	Outbox() IOutboxRepository
	// WithTx runs fn against a Store bound to one transaction. Nested calls
	// reuse the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Repositories is the PostgreSQL Store.
type Repositories struct {
	pg *db.PostgresDB
	q  DBTX

	UserRepository         *UserRepository
	IssueRepository        *IssueRepository
	CommentRepository      *CommentRepository
	NotificationRepository *NotificationRepository
	AuditLogRepository     *AuditLogRepository
	AttachmentRepository   *AttachmentRepository
	TokenRepository        *TokenRepository
	OutboxRepository       *OutboxRepository
}

// NewRepositories initializes all repositories on the connection pool.
func NewRepositories(pg *db.PostgresDB) *Repositories {
	return newRepositories(pg, pg.Pool)
}

func newRepositories(pg *db.PostgresDB, q DBTX) *Repositories {
	return &Repositories{
		pg:                     pg,
		q:                      q,
		UserRepository:         NewUserRepository(q),
		IssueRepository:        NewIssueRepository(q),
		CommentRepository:      NewCommentRepository(q),
		NotificationRepository: NewNotificationRepository(q),
		AuditLogRepository:     NewAuditLogRepository(q),
		AttachmentRepository:   NewAttachmentRepository(q),
		TokenRepository:        NewTokenRepository(q),
		OutboxRepository:       NewOutboxRepository(q),
	}
}

func (r *Repositories) Users() IUserRepository                 { return r.UserRepository }
func (r *Repositories) Issues() IIssueRepository               { return r.IssueRepository }
func (r *Repositories) Comments() ICommentRepository           { return r.CommentRepository }
func (r *Repositories) Notifications() INotificationRepository { return r.NotificationRepository }
func (r *Repositories) AuditLogs() IAuditLogRepository         { return r.AuditLogRepository }
func (r *Repositories) Attachments() IAttachmentRepository     { return r.AttachmentRepository }
func (r *Repositories) Tokens() ITokenRepository               { return r.TokenRepository }
func (r *Repositories) Outbox() IOutboxRepository              { return r.OutboxRepository }

// WithTx implements Store.
func (r *Repositories) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if _, inTx := r.q.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	return r.pg.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, newRepositories(r.pg, tx))
	})
}
