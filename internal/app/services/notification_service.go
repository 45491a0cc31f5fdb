package services

import (
	"context"
	"fmt"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/aits/backend/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// NotificationPublisher pushes a committed notification to live subscribers.
type NotificationPublisher interface {
	PublishNotification(n *models.Notification)
}

// NotificationService owns in-app notifications, the audit trail and the
// email outbox.
type NotificationService struct {
	store     repositories.Store
	publisher NotificationPublisher
	logger    zerolog.Logger
}

// NewNotificationService creates a new NotificationService. publisher may be nil.
func NewNotificationService(store repositories.Store, publisher NotificationPublisher, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Batch collects the side effects of one transaction. Rows are written
// through the transaction immediately; websocket pushes wait for Publish,
// which must only be called after commit.
type Batch struct {
	svc     *NotificationService
	tx      repositories.Store
	created []*models.Notification
}

// Begin starts a batch bound to tx.
func (s *NotificationService) Begin(tx repositories.Store) *Batch {
	return &Batch{svc: s, tx: tx}
}

// Notify stores an in-app notification for user.
func (b *Batch) Notify(ctx context.Context, user *models.User, issueID *int64, message string) error {
	n := &models.Notification{UserID: user.ID, IssueID: issueID, Message: message}
	if err := b.tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	b.created = append(b.created, n)
	return nil
}

// Log appends an audit entry.
func (b *Batch) Log(ctx context.Context, actorID int64, issueID *int64, action string) error {
	if err := b.tx.AuditLogs().Create(ctx, &models.AuditLog{UserID: actorID, IssueID: issueID, Action: action}); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Email queues an email to user. Delivery happens later in the dispatcher, so
// a mail outage never fails the request.
func (b *Batch) Email(ctx context.Context, user *models.User, subject, body string) error {
	if user.Email == "" {
		b.svc.logger.Warn().Int64("userID", user.ID).Str("subject", subject).Msg("User has no email address, skipping email")
		return nil
	}
	err := b.tx.Outbox().Enqueue(ctx, &models.OutboxEmail{
		Recipient:     user.Email,
		RecipientName: user.DisplayName(),
		Subject:       subject,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("failed to queue email: %w", err)
	}
	metrics.EmailsQueued.Inc()
	return nil
}

// NotifyAndEmail is Notify followed by Email with the same text.
func (b *Batch) NotifyAndEmail(ctx context.Context, user *models.User, issueID *int64, subject, message string) error {
	if err := b.Notify(ctx, user, issueID, message); err != nil {
		return err
	}
	return b.Email(ctx, user, subject, message)
}

// Notifications returns the notifications created so far.
func (b *Batch) Notifications() []*models.Notification {
	return b.created
}

// Publish pushes the batch's notifications to connected clients. Safe on a nil batch.
func (b *Batch) Publish() {
	if b == nil || b.svc.publisher == nil {
		return
	}
	for _, n := range b.created {
		b.svc.publisher.PublishNotification(n)
	}
}

// List returns a page of the user's own notifications, newest first.
func (s *NotificationService) List(ctx context.Context, user *models.User, unreadOnly bool, page, size int) (*dto.NotificationListResponse, error) {
	list, total, err := s.store.Notifications().ListByUser(ctx, user.ID, unreadOnly, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.store.Notifications().CountUnread(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	_, limit := helpers.CalculateOffsetLimit(page, size)
	return &dto.NotificationListResponse{
		Notifications: list,
		UnreadCount:   unread,
		Pagination:    helpers.NewPaginationInfo(total, page, limit),
	}, nil
}

// MarkRead marks one of the user's notifications as read. Another user's
// notification is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, user *models.User, id int64) error {
	return s.store.Notifications().MarkRead(ctx, id, user.ID)
}

// MarkAllRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, user *models.User) (int64, error) {
	n, err := s.store.Notifications().MarkAllRead(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// AuditLogFilter narrows the audit trail listing.
type AuditLogFilter struct {
	UserID  *int64
	IssueID *int64
	Page    int
	Size    int
}

// ListAuditLogs returns the audit trail. Registrars and HoDs only see entries
// written by users of their own college; admins see everything.
func (s *NotificationService) ListAuditLogs(ctx context.Context, requester *models.User, filter AuditLogFilter) (*dto.AuditLogListResponse, error) {
	if !requester.IsActive || !auth.HasAction(requester.Role, auth.ActionViewAuditLogs) {
		return nil, errForbidden("You do not have permission to view audit logs")
	}

	params := repositories.AuditLogListParams{
		UserID:  filter.UserID,
		IssueID: filter.IssueID,
		Page:    filter.Page,
		Size:    filter.Size,
	}
	if requester.Role != models.RoleAdmin {
		college := requester.College
		params.College = &college
	}

	logs, total, err := s.store.AuditLogs().List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	_, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	return &dto.AuditLogListResponse{
		Logs:       logs,
		Pagination: helpers.NewPaginationInfo(total, filter.Page, limit),
	}, nil
}
