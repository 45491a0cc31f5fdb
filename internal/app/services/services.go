// Package services implements the AITS business rules: accounts, the issue
// store, the assignment and resolution workflow, comments, attachments and
// the notification/audit sink. Services depend on repositories.Store so every
// multi-row change can run in one transaction.
package services

import (
	"strings"

	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	pkgAuth "github.com/aits/backend/internal/pkg/auth"
	"github.com/aits/backend/internal/pkg/filestorage"
	"github.com/rs/zerolog"
)

// MinTitleLength is the shortest accepted issue title after trimming.
const MinTitleLength = 5

// Services bundles every service for the HTTP layer.
type Services struct {
	Auth          *AuthService
	Profile       *ProfileService
	Issues        *IssueService
	Workflow      *WorkflowService
	Comments      *CommentService
	Attachments   *AttachmentService
	Notifications *NotificationService
}

// Deps are the collaborators shared by the services.
type Deps struct {
	Store     repositories.Store
	JWT       *pkgAuth.JWTService
	Files     filestorage.FileStorage
	Publisher NotificationPublisher
	Logger    zerolog.Logger
}

// New wires the services together.
func New(d Deps) *Services {
	notifications := NewNotificationService(d.Store, d.Publisher, d.Logger.With().Str("service", "notifications").Logger())
	return &Services{
		Auth:          NewAuthService(d.Store, d.JWT, d.Logger.With().Str("service", "auth").Logger()),
		Profile:       NewProfileService(d.Store, d.Logger.With().Str("service", "profile").Logger()),
		Issues:        NewIssueService(d.Store, d.Files, notifications, d.Logger.With().Str("service", "issues").Logger()),
		Workflow:      NewWorkflowService(d.Store, notifications, d.Logger.With().Str("service", "workflow").Logger()),
		Comments:      NewCommentService(d.Store, notifications, d.Logger.With().Str("service", "comments").Logger()),
		Attachments:   NewAttachmentService(d.Store, d.Files, d.Logger.With().Str("service", "attachments").Logger()),
		Notifications: notifications,
	}
}

func errForbidden(message string) error {
	return apperrors.NewForbiddenError(message)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func idPtr(id int64) *int64 {
	return &id
}
