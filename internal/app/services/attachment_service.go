package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/filestorage"
	"github.com/rs/zerolog"
)

const (
	// MaxFilesPerUpload bounds one multipart request.
	MaxFilesPerUpload = 10
	attachmentSubPath = "issues"
)

// storeFiles saves every upload. On failure the files already written are removed.
func storeFiles(files filestorage.FileStorage, uploads []*multipart.FileHeader, logger zerolog.Logger) ([]*filestorage.StoredFile, error) {
	if len(uploads) > MaxFilesPerUpload {
		return nil, apperrors.NewFieldError("attachments", fmt.Sprintf("At most %d files can be uploaded at once", MaxFilesPerUpload))
	}
	if len(uploads) > 0 && files == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}

	stored := make([]*filestorage.StoredFile, 0, len(uploads))
	for _, fh := range uploads {
		sf, err := files.Save(fh, attachmentSubPath)
		if err != nil {
			removeFiles(files, stored, logger)
			switch {
			case errors.Is(err, filestorage.ErrFileTooLarge):
				return nil, apperrors.NewFieldError("attachments", fmt.Sprintf("%s is too large", fh.Filename))
			case errors.Is(err, filestorage.ErrEmptyFile):
				return nil, apperrors.NewFieldError("attachments", fmt.Sprintf("%s is empty", fh.Filename))
			case errors.Is(err, filestorage.ErrTypeNotAllowed):
				return nil, apperrors.NewFieldError("attachments", fmt.Sprintf("%s has a file type that is not allowed", fh.Filename))
			}
			return nil, fmt.Errorf("failed to store %s: %w", fh.Filename, err)
		}
		stored = append(stored, sf)
	}
	return stored, nil
}

func removeFiles(files filestorage.FileStorage, stored []*filestorage.StoredFile, logger zerolog.Logger) {
	for _, sf := range stored {
		if err := files.Delete(sf.Path); err != nil {
			logger.Warn().Err(err).Str("path", sf.Path).Msg("Failed to remove stored file")
		}
	}
}

// linkFiles records stored files as attachments of issueID.
func linkFiles(ctx context.Context, tx repositories.Store, issueID, uploaderID int64, stored []*filestorage.StoredFile) ([]*models.Attachment, error) {
	out := make([]*models.Attachment, 0, len(stored))
	for _, sf := range stored {
		a := &models.Attachment{
			IssueID:    issueID,
			FileName:   sf.FileName,
			FilePath:   sf.Path,
			FileURL:    sf.URL,
			FileSize:   sf.Size,
			MimeType:   sf.MimeType,
			UploadedBy: &uploaderID,
		}
		if err := tx.Attachments().Create(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to save attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// AttachmentService manages files uploaded against issues.
type AttachmentService struct {
	store  repositories.Store
	files  filestorage.FileStorage
	logger zerolog.Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(store repositories.Store, files filestorage.FileStorage, logger zerolog.Logger) *AttachmentService {
	return &AttachmentService{store: store, files: files, logger: logger}
}

// visibleIssue loads an issue, hiding ones the user may not see.
func visibleIssue(ctx context.Context, store repositories.Store, user *models.User, issueID int64) (*models.Issue, error) {
	issue, err := store.Issues().GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !auth.Allowed(user, auth.ActionView, issue) {
		return nil, apperrors.ErrIssueNotFound
	}
	return issue, nil
}

// List returns the attachments of an issue the user can see.
func (s *AttachmentService) List(ctx context.Context, user *models.User, issueID int64) ([]dto.AttachmentResponse, error) {
	if _, err := visibleIssue(ctx, s.store, user, issueID); err != nil {
		return nil, err
	}
	list, err := s.store.Attachments().ListByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return dto.NewAttachmentResponses(list), nil
}

// Upload stores files and links them to the issue.
func (s *AttachmentService) Upload(ctx context.Context, user *models.User, issueID int64, uploads []*multipart.FileHeader) ([]dto.AttachmentResponse, error) {
	issue, err := visibleIssue(ctx, s.store, user, issueID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(user, auth.ActionAttach, issue); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, apperrors.NewFieldError("attachments", "At least one file is required")
	}

	stored, err := storeFiles(s.files, uploads, s.logger)
	if err != nil {
		return nil, err
	}

	var created []*models.Attachment
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		var err error
		created, err = linkFiles(ctx, tx, issue.ID, user.ID, stored)
		if err != nil {
			return err
		}
		return tx.AuditLogs().Create(ctx, &models.AuditLog{
			UserID:  user.ID,
			IssueID: idPtr(issue.ID),
			Action:  fmt.Sprintf("Uploaded %d attachment(s) to issue #%d", len(created), issue.ID),
		})
	})
	if err != nil {
		removeFiles(s.files, stored, s.logger)
		return nil, err
	}

	s.logger.Info().Int64("issueID", issue.ID).Int64("userID", user.ID).Int("count", len(created)).Msg("Attachments uploaded")
	return dto.NewAttachmentResponses(created), nil
}

// Get returns one attachment together with its issue when the user can see it.
func (s *AttachmentService) Get(ctx context.Context, user *models.User, id int64) (*models.Attachment, error) {
	a, err := s.store.Attachments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := visibleIssue(ctx, s.store, user, a.IssueID); err != nil {
		if errors.Is(err, apperrors.ErrIssueNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// Open resolves the on-disk location of an attachment the user can see.
func (s *AttachmentService) Open(ctx context.Context, user *models.User, id int64) (*models.Attachment, string, error) {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, "", err
	}
	return a, s.files.FullPath(a.FilePath), nil
}

// Delete removes an attachment row and, after commit, its file.
func (s *AttachmentService) Delete(ctx context.Context, user *models.User, id int64) error {
	var removed *models.Attachment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		a, err := tx.Attachments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		issue, err := tx.Issues().GetByID(ctx, a.IssueID)
		if err != nil {
			return err
		}
		if !auth.Allowed(user, auth.ActionView, issue) {
			return apperrors.ErrAttachmentNotFound
		}
		if err := auth.Authorize(user, auth.ActionDeleteAttachment, issue); err != nil {
			return err
		}

		if err := tx.Attachments().Delete(ctx, id); err != nil {
			return err
		}
		removed = a
		return tx.AuditLogs().Create(ctx, &models.AuditLog{
			UserID:  user.ID,
			IssueID: idPtr(issue.ID),
			Action:  fmt.Sprintf("Deleted attachment %q from issue #%d", a.FileName, issue.ID),
		})
	})
	if err != nil {
		return err
	}

	if err := s.files.Delete(removed.FilePath); err != nil {
		s.logger.Warn().Err(err).Int64("attachmentID", id).Msg("Attachment row deleted but file removal failed")
	}
	return nil
}
