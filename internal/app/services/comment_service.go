package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// CommentService manages issue discussion threads.
type CommentService struct {
	store    repositories.Store
	notifier *NotificationService
	logger   zerolog.Logger
}

// NewCommentService creates a new CommentService
func NewCommentService(store repositories.Store, notifier *NotificationService, logger zerolog.Logger) *CommentService {
	return &CommentService{store: store, notifier: notifier, logger: logger}
}

// List returns the thread of an issue the user can see, oldest first.
func (s *CommentService) List(ctx context.Context, user *models.User, issueID int64) ([]dto.CommentResponse, error) {
	if _, err := visibleIssue(ctx, s.store, user, issueID); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return dto.NewCommentResponses(comments), nil
}

// Create posts a comment and notifies the other side of the conversation:
// the assignee when the student writes, the student otherwise, and both when
// a third party such as a registrar comments.
func (s *CommentService) Create(ctx context.Context, user *models.User, issueID int64, text string) (*dto.CommentResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewFieldError("text", "Comment text is required")
	}

	var (
		batch   *Batch
		comment *models.Comment
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		issue, err := visibleIssue(ctx, tx, user, issueID)
		if err != nil {
			return err
		}
		if err := auth.Authorize(user, auth.ActionComment, issue); err != nil {
			return err
		}

		comment = &models.Comment{IssueID: issue.ID, UserID: user.ID, Text: text}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		comment.Author = user

		batch = s.notifier.Begin(tx)
		if err := batch.Log(ctx, user.ID, idPtr(issue.ID), fmt.Sprintf("Commented on issue #%d", issue.ID)); err != nil {
			return err
		}

		recipients := []int64{}
		if user.ID != issue.StudentID {
			recipients = append(recipients, issue.StudentID)
		}
		if issue.AssignedToID != nil && *issue.AssignedToID != user.ID {
			recipients = append(recipients, *issue.AssignedToID)
		}
		msg := fmt.Sprintf("%s commented on issue '%s'", user.DisplayName(), issue.Title)
		for _, id := range recipients {
			u, err := tx.Users().GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, apperrors.ErrUserNotFound) {
					continue
				}
				return err
			}
			if err := batch.Notify(ctx, u, idPtr(issue.ID), msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch.Publish()
	resp := dto.NewCommentResponse(comment)
	return &resp, nil
}
