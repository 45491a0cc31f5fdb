package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// WorkflowService moves issues through their lifecycle. Every transition runs
// in one transaction with the issue row locked, covering the status change,
// the audit entry, notifications and queued emails.
type WorkflowService struct {
	store    repositories.Store
	notifier *NotificationService
	logger   zerolog.Logger
	now      func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(store repositories.Store, notifier *NotificationService, logger zerolog.Logger) *WorkflowService {
	return &WorkflowService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

type transitionFunc func(ctx context.Context, tx repositories.Store, issue *models.Issue, batch *Batch) error

// transition locks the issue, lets fn validate and mutate it, and publishes
// the notifications once the transaction has committed.
func (s *WorkflowService) transition(ctx context.Context, issueID int64, fn transitionFunc) (*dto.IssueResponse, error) {
	var (
		batch  *Batch
		result *models.Issue
		from   models.IssueStatus
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		issue, err := tx.Issues().GetByIDForUpdate(ctx, issueID)
		if err != nil {
			return err
		}
		from = issue.Status
		batch = s.notifier.Begin(tx)
		if err := fn(ctx, tx, issue, batch); err != nil {
			return err
		}
		result = issue
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch.Publish()
	metrics.IssueTransitions.WithLabelValues(string(from), string(result.Status)).Inc()
	s.logger.Info().Int64("issueID", result.ID).Str("from", string(from)).Str("to", string(result.Status)).Msg("Issue status changed")

	resp := dto.NewIssueResponse(result)
	return &resp, nil
}

func illegalTransition(issue *models.Issue, next models.IssueStatus) error {
	return apperrors.NewValidationError(fmt.Sprintf("Cannot move an issue from %s to %s", issue.Status, next))
}

// Assign hands an issue to a lecturer of the registrar's college.
func (s *WorkflowService) Assign(ctx context.Context, actor *models.User, issueID, lecturerID int64) (*dto.IssueResponse, error) {
	return s.transition(ctx, issueID, func(ctx context.Context, tx repositories.Store, issue *models.Issue, batch *Batch) error {
		if err := auth.Authorize(actor, auth.ActionAssign, issue); err != nil {
			return err
		}
		if lecturerID <= 0 {
			return apperrors.NewFieldError("assigned_to_id", "Lecturer ID is required")
		}

		lecturer, err := tx.Users().GetByID(ctx, lecturerID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.ErrLecturerNotFound
			}
			return err
		}
		if lecturer.Role != models.RoleLecturer || !lecturer.IsActive || lecturer.College != actor.College {
			return apperrors.ErrLecturerNotFound
		}

		if !issue.Status.CanTransitionTo(models.StatusAssigned) {
			return illegalTransition(issue, models.StatusAssigned)
		}

		previous := issue.AssignedToID
		issue.AssignedToID = idPtr(lecturer.ID)
		issue.Status = models.StatusAssigned
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return err
		}

		action := fmt.Sprintf("Issue '%s' (ID: %d) assigned to lecturer %s.", issue.Title, issue.ID, lecturer.Username)
		if err := batch.Log(ctx, actor.ID, idPtr(issue.ID), action); err != nil {
			return err
		}

		student, err := tx.Users().GetByID(ctx, issue.StudentID)
		if err != nil {
			return err
		}
		if err := batch.NotifyAndEmail(ctx, student, idPtr(issue.ID), "Issue Assigned",
			fmt.Sprintf("Your issue '%s' has been assigned to a lecturer.", issue.Title)); err != nil {
			return err
		}
		if err := batch.NotifyAndEmail(ctx, lecturer, idPtr(issue.ID), "New Issue Assigned",
			fmt.Sprintf("Issue '%s' has been assigned to you. Please review.", issue.Title)); err != nil {
			return err
		}

		// Tell a lecturer who lost the issue on reassignment.
		if previous != nil && *previous != lecturer.ID && *previous != actor.ID {
			old, err := tx.Users().GetByID(ctx, *previous)
			if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				return err
			}
			if old != nil && old.Role == models.RoleLecturer {
				if err := batch.Notify(ctx, old, idPtr(issue.ID),
					fmt.Sprintf("Issue '%s' has been reassigned to another lecturer.", issue.Title)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Resolve closes out an issue with a resolution note. Resolving an already
// resolved issue fails without side effects.
func (s *WorkflowService) Resolve(ctx context.Context, actor *models.User, issueID int64, note string) (*dto.IssueResponse, error) {
	return s.transition(ctx, issueID, func(ctx context.Context, tx repositories.Store, issue *models.Issue, batch *Batch) error {
		if err := auth.Authorize(actor, auth.ActionResolve, issue); err != nil {
			return err
		}
		switch issue.Status {
		case models.StatusResolved:
			return apperrors.NewValidationError("Issue is already resolved.")
		case models.StatusClosed:
			return apperrors.NewValidationError("Issue is already closed.")
		}
		if actor.Role == models.RoleLecturer &&
			issue.Status != models.StatusAssigned && issue.Status != models.StatusInProgress {
			return apperrors.NewValidationError("Only assigned or in-progress issues can be resolved by a lecturer.")
		}
		note = strings.TrimSpace(note)
		if note == "" {
			return apperrors.NewFieldError("resolution_note", "Resolution note is required.")
		}
		if !issue.Status.CanTransitionTo(models.StatusResolved) {
			return illegalTransition(issue, models.StatusResolved)
		}

		now := s.now()
		issue.Status = models.StatusResolved
		issue.ResolutionNote = &note
		issue.ResolvedByID = idPtr(actor.ID)
		issue.ResolvedAt = &now
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return err
		}

		action := fmt.Sprintf("Issue '%s' (ID: %d) resolved by %s.", issue.Title, issue.ID, actor.Username)
		if err := batch.Log(ctx, actor.ID, idPtr(issue.ID), action); err != nil {
			return err
		}

		student, err := tx.Users().GetByID(ctx, issue.StudentID)
		if err != nil {
			return err
		}
		if err := batch.NotifyAndEmail(ctx, student, idPtr(issue.ID), "Issue Resolved",
			fmt.Sprintf("Your issue '%s' has been resolved. Resolution: %s", issue.Title, note)); err != nil {
			return err
		}

		if actor.Role == models.RoleRegistrar && issue.AssignedToID != nil && *issue.AssignedToID != actor.ID {
			lecturer, err := tx.Users().GetByID(ctx, *issue.AssignedToID)
			if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				return err
			}
			if lecturer != nil && lecturer.Role == models.RoleLecturer {
				if err := batch.NotifyAndEmail(ctx, lecturer, idPtr(issue.ID), "Issue Resolved by Registrar",
					fmt.Sprintf("Issue '%s' was resolved by the Registrar.", issue.Title)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// StartProgress lets the assigned lecturer mark that work has begun.
func (s *WorkflowService) StartProgress(ctx context.Context, actor *models.User, issueID int64) (*dto.IssueResponse, error) {
	return s.transition(ctx, issueID, func(ctx context.Context, tx repositories.Store, issue *models.Issue, batch *Batch) error {
		if err := auth.Authorize(actor, auth.ActionStartProgress, issue); err != nil {
			return err
		}
		if issue.Status != models.StatusAssigned {
			return illegalTransition(issue, models.StatusInProgress)
		}

		issue.Status = models.StatusInProgress
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return err
		}
		if err := batch.Log(ctx, actor.ID, idPtr(issue.ID),
			fmt.Sprintf("Issue '%s' (ID: %d) marked in progress by %s.", issue.Title, issue.ID, actor.Username)); err != nil {
			return err
		}

		student, err := tx.Users().GetByID(ctx, issue.StudentID)
		if err != nil {
			return err
		}
		return batch.Notify(ctx, student, idPtr(issue.ID),
			fmt.Sprintf("Work has started on your issue '%s'.", issue.Title))
	})
}

// Close archives a resolved issue.
func (s *WorkflowService) Close(ctx context.Context, actor *models.User, issueID int64) (*dto.IssueResponse, error) {
	return s.transition(ctx, issueID, func(ctx context.Context, tx repositories.Store, issue *models.Issue, batch *Batch) error {
		if err := auth.Authorize(actor, auth.ActionClose, issue); err != nil {
			return err
		}
		if issue.Status == models.StatusClosed {
			return apperrors.NewValidationError("Issue is already closed.")
		}
		if !issue.Status.CanTransitionTo(models.StatusClosed) {
			return illegalTransition(issue, models.StatusClosed)
		}

		issue.Status = models.StatusClosed
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return err
		}
		if err := batch.Log(ctx, actor.ID, idPtr(issue.ID),
			fmt.Sprintf("Issue '%s' (ID: %d) closed by %s.", issue.Title, issue.ID, actor.Username)); err != nil {
			return err
		}

		student, err := tx.Users().GetByID(ctx, issue.StudentID)
		if err != nil {
			return err
		}
		return batch.Notify(ctx, student, idPtr(issue.ID), fmt.Sprintf("Your issue '%s' has been closed.", issue.Title))
	})
}
