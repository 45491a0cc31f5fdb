package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/aits/backend/internal/pkg/filestorage"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/aits/backend/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// IssueService is the issue store: creation with auto-routing, scoped reads,
// descriptive edits and deletion.
type IssueService struct {
	store    repositories.Store
	files    filestorage.FileStorage
	notifier *NotificationService
	logger   zerolog.Logger
}

// NewIssueService creates a new IssueService
func NewIssueService(store repositories.Store, files filestorage.FileStorage, notifier *NotificationService, logger zerolog.Logger) *IssueService {
	return &IssueService{
		store:    store,
		files:    files,
		notifier: notifier,
		logger:   logger,
	}
}

func checkTitle(verr *apperrors.ValidationError, title string) {
	if utf8.RuneCountInString(strings.TrimSpace(title)) < MinTitleLength {
		verr.Add("title", fmt.Sprintf("Title must be at least %d characters long", MinTitleLength))
	}
}

// routeTo picks the initial assignee and status. An explicit assignee must be
// a lecturer or registrar of the student's college; otherwise the first
// registrar of the college takes the issue, and with none it stays open.
func (s *IssueService) routeTo(ctx context.Context, tx repositories.Store, student *models.User, requested *int64) (*models.User, models.IssueStatus, error) {
	if requested != nil {
		u, err := tx.Users().GetByID(ctx, *requested)
		if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, "", err
		}
		if u == nil || !u.IsActive || u.College != student.College ||
			(u.Role != models.RoleLecturer && u.Role != models.RoleRegistrar) {
			return nil, "", apperrors.NewFieldError("assignedToId", "Assignee must be a lecturer or registrar of your college")
		}
		if u.Role == models.RoleLecturer {
			return u, models.StatusAssigned, nil
		}
		return u, models.StatusPending, nil
	}

	registrar, err := tx.Users().FirstByRoleAndCollege(ctx, models.RoleRegistrar, student.College)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, models.StatusOpen, nil
		}
		return nil, "", fmt.Errorf("failed to route issue: %w", err)
	}
	return registrar, models.StatusPending, nil
}

// Create records a new issue raised by a student, stores its attachments and
// routes it to an assignee.
func (s *IssueService) Create(ctx context.Context, student *models.User, req *dto.CreateIssueRequest, uploads []*multipart.FileHeader) (*dto.IssueResponse, error) {
	if err := auth.Authorize(student, auth.ActionCreate, nil); err != nil {
		return nil, apperrors.NewForbiddenError("Only students can submit issues")
	}

	verr := apperrors.NewValidationError("Issue data is invalid")
	checkTitle(verr, req.Title)
	if blank(req.Description) {
		verr.Add("description", "Description is required")
	}
	category := models.CategoryTechnical
	if req.Category != "" {
		category = models.IssueCategory(req.Category)
		if !category.Valid() {
			verr.Add("category", fmt.Sprintf("%q is not a valid category", req.Category))
		}
	}
	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.IssuePriority(req.Priority)
		if !priority.Valid() {
			verr.Add("priority", fmt.Sprintf("%q is not a valid priority", req.Priority))
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Category:     category,
		Priority:     priority,
		StudentID:    student.ID,
		StudentName:  strings.TrimSpace(req.StudentName),
		College:      student.College,
		Department:   student.Department,
		CourseCode:   strings.TrimSpace(req.CourseCode),
		Semester:     strings.TrimSpace(req.Semester),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
	}
	if issue.StudentName == "" {
		issue.StudentName = student.DisplayName()
	}

	// Files go to disk before the transaction; they are removed again if it fails.
	stored, err := storeFiles(s.files, uploads, s.logger)
	if err != nil {
		return nil, err
	}

	var (
		batch       *Batch
		attachments []*models.Attachment
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		assignee, status, err := s.routeTo(ctx, tx, student, req.AssignedToID)
		if err != nil {
			return err
		}
		issue.Status = status
		if assignee != nil {
			issue.AssignedToID = idPtr(assignee.ID)
		}

		if err := tx.Issues().Create(ctx, issue); err != nil {
			return err
		}

		attachments, err = linkFiles(ctx, tx, issue.ID, student.ID, stored)
		if err != nil {
			return err
		}

		batch = s.notifier.Begin(tx)
		if err := batch.Log(ctx, student.ID, idPtr(issue.ID), fmt.Sprintf("Created issue #%d: %s", issue.ID, issue.Title)); err != nil {
			return err
		}
		if assignee != nil {
			msg := fmt.Sprintf("New issue '%s' was submitted by %s", issue.Title, issue.StudentName)
			if err := batch.NotifyAndEmail(ctx, assignee, idPtr(issue.ID), "New Issue Submitted", msg); err != nil {
				return err
			}
		}
		return batch.Email(ctx, student, "Issue Submitted",
			fmt.Sprintf("Your issue '%s' has been received. Current status: %s.", issue.Title, issue.Status))
	})
	if err != nil {
		removeFiles(s.files, stored, s.logger)
		return nil, err
	}

	batch.Publish()
	metrics.IssuesCreated.Inc()
	s.logger.Info().Int64("issueID", issue.ID).Int64("studentID", student.ID).Str("status", string(issue.Status)).Msg("Issue created")

	resp := dto.NewIssueResponse(issue)
	resp.Attachments = dto.NewAttachmentResponses(attachments)
	return &resp, nil
}

// Get returns an issue the user can see. Issues outside the user's scope are
// reported as not found.
func (s *IssueService) Get(ctx context.Context, user *models.User, id int64) (*dto.IssueResponse, error) {
	issue, err := visibleIssue(ctx, s.store, user, id)
	if err != nil {
		return nil, err
	}
	attachments, err := s.store.Attachments().ListByIssue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments: %w", err)
	}
	resp := dto.NewIssueResponse(issue)
	resp.Attachments = dto.NewAttachmentResponses(attachments)
	return &resp, nil
}

// IssueQuery is the parsed form of the list endpoint's query string.
type IssueQuery struct {
	Filter   dto.IssueFilter
	SortBy   string
	SortDesc bool
	Page     int
	Size     int
}

// List returns a page of the issues visible to user. The role scope is applied
// before any filter, so filters can only narrow it.
func (s *IssueService) List(ctx context.Context, user *models.User, q IssueQuery) (*dto.IssueListResponse, error) {
	params := repositories.IssueListParams{
		Scope:        auth.VisibilityScope(user),
		AssignedToID: q.Filter.AssignedToID,
		Search:       strings.TrimSpace(q.Filter.Search),
		SortBy:       q.SortBy,
		SortDesc:     q.SortDesc,
		Page:         q.Page,
		Size:         q.Size,
	}
	if q.Filter.Status != "" {
		st := models.IssueStatus(q.Filter.Status)
		params.Status = &st
	}
	if q.Filter.Category != "" {
		c := models.IssueCategory(q.Filter.Category)
		params.Category = &c
	}
	if q.Filter.Priority != "" {
		p := models.IssuePriority(q.Filter.Priority)
		params.Priority = &p
	}

	issues, total, err := s.store.Issues().List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	_, limit := helpers.CalculateOffsetLimit(q.Page, q.Size)
	return &dto.IssueListResponse{
		Issues:     dto.NewIssueResponses(issues),
		Pagination: helpers.NewPaginationInfo(total, q.Page, limit),
	}, nil
}

// applyPatch copies the non-nil request fields onto issue.
func applyPatch(issue *models.Issue, req *dto.UpdateIssueRequest) error {
	verr := apperrors.NewValidationError("Issue data is invalid")
	if req.Title != nil {
		checkTitle(verr, *req.Title)
		issue.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		if blank(*req.Description) {
			verr.Add("description", "Description cannot be empty")
		}
		issue.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		c := models.IssueCategory(*req.Category)
		if !c.Valid() {
			verr.Add("category", fmt.Sprintf("%q is not a valid category", *req.Category))
		}
		issue.Category = c
	}
	if req.Priority != nil {
		p := models.IssuePriority(*req.Priority)
		if !p.Valid() {
			verr.Add("priority", fmt.Sprintf("%q is not a valid priority", *req.Priority))
		}
		issue.Priority = p
	}
	if req.CourseCode != nil {
		issue.CourseCode = strings.TrimSpace(*req.CourseCode)
	}
	if req.Semester != nil {
		issue.Semester = strings.TrimSpace(*req.Semester)
	}
	if req.AcademicYear != nil {
		issue.AcademicYear = strings.TrimSpace(*req.AcademicYear)
	}
	return verr.OrNil()
}

// Update edits the descriptive fields of an issue. Status never changes here.
func (s *IssueService) Update(ctx context.Context, user *models.User, id int64, req *dto.UpdateIssueRequest) (*dto.IssueResponse, error) {
	var (
		batch   *Batch
		updated *models.Issue
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		issue, err := tx.Issues().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := auth.Authorize(user, auth.ActionUpdate, issue); err != nil {
			return err
		}
		if issue.Status == models.StatusResolved || issue.Status == models.StatusClosed {
			return apperrors.NewValidationError(fmt.Sprintf("A %s issue can no longer be edited", issue.Status))
		}
		if req.Version != nil && *req.Version != issue.Version {
			return apperrors.ErrIssueModified
		}

		if err := applyPatch(issue, req); err != nil {
			return err
		}
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return err
		}

		batch = s.notifier.Begin(tx)
		if err := batch.Log(ctx, user.ID, idPtr(issue.ID), fmt.Sprintf("Updated issue #%d", issue.ID)); err != nil {
			return err
		}

		if user.ID != issue.StudentID {
			student, err := tx.Users().GetByID(ctx, issue.StudentID)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Your issue '%s' was updated by %s", issue.Title, user.DisplayName())
			if err := batch.NotifyAndEmail(ctx, student, idPtr(issue.ID), "Issue Updated", msg); err != nil {
				return err
			}
		} else if issue.AssignedToID != nil {
			assignee, err := tx.Users().GetByID(ctx, *issue.AssignedToID)
			if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				return err
			}
			if assignee != nil {
				msg := fmt.Sprintf("Issue '%s' was updated by the student", issue.Title)
				if err := batch.NotifyAndEmail(ctx, assignee, idPtr(issue.ID), "Issue Updated", msg); err != nil {
					return err
				}
			}
		}

		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch.Publish()
	resp := dto.NewIssueResponse(updated)
	return &resp, nil
}

// Delete removes an issue with its comments and attachments. Stored files are
// deleted after commit.
func (s *IssueService) Delete(ctx context.Context, user *models.User, id int64) error {
	var files []*models.Attachment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		issue, err := tx.Issues().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := auth.Authorize(user, auth.ActionDelete, issue); err != nil {
			return err
		}

		files, err = tx.Attachments().ListByIssue(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Issues().Delete(ctx, id); err != nil {
			return err
		}
		// The issue is gone, so the entry cannot reference it.
		return tx.AuditLogs().Create(ctx, &models.AuditLog{
			UserID: user.ID,
			Action: fmt.Sprintf("Deleted issue #%d: %s", issue.ID, issue.Title),
		})
	})
	if err != nil {
		return err
	}

	for _, a := range files {
		if err := s.files.Delete(a.FilePath); err != nil {
			s.logger.Warn().Err(err).Int64("attachmentID", a.ID).Msg("Failed to remove attachment file")
		}
	}
	s.logger.Info().Int64("issueID", id).Int64("userID", user.ID).Msg("Issue deleted")
	return nil
}
