package services

import (
	"errors"
	"mime/multipart"
	"testing"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateIssueValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{Title: "Help", Description: "x"}, nil)
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")

	_, err = f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{Title: "  Help  ", Description: "x"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.svc.Issues.Create(f.ctx, f.lecturer, &dto.CreateIssueRequest{Title: "Valid title", Description: "x"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	assert.Empty(t, f.store.AllAuditLogs())
}

func TestCreateIssueDefaultsAndRouting(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{
		Title:       "Cannot access portal",
		Description: "Login fails",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTechnical, resp.Category)
	assert.Equal(t, models.PriorityMedium, resp.Priority)
	assert.Equal(t, "COCIS", resp.College)
	assert.Equal(t, f.student.Department, resp.Department)
	assert.Equal(t, f.student.ID, resp.StudentID)
	assert.Equal(t, int64(1), resp.Version)
	assert.Len(t, f.emailsTo(f.student), 1)
	assert.Len(t, f.store.AllAuditLogs(), 1)
}

func TestCreateIssueWithoutRegistrarStaysOpen(t *testing.T) {
	f := newFixture(t)
	student := f.seed(t, "21/U/0099", models.RoleStudent, "CHUSS", "History")

	resp, err := f.svc.Issues.Create(f.ctx, student, &dto.CreateIssueRequest{Title: "Missing transcript", Description: "d"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, resp.Status)
	assert.Nil(t, resp.AssignedToID)
}

func TestCreateIssueWithExplicitAssignee(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{
		Title: "Wrong grade entered", Description: "d", AssignedToID: &f.lecturer.ID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, resp.Status)
	assert.Equal(t, f.lecturer.ID, *resp.AssignedToID)

	_, err = f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{
		Title: "Wrong grade entered", Description: "d", AssignedToID: &f.lecturerB.ID,
	}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCreateIssueStoresAttachments(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{Title: "Missing marks", Description: "d"},
		[]*multipart.FileHeader{fileHeader(t, "slip.txt", []byte("results slip"))})
	require.NoError(t, err)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, "slip.txt", resp.Attachments[0].FileName)
	assert.Equal(t, dto.AttachmentDownloadURL(resp.Attachments[0].ID), resp.Attachments[0].FileURL)

	got, err := f.svc.Issues.Get(f.ctx, f.student, resp.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attachments, 1)
}

func TestCreateIssueRemovesFilesOnFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn = func(op string) error {
		if op == "attachments.create" {
			return errors.New("disk quota")
		}
		return nil
	}

	_, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{Title: "Missing marks", Description: "d"},
		[]*multipart.FileHeader{fileHeader(t, "slip.txt", []byte("results slip"))})
	require.Error(t, err)

	f.store.FailOn = nil
	list, err := f.svc.Issues.List(f.ctx, f.admin, IssueQuery{})
	require.NoError(t, err)
	assert.Empty(t, list.Issues)
}

func TestIssueVisibility(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	_, err := f.svc.Issues.Get(f.ctx, f.otherStudent, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	_, err = f.svc.Issues.Get(f.ctx, f.registrarB, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	for _, u := range []*models.User{f.student, f.registrar, f.hod, f.admin} {
		_, err := f.svc.Issues.Get(f.ctx, u, issue.ID)
		assert.NoError(t, err, "role %s", u.Role)
	}

	_, err = f.svc.Issues.Get(f.ctx, f.lecturer, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)
	_, err = f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)
	_, err = f.svc.Issues.Get(f.ctx, f.lecturer, issue.ID)
	assert.NoError(t, err)
}

func TestListIssuesAppliesScopeBeforeFilters(t *testing.T) {
	f := newFixture(t)
	a := f.createIssue(t, "Missing Marks CS101")
	f.createIssue(t, "Missing Marks CS102")
	_, err := f.svc.Issues.Create(f.ctx, f.otherStudent, &dto.CreateIssueRequest{Title: "Appeal for CS103", Description: "d", Category: "appeals"}, nil)
	require.NoError(t, err)
	_, err = f.svc.Workflow.Assign(f.ctx, f.registrar, a.ID, f.lecturer.ID)
	require.NoError(t, err)

	count := func(u *models.User, q IssueQuery) int64 {
		resp, err := f.svc.Issues.List(f.ctx, u, q)
		require.NoError(t, err)
		return resp.Pagination.TotalItems
	}

	assert.EqualValues(t, 2, count(f.student, IssueQuery{}))
	assert.EqualValues(t, 1, count(f.otherStudent, IssueQuery{}))
	assert.EqualValues(t, 1, count(f.lecturer, IssueQuery{}))
	assert.EqualValues(t, 0, count(f.lecturer2, IssueQuery{}))
	assert.EqualValues(t, 3, count(f.registrar, IssueQuery{}))
	assert.EqualValues(t, 0, count(f.registrarB, IssueQuery{}))
	assert.EqualValues(t, 3, count(f.hod, IssueQuery{}))
	assert.EqualValues(t, 3, count(f.admin, IssueQuery{}))

	// a filter never widens the scope
	assert.EqualValues(t, 0, count(f.otherStudent, IssueQuery{Filter: dto.IssueFilter{Status: "assigned"}}))
	assert.EqualValues(t, 1, count(f.registrar, IssueQuery{Filter: dto.IssueFilter{Status: "assigned"}}))
	assert.EqualValues(t, 1, count(f.admin, IssueQuery{Filter: dto.IssueFilter{Category: "appeals"}}))
	assert.EqualValues(t, 2, count(f.admin, IssueQuery{Filter: dto.IssueFilter{Search: "missing marks"}}))

	page, err := f.svc.Issues.List(f.ctx, f.admin, IssueQuery{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Issues, 1)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestUpdateIssue(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)
	before := len(f.notificationsFor(f.lecturer))

	updated, err := f.svc.Issues.Update(f.ctx, f.student, issue.ID, &dto.UpdateIssueRequest{
		Title:    strPtr("Missing Marks CS101 coursework"),
		Priority: strPtr("critical"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Missing Marks CS101 coursework", updated.Title)
	assert.Equal(t, models.PriorityCritical, updated.Priority)
	assert.Equal(t, models.StatusAssigned, updated.Status)
	assert.Equal(t, f.student.ID, updated.StudentID)
	assert.Len(t, f.notificationsFor(f.lecturer), before+1)

	studentBefore := len(f.notificationsFor(f.student))
	_, err = f.svc.Issues.Update(f.ctx, f.lecturer, issue.ID, &dto.UpdateIssueRequest{CourseCode: strPtr("CS101A")})
	require.NoError(t, err)
	assert.Len(t, f.notificationsFor(f.student), studentBefore+1)
}

func TestUpdateIssueRules(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	_, err := f.svc.Issues.Update(f.ctx, f.otherStudent, issue.ID, &dto.UpdateIssueRequest{Title: strPtr("Hijacked title")})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.Issues.Update(f.ctx, f.registrarB, issue.ID, &dto.UpdateIssueRequest{Title: strPtr("Foreign edit")})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.Issues.Update(f.ctx, f.student, issue.ID, &dto.UpdateIssueRequest{Title: strPtr("abc")})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	current, err := f.svc.Issues.Get(f.ctx, f.student, issue.ID)
	require.NoError(t, err)
	stale := current.Version + 1
	_, err = f.svc.Issues.Update(f.ctx, f.student, issue.ID, &dto.UpdateIssueRequest{Title: strPtr("New valid title"), Version: &stale})
	assert.ErrorIs(t, err, apperrors.ErrIssueModified)

	_, err = f.svc.Issues.Update(f.ctx, f.student, 9999, &dto.UpdateIssueRequest{Title: strPtr("New valid title")})
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	_, err = f.svc.Workflow.Resolve(f.ctx, f.registrar, issue.ID, "Done")
	require.NoError(t, err)
	_, err = f.svc.Issues.Update(f.ctx, f.student, issue.ID, &dto.UpdateIssueRequest{Title: strPtr("After resolution")})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestDeleteIssue(t *testing.T) {
	f := newFixture(t)
	issue, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{Title: "Missing marks", Description: "d"},
		[]*multipart.FileHeader{fileHeader(t, "slip.txt", []byte("results slip"))})
	require.NoError(t, err)
	stored, err := f.store.Attachments().GetByID(f.ctx, issue.Attachments[0].ID)
	require.NoError(t, err)
	assert.FileExists(t, f.files.FullPath(stored.FilePath))

	assert.ErrorIs(t, f.svc.Issues.Delete(f.ctx, f.student, issue.ID), apperrors.ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.Issues.Delete(f.ctx, f.registrarB, issue.ID), apperrors.ErrPermissionDenied)

	require.NoError(t, f.svc.Issues.Delete(f.ctx, f.registrar, issue.ID))
	_, err = f.svc.Issues.Get(f.ctx, f.admin, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)
	assert.NoFileExists(t, f.files.FullPath(stored.FilePath))

	assert.ErrorIs(t, f.svc.Issues.Delete(f.ctx, f.admin, issue.ID), apperrors.ErrIssueNotFound)
}

func TestHODScopeStaysInsideCollege(t *testing.T) {
	f := newFixture(t)
	cedatStudent := f.seed(t, "21/U/0300", models.RoleStudent, "CEDAT", "Civil")
	cedatHOD := f.seed(t, "hod@cedat.mak.ac.ug", models.RoleHOD, "CEDAT", "Computer Science")

	// The department always comes from the student's account.
	resp, err := f.svc.Issues.Create(f.ctx, cedatStudent, &dto.CreateIssueRequest{
		Title:       "Missing exam number",
		Description: "Not on the list",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Civil", resp.Department)

	own := f.createIssue(t, "Missing Marks CS101")

	_, err = f.svc.Issues.Get(f.ctx, f.hod, resp.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)
	_, err = f.svc.Issues.Get(f.ctx, cedatHOD, own.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	list, err := f.svc.Issues.List(f.ctx, cedatHOD, IssueQuery{})
	require.NoError(t, err)
	assert.Empty(t, list.Issues)

	_, err = f.svc.Comments.Create(f.ctx, cedatHOD, own.ID, "Looking into it")
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)
}
