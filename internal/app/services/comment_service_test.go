package services

import (
	"errors"
	"mime/multipart"
	"testing"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentsNotifyTheOtherParty(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	lecturerBefore := len(f.notificationsFor(f.lecturer))
	studentBefore := len(f.notificationsFor(f.student))

	c, err := f.svc.Comments.Create(f.ctx, f.student, issue.ID, "I have attached my results slip")
	require.NoError(t, err)
	assert.Equal(t, f.student.DisplayName(), c.AuthorName)
	assert.Len(t, f.notificationsFor(f.lecturer), lecturerBefore+1)
	assert.Len(t, f.notificationsFor(f.student), studentBefore)

	_, err = f.svc.Comments.Create(f.ctx, f.lecturer, issue.ID, "Thanks, checking")
	require.NoError(t, err)
	assert.Len(t, f.notificationsFor(f.student), studentBefore+1)

	list, err := f.svc.Comments.List(f.ctx, f.student, issue.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "I have attached my results slip", list[0].Text)
	assert.Equal(t, models.RoleLecturer, list[1].AuthorRole)
}

func TestCommentAccess(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	_, err := f.svc.Comments.Create(f.ctx, f.otherStudent, issue.ID, "hello")
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	_, err = f.svc.Comments.List(f.ctx, f.lecturer2, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	_, err = f.svc.Comments.Create(f.ctx, f.student, issue.ID, "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	// a registrar comment reaches the student
	_, err = f.svc.Comments.Create(f.ctx, f.registrar, issue.ID, "We are looking into it")
	require.NoError(t, err)
	assert.Len(t, f.notificationsFor(f.student), 1)
}

func TestAttachmentLifecycle(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	uploaded, err := f.svc.Attachments.Upload(f.ctx, f.student, issue.ID,
		[]*multipart.FileHeader{fileHeader(t, "slip.txt", []byte("results slip"))})
	require.NoError(t, err)
	require.Len(t, uploaded, 1)

	_, err = f.svc.Attachments.Upload(f.ctx, f.otherStudent, issue.ID,
		[]*multipart.FileHeader{fileHeader(t, "x.txt", []byte("x"))})
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	_, err = f.svc.Attachments.Upload(f.ctx, f.hod, issue.ID,
		[]*multipart.FileHeader{fileHeader(t, "x.txt", []byte("x"))})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.Attachments.Upload(f.ctx, f.student, issue.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	list, err := f.svc.Attachments.List(f.ctx, f.registrar, issue.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	a, path, err := f.svc.Attachments.Open(f.ctx, f.student, uploaded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "slip.txt", a.FileName)
	assert.FileExists(t, path)

	_, err = f.svc.Attachments.Get(f.ctx, f.otherStudent, uploaded[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)

	assert.ErrorIs(t, f.svc.Attachments.Delete(f.ctx, f.hod, uploaded[0].ID), apperrors.ErrPermissionDenied)
	require.NoError(t, f.svc.Attachments.Delete(f.ctx, f.student, uploaded[0].ID))
	assert.NoFileExists(t, path)

	_, err = f.svc.Attachments.Get(f.ctx, f.student, uploaded[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrAttachmentNotFound)
}

func TestNotificationsAreOwnedByRecipient(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	list, err := f.svc.Notifications.List(f.ctx, f.student, false, 1, 20)
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	assert.EqualValues(t, 1, list.UnreadCount)
	id := list.Notifications[0].ID

	assert.ErrorIs(t, f.svc.Notifications.MarkRead(f.ctx, f.lecturer, id), apperrors.ErrNotificationNotFound)
	require.NoError(t, f.svc.Notifications.MarkRead(f.ctx, f.student, id))

	unread, err := f.svc.Notifications.List(f.ctx, f.student, true, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, unread.Notifications)
	assert.Zero(t, unread.UnreadCount)

	n, err := f.svc.Notifications.MarkAllRead(f.ctx, f.registrar)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAuditLogAccess(t *testing.T) {
	f := newFixture(t)
	f.createIssue(t, "Missing Marks CS101")

	_, err := f.svc.Notifications.ListAuditLogs(f.ctx, f.student, AuditLogFilter{})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	_, err = f.svc.Notifications.ListAuditLogs(f.ctx, f.lecturer, AuditLogFilter{})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	own, err := f.svc.Notifications.ListAuditLogs(f.ctx, f.registrar, AuditLogFilter{})
	require.NoError(t, err)
	assert.Len(t, own.Logs, 1)

	foreign, err := f.svc.Notifications.ListAuditLogs(f.ctx, f.registrarB, AuditLogFilter{})
	require.NoError(t, err)
	assert.Empty(t, foreign.Logs)

	all, err := f.svc.Notifications.ListAuditLogs(f.ctx, f.admin, AuditLogFilter{UserID: &f.student.ID})
	require.NoError(t, err)
	assert.Len(t, all.Logs, 1)
}

func TestProfiles(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	sp, err := f.svc.Profile.StudentProfile(f.ctx, f.student)
	require.NoError(t, err)
	assert.Len(t, sp.Issues, 1)

	_, err = f.svc.Profile.StudentProfile(f.ctx, f.lecturer)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	ld, err := f.svc.Profile.LecturerDetails(f.ctx, f.lecturer)
	require.NoError(t, err)
	assert.Len(t, ld.AssignedIssues, 1)

	rp, err := f.svc.Profile.RegistrarProfile(f.ctx, f.registrar)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rp.OpenIssueCount)
	assert.EqualValues(t, 1, rp.StatusCounts["assigned"])
	assert.Len(t, rp.Lecturers, 2)

	lecturers, err := f.svc.Profile.ListLecturers(f.ctx, f.registrarB)
	require.NoError(t, err)
	require.Len(t, lecturers, 1)
	assert.Equal(t, f.lecturerB.ID, lecturers[0].ID)

	updated, err := f.svc.Profile.UpdateProfile(f.ctx, f.student, &dto.UpdateProfileRequest{
		FullName:    strPtr("Jane Q. Student"),
		YearOfStudy: strPtr("3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Q. Student", updated.FullName)
	assert.Equal(t, "3", *updated.YearOfStudy)
	assert.Equal(t, models.RoleStudent, updated.Role)

	_, err = f.svc.Profile.UpdateProfile(f.ctx, f.lecturer, &dto.UpdateProfileRequest{YearOfStudy: strPtr("3")})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestProfileUpdateCannotChangeAffiliation(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	_, err := f.svc.Profile.UpdateProfile(f.ctx, f.registrarB, &dto.UpdateProfileRequest{College: strPtr("COCIS")})
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "college")

	_, err = f.svc.Profile.UpdateProfile(f.ctx, f.hod, &dto.UpdateProfileRequest{Department: strPtr("Information Systems")})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "department")

	// Echoing the stored values is fine.
	_, err = f.svc.Profile.UpdateProfile(f.ctx, f.registrarB, &dto.UpdateProfileRequest{
		FirstName: strPtr("Grace"),
		College:   strPtr(" CEDAT "),
	})
	require.NoError(t, err)

	reloaded, err := f.store.Users().GetByID(f.ctx, f.registrarB.ID)
	require.NoError(t, err)
	assert.Equal(t, "CEDAT", reloaded.College)
	assert.False(t, auth.VisibilityScope(reloaded).Matches(&models.Issue{College: "COCIS"}))

	list, err := f.svc.Issues.List(f.ctx, reloaded, IssueQuery{})
	require.NoError(t, err)
	assert.Empty(t, list.Issues)
	_, err = f.svc.Workflow.Assign(f.ctx, reloaded, issue.ID, f.lecturer.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestSetAffiliation(t *testing.T) {
	f := newFixture(t)
	f.createIssue(t, "Missing Marks CS101")

	resp, err := f.svc.Profile.SetAffiliation(f.ctx, f.registrarB.ID, strPtr("COCIS"), nil)
	require.NoError(t, err)
	assert.Equal(t, "COCIS", resp.College)

	moved, err := f.store.Users().GetByID(f.ctx, f.registrarB.ID)
	require.NoError(t, err)
	list, err := f.svc.Issues.List(f.ctx, moved, IssueQuery{})
	require.NoError(t, err)
	assert.Len(t, list.Issues, 1)

	_, err = f.svc.Profile.SetAffiliation(f.ctx, f.hod.ID, nil, strPtr(" "))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	_, err = f.svc.Profile.SetAffiliation(f.ctx, 9999, strPtr("COCIS"), nil)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
