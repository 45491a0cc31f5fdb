package services

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) createIssue(t *testing.T, title string) *dto.IssueResponse {
	t.Helper()
	resp, err := f.svc.Issues.Create(f.ctx, f.student, &dto.CreateIssueRequest{
		Title:       title,
		Description: "My CS101 coursework mark is missing from the results",
		Category:    string(models.CategoryMissingMarks),
		CourseCode:  "CS101",
	}, nil)
	require.NoError(t, err)
	return resp
}

func TestAssignResolveScenario(t *testing.T) {
	f := newFixture(t)

	issue := f.createIssue(t, "Missing Marks CS101")
	assert.Equal(t, models.StatusPending, issue.Status)
	require.NotNil(t, issue.AssignedToID)
	assert.Equal(t, f.registrar.ID, *issue.AssignedToID)
	assert.Len(t, f.notificationsFor(f.registrar), 1)

	assigned, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, assigned.Status)
	assert.Equal(t, f.lecturer.ID, *assigned.AssignedToID)
	assert.Len(t, f.notificationsFor(f.lecturer), 1)
	assert.Len(t, f.notificationsFor(f.student), 1)

	resolved, err := f.svc.Workflow.Resolve(f.ctx, f.lecturer, issue.ID, "Recomputed, marks corrected")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNote)
	assert.Equal(t, "Recomputed, marks corrected", *resolved.ResolutionNote)
	assert.Equal(t, f.lecturer.ID, *resolved.ResolvedByID)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Len(t, f.notificationsFor(f.student), 2)

	notifications := len(f.store.AllNotifications())
	audits := len(f.store.AllAuditLogs())
	emails := len(f.store.AllOutbox())

	_, err = f.svc.Workflow.Resolve(f.ctx, f.lecturer, issue.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "already resolved")

	assert.Len(t, f.store.AllNotifications(), notifications)
	assert.Len(t, f.store.AllAuditLogs(), audits)
	assert.Len(t, f.store.AllOutbox(), emails)

	// student and lecturer both got their emails queued
	assert.NotEmpty(t, f.emailsTo(f.student))
	assert.NotEmpty(t, f.emailsTo(f.lecturer))
	// every committed notification was pushed
	assert.Equal(t, notifications, f.pub.count())
}

func TestResolveByNonAssigneeIsForbidden(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	_, err = f.svc.Workflow.Resolve(f.ctx, f.lecturer2, issue.ID, "not mine")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	got, err := f.svc.Issues.Get(f.ctx, f.admin, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, got.Status)
	assert.Nil(t, got.ResolutionNote)
}

func TestResolveRequiresNote(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	_, err = f.svc.Workflow.Resolve(f.ctx, f.lecturer, issue.ID, "   ")
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "resolution_note")
}

func TestLecturerCannotResolvePendingIssue(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	// Not assigned to the lecturer yet, so the policy denies it first.
	_, err := f.svc.Workflow.Resolve(f.ctx, f.lecturer, issue.ID, "done")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestRegistrarResolveNotifiesLecturer(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	_, err = f.svc.Workflow.Resolve(f.ctx, f.registrar, issue.ID, "Handled by the registry")
	require.NoError(t, err)
	assert.Len(t, f.notificationsFor(f.lecturer), 2)
}

func TestAssignValidation(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	tests := []struct {
		name    string
		actor   *models.User
		target  int64
		wantErr error
	}{
		{"student cannot assign", f.student, f.lecturer.ID, apperrors.ErrPermissionDenied},
		{"lecturer cannot assign", f.lecturer, f.lecturer2.ID, apperrors.ErrPermissionDenied},
		{"registrar of another college", f.registrarB, f.lecturerB.ID, apperrors.ErrPermissionDenied},
		{"missing lecturer id", f.registrar, 0, apperrors.ErrValidationFailed},
		{"lecturer from another college", f.registrar, f.lecturerB.ID, apperrors.ErrLecturerNotFound},
		{"target is not a lecturer", f.registrar, f.otherStudent.ID, apperrors.ErrLecturerNotFound},
		{"unknown user", f.registrar, 9999, apperrors.ErrLecturerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Workflow.Assign(f.ctx, tt.actor, issue.ID, tt.target)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, 9999, f.lecturer.ID)
	assert.ErrorIs(t, err, apperrors.ErrIssueNotFound)

	got, err := f.svc.Issues.Get(f.ctx, f.admin, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestAssignResolvedIssueFails(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Resolve(f.ctx, f.registrar, issue.ID, "Sorted at the registry")
	require.NoError(t, err)

	_, err = f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestReassignNotifiesPreviousLecturer(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	resp, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer2.ID)
	require.NoError(t, err)
	assert.Equal(t, f.lecturer2.ID, *resp.AssignedToID)
	assert.Len(t, f.notificationsFor(f.lecturer), 2)
	assert.Len(t, f.notificationsFor(f.lecturer2), 1)
}

func TestStartProgressAndClose(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")

	_, err := f.svc.Workflow.StartProgress(f.ctx, f.lecturer, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)

	started, err := f.svc.Workflow.StartProgress(f.ctx, f.lecturer, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)

	_, err = f.svc.Workflow.StartProgress(f.ctx, f.lecturer, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.svc.Workflow.Close(f.ctx, f.registrar, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.svc.Workflow.Resolve(f.ctx, f.lecturer, issue.ID, "Fixed")
	require.NoError(t, err)

	_, err = f.svc.Workflow.Close(f.ctx, f.lecturer, issue.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	closed, err := f.svc.Workflow.Close(f.ctx, f.registrar, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)

	_, err = f.svc.Workflow.Resolve(f.ctx, f.registrar, issue.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestTransitionRollsBackWhenOutboxFails(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	notifications := len(f.store.AllNotifications())
	published := f.pub.count()

	boom := errors.New("outbox down")
	f.store.FailOn = func(op string) error {
		if op == "outbox.enqueue" {
			return boom
		}
		return nil
	}

	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	assert.ErrorIs(t, err, boom)

	f.store.FailOn = nil
	got, err := f.svc.Issues.Get(f.ctx, f.admin, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, f.registrar.ID, *got.AssignedToID)
	assert.Len(t, f.store.AllNotifications(), notifications)
	assert.Equal(t, published, f.pub.count())
}

func TestConcurrentResolveHasOneWinner(t *testing.T) {
	f := newFixture(t)
	issue := f.createIssue(t, "Missing Marks CS101")
	_, err := f.svc.Workflow.Assign(f.ctx, f.registrar, issue.ID, f.lecturer.ID)
	require.NoError(t, err)
	studentNotes := len(f.notificationsFor(f.student))

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		errs      = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		actor := f.lecturer
		if i%2 == 1 {
			actor = f.registrar
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Workflow.Resolve(f.ctx, actor, issue.ID, "Marks corrected"); err != nil {
				errs <- err
				return
			}
			successes.Add(1)
		}()
	}
	wg.Wait()
	close(errs)

	assert.Equal(t, int32(1), successes.Load())
	for err := range errs {
		assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	}

	resolvedNotes := 0
	for _, n := range f.notificationsFor(f.student)[studentNotes:] {
		if strings.Contains(n.Message, "has been resolved") {
			resolvedNotes++
		}
	}
	assert.Equal(t, 1, resolvedNotes)

	resolvedAudits := 0
	for _, l := range f.store.AllAuditLogs() {
		if strings.Contains(l.Action, "resolved by") {
			resolvedAudits++
		}
	}
	assert.Equal(t, 1, resolvedAudits)
	assert.Len(t, f.store.AllNotifications(), f.pub.count())
}
