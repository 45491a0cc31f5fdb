package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStudent(t *testing.T, s *Store) *models.User {
	t.Helper()
	u := &models.User{Username: "stud", Email: "stud@example.com", Role: models.RoleStudent, College: "COCIS", IsActive: true}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student := seedStudent(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		issue := &models.Issue{Title: "t", StudentID: student.ID, Status: models.StatusOpen, College: "COCIS"}
		require.NoError(t, tx.Issues().Create(ctx, issue))
		require.NoError(t, tx.Notifications().Create(ctx, &models.Notification{UserID: student.ID, Message: "m"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	issues, total, err := s.Issues().List(ctx, repositories.IssueListParams{Scope: models.IssueScope{All: true}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, issues)
	assert.Empty(t, s.AllNotifications())
}

func TestNestedWithTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student := seedStudent(t, s)

	err := s.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		return tx.WithTx(ctx, func(ctx context.Context, inner repositories.Store) error {
			return inner.AuditLogs().Create(ctx, &models.AuditLog{UserID: student.ID, Action: "x"})
		})
	})
	require.NoError(t, err)
	assert.Len(t, s.AllAuditLogs(), 1)
}

func TestIssueUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	student := seedStudent(t, s)

	issue := &models.Issue{Title: "t", StudentID: student.ID, Status: models.StatusOpen, College: "COCIS"}
	require.NoError(t, s.Issues().Create(ctx, issue))
	assert.Equal(t, int64(1), issue.Version)

	first, _ := s.Issues().GetByID(ctx, issue.ID)
	second, _ := s.Issues().GetByID(ctx, issue.ID)

	first.Title = "first"
	require.NoError(t, s.Issues().Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Title = "second"
	assert.ErrorIs(t, s.Issues().Update(ctx, second), apperrors.ErrIssueModified)

	missing := &models.Issue{ID: 999, Version: 1}
	assert.ErrorIs(t, s.Issues().Update(ctx, missing), apperrors.ErrIssueNotFound)
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStudent(t, s)

	err := s.Users().Create(ctx, &models.User{Username: "other", Email: "stud@example.com"})
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")
}

func TestOutboxClaimLeasesRows(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Outbox().Enqueue(ctx, &models.OutboxEmail{Recipient: "a@example.com", Subject: "s"}))
	}

	batch, err := s.Outbox().ClaimDue(ctx, now, 2, time.Minute)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	rest, err := s.Outbox().ClaimDue(ctx, now, 10, time.Minute)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	again, err := s.Outbox().ClaimDue(ctx, now.Add(2*time.Minute), 10, time.Minute)
	require.NoError(t, err)
	assert.Len(t, again, 3)

	require.NoError(t, s.Outbox().MarkSent(ctx, batch[0].ID, now))
	require.NoError(t, s.Outbox().MarkRetry(ctx, batch[1].ID, 8, "smtp down", nil))
	counts, err := s.Outbox().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.OutboxSent])
	assert.Equal(t, int64(1), counts[models.OutboxFailed])
	assert.Equal(t, int64(1), counts[models.OutboxPending])
}
