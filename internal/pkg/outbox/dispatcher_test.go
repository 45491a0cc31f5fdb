package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories/inmem"
	"github.com/aits/backend/internal/pkg/email"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []email.Message
	errFn func(msg email.Message) error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	if f.errFn != nil {
		if err := f.errFn(msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func setup(t *testing.T, n int, mailer email.Mailer) (*inmem.Store, *Dispatcher, *time.Time) {
	t.Helper()
	store := inmem.NewStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	for i := 0; i < n; i++ {
		require.NoError(t, store.Outbox().Enqueue(context.Background(), &models.OutboxEmail{
			Recipient: fmt.Sprintf("user%d@example.com", i),
			Subject:   "Issue Assigned",
			Body:      "body",
		}))
	}

	d := NewDispatcher(store.Outbox(), mailer, Config{BatchSize: 10, Concurrency: 3, MaxAttempts: 3,
		InitialBackoff: time.Minute, MaxBackoff: 10 * time.Minute}, zerolog.Nop())
	d.now = func() time.Time { return now }
	return store, d, &now
}

func TestDrainSendsEverything(t *testing.T) {
	mailer := &fakeMailer{}
	store, d, _ := setup(t, 5, mailer)

	res, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Claimed: 5, Sent: 5}, res)
	assert.Len(t, mailer.sent, 5)

	for _, e := range store.AllOutbox() {
		assert.Equal(t, models.OutboxSent, e.Status)
		assert.Equal(t, 1, e.Attempts)
	}

	res, err = d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Claimed)
}

func TestTransientFailureIsRetriedUntilMaxAttempts(t *testing.T) {
	mailer := &fakeMailer{errFn: func(email.Message) error { return errors.New("connection refused") }}
	store, d, now := setup(t, 1, mailer)
	ctx := context.Background()

	res, err := d.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	e := store.AllOutbox()[0]
	assert.Equal(t, models.OutboxPending, e.Status)
	assert.Equal(t, 1, e.Attempts)
	require.NotNil(t, e.LastError)
	assert.Contains(t, *e.LastError, "connection refused")
	assert.True(t, e.NextAttemptAt.After(*now))

	// not due yet
	res, err = d.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Claimed)

	for i := 0; i < 2; i++ {
		*now = now.Add(time.Hour)
		_, err = d.DrainOnce(ctx)
		require.NoError(t, err)
	}

	e = store.AllOutbox()[0]
	assert.Equal(t, models.OutboxFailed, e.Status)
	assert.Equal(t, 3, e.Attempts)
}

func TestPermanentFailureStopsImmediately(t *testing.T) {
	mailer := &fakeMailer{errFn: func(email.Message) error { return fmt.Errorf("%w: mailbox unknown", email.ErrPermanent) }}
	store, d, _ := setup(t, 1, mailer)

	res, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, models.OutboxFailed, store.AllOutbox()[0].Status)
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	d := NewDispatcher(nil, nil, Config{InitialBackoff: time.Minute, MaxBackoff: 10 * time.Minute}, zerolog.Nop())

	first := d.RetryDelay(1)
	assert.InDelta(t, float64(time.Minute), float64(first), float64(6*time.Second))

	third := d.RetryDelay(3)
	assert.InDelta(t, float64(4*time.Minute), float64(third), float64(25*time.Second))

	capped := d.RetryDelay(20)
	assert.LessOrEqual(t, capped, 11*time.Minute)
}

func TestRunStopsOnCancel(t *testing.T) {
	mailer := &fakeMailer{}
	_, d, _ := setup(t, 2, mailer)
	d.cfg.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		mailer.mu.Lock()
		defer mailer.mu.Unlock()
		return len(mailer.sent) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
