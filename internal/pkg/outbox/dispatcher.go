// Package outbox drains the email_outbox table. Rows are claimed with a lease,
// sent concurrently and either marked sent or rescheduled with exponential
// backoff, so every queued email is delivered at least once.
package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/email"
	"github.com/aits/backend/internal/pkg/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config tunes the dispatcher.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	Concurrency    int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Lease          time.Duration
	SendTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
}

// Result summarises one drain pass.
type Result struct {
	Claimed int
	Sent    int
	Retried int
	Failed  int
}

// Dispatcher sends queued emails.
type Dispatcher struct {
	repo   repositories.IOutboxRepository
	mailer email.Mailer
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(repo repositories.IOutboxRepository, mailer email.Mailer, cfg Config, logger zerolog.Logger) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		repo:   repo,
		mailer: mailer,
		cfg:    cfg,
		logger: logger.With().Str("component", "outbox_dispatcher").Logger(),
		now:    time.Now,
	}
}

// Run drains the outbox every PollInterval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info().Dur("interval", d.cfg.PollInterval).Int("concurrency", d.cfg.Concurrency).Msg("Email dispatcher started")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			res, err := d.DrainOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					d.logger.Error().Err(err).Msg("Email dispatch pass failed")
				}
				break
			}
			// A full batch suggests more work is waiting.
			if res.Claimed < d.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Email dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DrainOnce claims one batch of due emails and attempts each of them.
func (d *Dispatcher) DrainOnce(ctx context.Context) (Result, error) {
	batch, err := d.repo.ClaimDue(ctx, d.now(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return Result{}, err
	}
	if len(batch) == 0 {
		return Result{}, nil
	}

	var sent, retried, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, msg := range batch {
		msg := msg
		g.Go(func() error {
			outcome, err := d.attempt(gctx, msg)
			switch outcome {
			case "sent":
				sent.Add(1)
			case "retry":
				retried.Add(1)
			case "failed":
				failed.Add(1)
			}
			metrics.EmailDeliveries.WithLabelValues(outcome).Inc()
			return err
		})
	}
	err = g.Wait()

	res := Result{Claimed: len(batch), Sent: int(sent.Load()), Retried: int(retried.Load()), Failed: int(failed.Load())}
	d.logger.Debug().Int("claimed", res.Claimed).Int("sent", res.Sent).Int("retried", res.Retried).Int("failed", res.Failed).Msg("Email dispatch pass complete")
	return res, err
}

// attempt sends one email. The returned error is reserved for bookkeeping
// failures; delivery failures are recorded on the row and logged.
func (d *Dispatcher) attempt(ctx context.Context, msg *models.OutboxEmail) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	sendErr := d.mailer.Send(sendCtx, email.Message{
		To:      msg.Recipient,
		ToName:  msg.RecipientName,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	cancel()

	// Bookkeeping must survive shutdown of the dispatch context.
	bookCtx := context.WithoutCancel(ctx)

	if sendErr == nil {
		if err := d.repo.MarkSent(bookCtx, msg.ID, d.now()); err != nil {
			d.logger.Error().Err(err).Int64("emailID", msg.ID).Msg("Failed to mark email sent")
			return "sent", err
		}
		return "sent", nil
	}

	attempts := msg.Attempts + 1
	logEvt := d.logger.Warn().Err(sendErr).Int64("emailID", msg.ID).Str("recipient", msg.Recipient).Int("attempts", attempts)

	var next *time.Time
	outcome := "failed"
	if !errors.Is(sendErr, email.ErrPermanent) && attempts < d.cfg.MaxAttempts {
		at := d.now().Add(d.RetryDelay(attempts))
		next = &at
		outcome = "retry"
		logEvt.Time("nextAttemptAt", at).Msg("Email delivery failed, will retry")
	} else {
		logEvt.Msg("Email delivery failed permanently")
	}

	if err := d.repo.MarkRetry(bookCtx, msg.ID, attempts, sendErr.Error(), next); err != nil {
		d.logger.Error().Err(err).Int64("emailID", msg.ID).Msg("Failed to record email attempt")
		return outcome, err
	}
	return outcome, nil
}

// RetryDelay is the wait before attempt number attempts+1: InitialBackoff
// doubled per attempt, jittered by 10% and capped at MaxBackoff.
func (d *Dispatcher) RetryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialBackoff
	b.MaxInterval = d.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.InitialInterval
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
