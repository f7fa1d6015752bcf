package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/observability"
)

// RetryPolicy controls exponential retries of queue reads and deliveries.
// Zero values fall back to 3 retries starting at 500ms.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
}

const retryMaxElapsed = time.Minute

// NotificationWorker drains the mail queue with a fixed number of consumers.
type NotificationWorker struct {
	queue    mail.Queue
	renderer *mail.Renderer
	sender   mail.Sender
	metrics  *observability.Metrics
	logger   *zap.Logger
	workers  int
	retry    RetryPolicy
}

// NewNotificationWorker builds a worker pool.
func NewNotificationWorker(queue mail.Queue, renderer *mail.Renderer, sender mail.Sender, metrics *observability.Metrics, logger *zap.Logger, workers int, retry RetryPolicy) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 500 * time.Millisecond
	}
	return &NotificationWorker{
		queue:    queue,
		renderer: renderer,
		sender:   sender,
		metrics:  metrics,
		logger:   logger,
		workers:  workers,
		retry:    retry,
	}
}

// Run blocks until ctx is cancelled. A delivery that still fails after its
// retries is logged and dropped.
func (w *NotificationWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		id := i
		g.Go(func() error {
			return w.consume(ctx, id)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newBackOff returns a fresh policy; BackOff values are stateful.
func (w *NotificationWorker) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retry.InitialInterval
	bo.MaxElapsedTime = retryMaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(bo, w.retry.MaxRetries), ctx)
}

func (w *NotificationWorker) consume(ctx context.Context, id int) error {
	logger := w.logger.With(zap.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return nil
		}
		job, err := backoff.RetryNotifyWithData(func() (*mail.Job, error) {
			job, err := w.queue.Dequeue(ctx)
			if err != nil && ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return job, err
		}, w.newBackOff(ctx), func(err error, wait time.Duration) {
			logger.Warn("dequeue failed, retrying", zap.Duration("wait", wait), zap.Error(err))
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("dequeue keeps failing", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		w.deliver(ctx, logger, *job)
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, logger *zap.Logger, job mail.Job) {
	subject, body, err := w.renderer.Render(job)
	if err != nil {
		w.metrics.RecordNotification(false)
		logger.Error("render notification", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	err = backoff.RetryNotify(func() error {
		return w.sender.Send(ctx, job.To, subject, body)
	}, w.newBackOff(ctx), func(err error, wait time.Duration) {
		logger.Debug("notification delivery failed, retrying",
			zap.String("job_id", job.ID),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		w.metrics.RecordNotification(false)
		logger.Warn("notification delivery failed",
			zap.String("job_id", job.ID),
			zap.String("to", job.To),
			zap.Error(err))
		return
	}
	w.metrics.RecordNotification(true)
	logger.Debug("notification delivered", zap.String("job_id", job.ID), zap.String("to", job.To))
}
