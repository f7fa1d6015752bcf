package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/observability"
)

var fastRetry = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond}

type recordingSender struct {
	mu       sync.Mutex
	sent     []string
	attempts map[string]int
	fail     map[string]bool
	// failFirst rejects the first n attempts for a recipient.
	failFirst map[string]int
}

func (s *recordingSender) Send(_ context.Context, to, subject, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts == nil {
		s.attempts = map[string]int{}
	}
	s.attempts[to]++
	if s.fail[to] || s.attempts[to] <= s.failFirst[to] {
		return errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, to+"|"+subject)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestNotificationWorker_DeliversAndIsolatesFailures(t *testing.T) {
	renderer, err := mail.NewRenderer()
	require.NoError(t, err)

	queue := mail.NewMemoryQueue(10)
	sender := &recordingSender{fail: map[string]bool{"bad@example.org": true}}
	metrics := observability.NewMetrics()
	w := NewNotificationWorker(queue, renderer, sender, metrics, zap.NewNop(), 2, fastRetry)

	ctx := context.Background()
	for _, to := range []string{"a@example.org", "bad@example.org", "b@example.org"} {
		require.NoError(t, queue.Enqueue(ctx, mail.Job{
			To:       to,
			Template: mail.TemplateIssueChange,
			Data:     map[string]string{"issueID": "7", "realname": "X", "url": "u"},
		}))
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	require.Eventually(t, func() bool {
		snap := metrics.Snapshot()
		return snap.NotificationsSent+snap.NotificationsFail == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, sender.count())
	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.NotificationsSent)
	assert.Equal(t, int64(1), snap.NotificationsFail)
	assert.Equal(t, 3, sender.attempts["bad@example.org"])
}

func TestNotificationWorker_RetriesTransientFailure(t *testing.T) {
	renderer, err := mail.NewRenderer()
	require.NoError(t, err)

	queue := mail.NewMemoryQueue(4)
	sender := &recordingSender{failFirst: map[string]int{"dev@example.org": 1}}
	metrics := observability.NewMetrics()
	w := NewNotificationWorker(queue, renderer, sender, metrics, zap.NewNop(), 1, fastRetry)

	require.NoError(t, queue.Enqueue(context.Background(), mail.Job{
		To:       "dev@example.org",
		Template: mail.TemplateIssueChange,
		Data:     map[string]string{"issueID": "7", "realname": "Dev One", "url": "u"},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"dev@example.org|Issue #7 has been updated"}, sender.sent)
	assert.Equal(t, 2, sender.attempts["dev@example.org"])
	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.NotificationsSent)
	assert.Zero(t, snap.NotificationsFail)
}

type flakyQueue struct {
	mu       sync.Mutex
	failures int
	job      *mail.Job
}

func (q *flakyQueue) Enqueue(context.Context, mail.Job) error { return nil }

func (q *flakyQueue) Dequeue(ctx context.Context) (*mail.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return nil, errors.New("connection refused")
	}
	if q.job == nil {
		q.mu.Unlock()
		<-ctx.Done()
		q.mu.Lock()
		return nil, ctx.Err()
	}
	job := q.job
	q.job = nil
	return job, nil
}

func TestNotificationWorker_RetriesDequeue(t *testing.T) {
	renderer, err := mail.NewRenderer()
	require.NoError(t, err)

	queue := &flakyQueue{failures: 2, job: &mail.Job{
		To:       "dev@example.org",
		Template: mail.TemplateIssueChange,
		Data:     map[string]string{"issueID": "9", "realname": "Dev One", "url": "u"},
	}}
	sender := &recordingSender{}
	w := NewNotificationWorker(queue, renderer, sender, observability.NewMetrics(), zap.NewNop(), 1, fastRetry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
