package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/mail"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

// NotificationService fans issue edits out to watchers as queued emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	watches    repository.WatchRepository
	queue      mail.Queue
	metrics    *observability.Metrics
	logger     *zap.Logger
	baseURL    string
	timeout    time.Duration
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	WatchRepo  repository.WatchRepository
	Queue      mail.Queue
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	BaseURL    string

	// FanoutTimeout bounds queuing after an edit; defaults to 5s.
	FanoutTimeout time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	timeout := deps.FanoutTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		watches:    deps.WatchRepo,
		queue:      deps.Queue,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		baseURL:    deps.BaseURL,
		timeout:    timeout,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIssueEdited, n.handleIssueEdited)
}

// handleIssueEdited runs detached from the request context, bounded by the
// fan-out timeout.
func (n *NotificationService) handleIssueEdited(ctx context.Context, event events.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	_, err := n.NotifyWatchers(ctx, event.IssueID, event.ActorID)
	return err
}

// IssueURL is the deep link sent to watchers.
func (n *NotificationService) IssueURL(issueID int64) string {
	return fmt.Sprintf("%s/issue_tracker/ajax/EditIssue?action=getData&issueID=%d", n.baseURL, issueID)
}

// NotifyWatchers queues one issue_change email per watcher other than the
// editor and returns how many were queued. A recipient that cannot be queued
// is logged and skipped.
func (n *NotificationService) NotifyWatchers(ctx context.Context, issueID int64, editorID string) (int, error) {
	watchers, err := n.watches.ListWatchers(ctx, issueID, editorID)
	if err != nil {
		return 0, fmt.Errorf("list watchers: %w", err)
	}

	url := n.IssueURL(issueID)
	queued := 0
	for _, w := range watchers {
		if w.Email == "" {
			n.logger.Warn("watcher has no email address",
				zap.Int64("issue_id", issueID),
				zap.String("user_id", w.UserID))
			continue
		}
		job := mail.Job{
			ID:       uuid.NewString(),
			To:       w.Email,
			Template: mail.TemplateIssueChange,
			Data: map[string]string{
				"realname": w.RealName,
				"url":      url,
				"issueID":  strconv.FormatInt(issueID, 10),
			},
		}
		if err := n.queue.Enqueue(ctx, job); err != nil {
			n.metrics.RecordNotification(false)
			n.logger.Warn("queue notification failed",
				zap.Int64("issue_id", issueID),
				zap.String("user_id", w.UserID),
				zap.Error(err))
			continue
		}
		queued++
	}

	n.logger.Debug("watchers notified",
		zap.Int64("issue_id", issueID),
		zap.Int("watchers", len(watchers)),
		zap.Int("queued", queued))
	return queued, nil
}
