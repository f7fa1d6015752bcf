package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/errorutil"
)

// Transactor runs fn in one database transaction. Implemented by persistence.TxManager.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IssueService coordinates issue edits and the issue form read path.
type IssueService struct {
	issues     repository.IssueRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	directory  repository.DirectoryRepository
	resolver   *SessionResolver
	recorder   *HistoryRecorder
	renderer   *HistoryRenderer
	watches    *WatchService
	tx         Transactor
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo     repository.IssueRepository
	CommentRepo   repository.CommentRepository
	HistoryRepo   repository.IssueHistoryRepository
	WatchRepo     repository.WatchRepository
	UserRepo      repository.UserRepository
	DirectoryRepo repository.DirectoryRepository
	Tx            Transactor
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewIssueService constructs the service and its sub-components.
func NewIssueService(deps IssueDependencies) *IssueService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		directory:  deps.DirectoryRepo,
		resolver:   NewSessionResolver(deps.DirectoryRepo),
		recorder:   NewHistoryRecorder(deps.HistoryRepo),
		renderer:   NewHistoryRenderer(deps.HistoryRepo, deps.CommentRepo, deps.DirectoryRepo),
		watches:    NewWatchService(deps.WatchRepo),
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// EditIssueInput is one submission of the issue form. A nil field was not submitted.
type EditIssueInput struct {
	IssueID    *int64
	Assignee   *string
	Status     *domain.IssueStatus
	Priority   *domain.IssuePriority
	CenterID   *int64
	Title      *string
	Category   *string
	Module     *int64
	PSCID      *string
	VisitLabel *string
	Comment    *string
	Watching   *string
}

// EditResult reports whether the submission was accepted.
type EditResult struct {
	IsValidSubmission bool
	InvalidMessage    string
	IssueID           int64
}

// EditIssue validates the linkage, writes the issue with its history, comment
// and watch state in one transaction, then notifies watchers.
func (s *IssueService) EditIssue(ctx context.Context, actor auth.Identity, input EditIssueInput) (*EditResult, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}

	user := actor.CurrentUser()
	fields := domain.IssueFields{
		Assignee:      input.Assignee,
		Status:        input.Status,
		Priority:      input.Priority,
		CenterID:      input.CenterID,
		Title:         input.Title,
		Category:      input.Category,
		Module:        input.Module,
		LastUpdatedBy: user.ID,
	}

	var prior domain.SessionLinkage
	if input.IssueID != nil {
		link, err := s.issues.GetLinkage(ctx, *input.IssueID)
		if err != nil {
			return nil, s.notFoundOr(err, "issue", *input.IssueID)
		}
		prior = link
	}

	res, err := s.resolver.Resolve(ctx, ResolveInput{PSCID: input.PSCID, VisitLabel: input.VisitLabel, Prior: prior})
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		s.logger.Debug("issue submission rejected",
			zap.String("user_id", user.ID),
			zap.String("reason", res.InvalidMessage))
		return &EditResult{IsValidSubmission: false, InvalidMessage: res.InvalidMessage}, nil
	}
	fields.SessionID = res.SessionID
	fields.CandID = res.CandID

	created := input.IssueID == nil
	comment := ""
	if input.Comment != nil {
		comment = strings.TrimSpace(*input.Comment)
	}

	var issueID int64
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if created {
			now := s.now()
			fields.Reporter = &user.ID
			fields.DateCreated = &now
			id, err := s.issues.Create(ctx, fields)
			if err != nil {
				return err
			}
			issueID = id
		} else {
			issueID = *input.IssueID
			if err := s.issues.Update(ctx, issueID, fields); err != nil {
				return err
			}
		}

		if err := s.recorder.RecordFieldChanges(ctx, issueID, user.ID, fields.Changes()); err != nil {
			return err
		}

		if comment != "" {
			if err := s.comments.Create(ctx, &domain.Comment{IssueID: issueID, Text: comment, AddedBy: user.ID}); err != nil {
				return fmt.Errorf("add comment: %w", err)
			}
		}

		if err := s.watches.SetWatching(ctx, issueID, user.ID, WantsWatch(input.Watching)); err != nil {
			return fmt.Errorf("set watching: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && !created {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issueID": issueID})
		}
		s.logger.Error("issue edit failed",
			zap.Int64("issue_id", issueID),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil, fmt.Errorf("edit issue: %w", err)
	}

	s.publish(ctx, events.NewEvent(events.EventIssueEdited, issueID, user.ID, s.now(), events.IssueEditedPayload{
		Created:      created,
		Changes:      fields.Changes(),
		CommentAdded: comment != "",
	}))

	return &EditResult{IsValidSubmission: true, IssueID: issueID}, nil
}

// EditComment records a new revision of a comment. The comment row keeps its
// original text.
func (s *IssueService) EditComment(ctx context.Context, actor auth.Identity, commentID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.NewValidationError("comment must not be empty", nil)
	}
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return s.notFoundOr(err, "comment", commentID)
	}
	if err := s.recorder.RecordCommentEdit(ctx, commentID, text, actor.CurrentUser().ID); err != nil {
		return fmt.Errorf("record comment edit: %w", err)
	}
	return nil
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("issue_id", event.IssueID),
			zap.Error(err))
	}
}

func (s *IssueService) notFoundOr(err error, resource string, id int64) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}
