package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

// HistoryRecorder appends audit entries for issue field changes and comment edits.
type HistoryRecorder struct {
	history repository.IssueHistoryRepository
}

// NewHistoryRecorder constructs recorder.
func NewHistoryRecorder(history repository.IssueHistoryRepository) *HistoryRecorder {
	return &HistoryRecorder{history: history}
}

// RecordFieldChanges writes one entry per change in input order. lastUpdatedBy
// and empty values are skipped.
func (r *HistoryRecorder) RecordFieldChanges(ctx context.Context, issueID int64, actorID string, changes []domain.FieldValue) error {
	for _, change := range changes {
		if change.Field == domain.FieldLastUpdatedBy || change.Value == "" {
			continue
		}
		entry := &domain.HistoryEntry{
			IssueID:      issueID,
			FieldChanged: change.Field,
			NewValue:     change.Value,
			AddedBy:      actorID,
		}
		if err := r.history.Create(ctx, entry); err != nil {
			return fmt.Errorf("record %s change: %w", change.Field, err)
		}
	}
	return nil
}

// RecordCommentEdit appends a comment edit entry.
func (r *HistoryRecorder) RecordCommentEdit(ctx context.Context, commentID int64, newValue, actorID string) error {
	return r.history.CreateCommentEdit(ctx, &domain.CommentEdit{
		CommentID: commentID,
		NewValue:  newValue,
		EditedBy:  actorID,
	})
}
