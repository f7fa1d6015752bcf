package repository

import (
	"context"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// IssueHistoryRepository stores the append-only field and comment-edit audit trails.
type IssueHistoryRepository interface {
	Create(ctx context.Context, entry *domain.HistoryEntry) error
	ListByIssue(ctx context.Context, issueID int64) ([]domain.HistoryEntry, error)
	CreateCommentEdit(ctx context.Context, edit *domain.CommentEdit) error
}

type issueHistoryRepository struct {
	db persistence.DB
}

// NewIssueHistoryRepository builds repository.
func NewIssueHistoryRepository(db persistence.DB) IssueHistoryRepository {
	return &issueHistoryRepository{db: db}
}

func (r *issueHistoryRepository) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO issues_history (issue_id, field_changed, new_value, added_by)
        VALUES ($1,$2,$3,$4)
        RETURNING id, date_added`
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query,
		entry.IssueID,
		entry.FieldChanged,
		entry.NewValue,
		entry.AddedBy,
	).Scan(&entry.ID, &entry.DateAdded); err != nil {
		return mapError(err, "issue history for issue", entry.IssueID)
	}
	return nil
}

// ListByIssue returns entries ordered by (date_added, id).
func (r *issueHistoryRepository) ListByIssue(ctx context.Context, issueID int64) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, issue_id, field_changed, new_value, added_by, date_added
        FROM issues_history WHERE issue_id=$1 ORDER BY date_added ASC, id ASC`
	rows, err := persistence.QuerierFromCtx(ctx, r.db).Query(ctx, query, issueID)
	if err != nil {
		return nil, mapError(err, "issue history for issue", issueID)
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IssueID,
			&entry.FieldChanged,
			&entry.NewValue,
			&entry.AddedBy,
			&entry.DateAdded,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *issueHistoryRepository) CreateCommentEdit(ctx context.Context, edit *domain.CommentEdit) error {
	const query = `
        INSERT INTO issues_comments_history (issue_comment_id, new_value, edited_by)
        VALUES ($1,$2,$3)
        RETURNING id, date_added`
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query,
		edit.CommentID,
		edit.NewValue,
		edit.EditedBy,
	).Scan(&edit.ID, &edit.DateAdded); err != nil {
		return mapError(err, "comment edit for comment", edit.CommentID)
	}
	return nil
}
