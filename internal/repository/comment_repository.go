package repository

import (
	"context"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// CommentRepository manages issue comment threads.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, commentID int64) (*domain.Comment, error)
	ListByIssue(ctx context.Context, issueID int64) ([]domain.Comment, error)
}

type commentRepository struct {
	db persistence.DB
}

// NewCommentRepository builds repository.
func NewCommentRepository(db persistence.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO issues_comments (issue_id, issue_comment, added_by)
        VALUES ($1,$2,$3)
        RETURNING issue_comment_id, date_added`
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query,
		comment.IssueID,
		comment.Text,
		comment.AddedBy,
	).Scan(&comment.ID, &comment.DateAdded); err != nil {
		return mapError(err, "comment for issue", comment.IssueID)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, commentID int64) (*domain.Comment, error) {
	const query = `
        SELECT issue_comment_id, issue_id, issue_comment, added_by, date_added
        FROM issues_comments WHERE issue_comment_id=$1`
	var c domain.Comment
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, commentID).Scan(
		&c.ID,
		&c.IssueID,
		&c.Text,
		&c.AddedBy,
		&c.DateAdded,
	); err != nil {
		return nil, mapError(err, "comment", commentID)
	}
	return &c, nil
}

// ListByIssue returns comments ordered by (date_added, issue_comment_id).
func (r *commentRepository) ListByIssue(ctx context.Context, issueID int64) ([]domain.Comment, error) {
	const query = `
        SELECT issue_comment_id, issue_id, issue_comment, added_by, date_added
        FROM issues_comments WHERE issue_id=$1 ORDER BY date_added ASC, issue_comment_id ASC`
	rows, err := persistence.QuerierFromCtx(ctx, r.db).Query(ctx, query, issueID)
	if err != nil {
		return nil, mapError(err, "comments for issue", issueID)
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Text, &c.AddedBy, &c.DateAdded); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
