package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// IssueRepository encapsulates issue row persistence.
type IssueRepository interface {
	Create(ctx context.Context, fields domain.IssueFields) (int64, error)
	Update(ctx context.Context, issueID int64, fields domain.IssueFields) error
	GetByID(ctx context.Context, issueID int64) (*domain.Issue, error)
	GetLinkage(ctx context.Context, issueID int64) (domain.SessionLinkage, error)
}

type issueRepository struct {
	db persistence.DB
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(db persistence.DB) IssueRepository {
	return &issueRepository{db: db}
}

// issueColumns lists the set fields as column/value pairs in a stable order.
func issueColumns(f domain.IssueFields) ([]string, []any) {
	var cols []string
	var vals []any
	add := func(col string, v any) {
		cols = append(cols, col)
		vals = append(vals, v)
	}
	if f.Assignee != nil {
		add("assignee", *f.Assignee)
	}
	if f.Status != nil {
		add("status", string(*f.Status))
	}
	if f.Priority != nil {
		add("priority", string(*f.Priority))
	}
	if f.CenterID != nil {
		add("center_id", *f.CenterID)
	}
	if f.Title != nil {
		add("title", *f.Title)
	}
	if f.Category != nil {
		add("category", *f.Category)
	}
	if f.Module != nil {
		add("module", *f.Module)
	}
	if f.CandID != nil {
		add("cand_id", *f.CandID)
	}
	if f.SessionID != nil {
		add("session_id", *f.SessionID)
	}
	if f.LastUpdatedBy != "" {
		add("last_updated_by", f.LastUpdatedBy)
	}
	if f.Reporter != nil {
		add("reporter", *f.Reporter)
	}
	if f.DateCreated != nil {
		add("date_created", *f.DateCreated)
	}
	return cols, vals
}

func (r *issueRepository) Create(ctx context.Context, fields domain.IssueFields) (int64, error) {
	cols, vals := issueColumns(fields)
	query, args, err := psql.Insert("issues").
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING issue_id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build issue insert: %w", err)
	}

	var id int64
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert issue: %w", err)
	}
	return id, nil
}

func (r *issueRepository) Update(ctx context.Context, issueID int64, fields domain.IssueFields) error {
	cols, vals := issueColumns(fields)
	builder := psql.Update("issues")
	for i, col := range cols {
		builder = builder.Set(col, vals[i])
	}
	query, args, err := builder.
		Set("last_update", sq.Expr("NOW()")).
		Where(sq.Eq{"issue_id": issueID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build issue update: %w", err)
	}

	cmd, err := persistence.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "issue", issueID)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("issue %d: %w", issueID, domain.ErrNotFound)
	}
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, issueID int64) (*domain.Issue, error) {
	const query = `
        SELECT i.issue_id, i.title, i.status, i.priority, i.category, i.module, i.center_id,
               i.cand_id, i.session_id, i.assignee, i.reporter, i.last_updated_by,
               i.date_created, i.last_update, c.pscid, s.visit_label
        FROM issues i
        LEFT JOIN candidate c ON c.cand_id = i.cand_id
        LEFT JOIN session s ON s.id = i.session_id
        WHERE i.issue_id=$1`

	var issue domain.Issue
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, issueID).Scan(
		&issue.ID,
		&issue.Title,
		&issue.Status,
		&issue.Priority,
		&issue.Category,
		&issue.Module,
		&issue.CenterID,
		&issue.CandID,
		&issue.SessionID,
		&issue.Assignee,
		&issue.Reporter,
		&issue.LastUpdatedBy,
		&issue.DateCreated,
		&issue.LastUpdate,
		&issue.PSCID,
		&issue.VisitLabel,
	); err != nil {
		return nil, mapError(err, "issue", issueID)
	}
	return &issue, nil
}

// GetLinkage resolves the PSCID through the issue's candidate, falling back to
// the candidate owning its session.
func (r *issueRepository) GetLinkage(ctx context.Context, issueID int64) (domain.SessionLinkage, error) {
	const query = `
        SELECT i.cand_id, i.session_id, COALESCE(c.pscid, sc.pscid), s.visit_label
        FROM issues i
        LEFT JOIN session s ON s.id = i.session_id
        LEFT JOIN candidate c ON c.cand_id = i.cand_id
        LEFT JOIN candidate sc ON sc.cand_id = s.cand_id
        WHERE i.issue_id=$1`

	var link domain.SessionLinkage
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, issueID).Scan(
		&link.CandID,
		&link.SessionID,
		&link.PSCID,
		&link.VisitLabel,
	); err != nil {
		return domain.SessionLinkage{}, mapError(err, "issue", issueID)
	}
	return link, nil
}
