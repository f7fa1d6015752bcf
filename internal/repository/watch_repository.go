package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// WatchRepository manages the (user, issue) subscription set.
type WatchRepository interface {
	Watch(ctx context.Context, userID string, issueID int64) error
	Unwatch(ctx context.Context, userID string, issueID int64) error
	IsWatching(ctx context.Context, userID string, issueID int64) (bool, error)
	ListWatchers(ctx context.Context, issueID int64, excludeUserID string) ([]domain.Watcher, error)
}

type watchRepository struct {
	db persistence.DB
}

// NewWatchRepository builds repository.
func NewWatchRepository(db persistence.DB) WatchRepository {
	return &watchRepository{db: db}
}

func (r *watchRepository) Watch(ctx context.Context, userID string, issueID int64) error {
	const query = `
        INSERT INTO issues_watching (user_id, issue_id) VALUES ($1,$2)
        ON CONFLICT (user_id, issue_id) DO NOTHING`
	if _, err := persistence.QuerierFromCtx(ctx, r.db).Exec(ctx, query, userID, issueID); err != nil {
		return fmt.Errorf("watch issue %d for %s: %w", issueID, userID, err)
	}
	return nil
}

func (r *watchRepository) Unwatch(ctx context.Context, userID string, issueID int64) error {
	const query = `DELETE FROM issues_watching WHERE user_id=$1 AND issue_id=$2`
	if _, err := persistence.QuerierFromCtx(ctx, r.db).Exec(ctx, query, userID, issueID); err != nil {
		return fmt.Errorf("unwatch issue %d for %s: %w", issueID, userID, err)
	}
	return nil
}

func (r *watchRepository) IsWatching(ctx context.Context, userID string, issueID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM issues_watching WHERE user_id=$1 AND issue_id=$2)`
	var exists bool
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, userID, issueID).Scan(&exists); err != nil {
		return false, fmt.Errorf("watch state of issue %d for %s: %w", issueID, userID, err)
	}
	return exists, nil
}

func (r *watchRepository) ListWatchers(ctx context.Context, issueID int64, excludeUserID string) ([]domain.Watcher, error) {
	const query = `
        SELECT u.user_id, u.email, u.real_name
        FROM issues_watching w
        INNER JOIN users u ON u.user_id = w.user_id
        WHERE w.issue_id=$1 AND u.user_id<>$2
        ORDER BY u.user_id`
	rows, err := persistence.QuerierFromCtx(ctx, r.db).Query(ctx, query, issueID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list watchers of issue %d: %w", issueID, err)
	}
	defer rows.Close()

	var result []domain.Watcher
	for rows.Next() {
		var w domain.Watcher
		if err := rows.Scan(&w.UserID, &w.Email, &w.RealName); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
