package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// UserRepository defines read access to the users directory.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	ListAssignees(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	db persistence.DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db persistence.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	const query = `
        SELECT u.user_id, u.real_name, u.email, u.center_id, COALESCE(p.name, '')
        FROM users u
        LEFT JOIN psc p ON p.center_id = u.center_id
        WHERE u.user_id=$1`

	var user domain.User
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.RealName,
		&user.Email,
		&user.CenterID,
		&user.SiteName,
	); err != nil {
		return nil, mapError(err, "user", userID)
	}
	return &user, nil
}

func (r *userRepository) ListAssignees(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT user_id, real_name FROM users ORDER BY real_name, user_id`
	rows, err := persistence.QuerierFromCtx(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.RealName); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
