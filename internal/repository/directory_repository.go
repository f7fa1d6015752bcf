package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/persistence"
)

// DirectoryRepository reads the site, module, candidate and session directories.
// Key lookups return domain.ErrNotFound on a miss.
type DirectoryRepository interface {
	ListSites(ctx context.Context) ([]domain.Site, error)
	GetSite(ctx context.Context, centerID int64) (*domain.Site, error)
	ListModules(ctx context.Context) ([]domain.Module, error)
	ModuleLabel(ctx context.Context, moduleID int64) (string, error)
	CandidatePSCID(ctx context.Context, candID int64) (string, error)
	CandidateIDByPSCID(ctx context.Context, pscid string) (int64, error)
	SessionVisitLabel(ctx context.Context, sessionID int64) (string, error)
	FindSession(ctx context.Context, pscid, visitLabel string) (sessionID, candID int64, err error)
}

type directoryRepository struct {
	db persistence.DB
}

// NewDirectoryRepository builds repository.
func NewDirectoryRepository(db persistence.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) ListSites(ctx context.Context) ([]domain.Site, error) {
	const query = `SELECT center_id, name, study_site FROM psc ORDER BY name`
	rows, err := persistence.QuerierFromCtx(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var result []domain.Site
	for rows.Next() {
		var s domain.Site
		if err := rows.Scan(&s.CenterID, &s.Name, &s.IsStudySite); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *directoryRepository) GetSite(ctx context.Context, centerID int64) (*domain.Site, error) {
	const query = `SELECT center_id, name, study_site FROM psc WHERE center_id=$1`
	var s domain.Site
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, centerID).
		Scan(&s.CenterID, &s.Name, &s.IsStudySite); err != nil {
		return nil, mapError(err, "site", centerID)
	}
	return &s, nil
}

func (r *directoryRepository) ListModules(ctx context.Context) ([]domain.Module, error) {
	const query = `SELECT id, label FROM modules ORDER BY label`
	rows, err := persistence.QuerierFromCtx(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var result []domain.Module
	for rows.Next() {
		var m domain.Module
		if err := rows.Scan(&m.ID, &m.Label); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *directoryRepository) ModuleLabel(ctx context.Context, moduleID int64) (string, error) {
	const query = `SELECT label FROM modules WHERE id=$1`
	var label string
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, moduleID).Scan(&label); err != nil {
		return "", mapError(err, "module", moduleID)
	}
	return label, nil
}

func (r *directoryRepository) CandidatePSCID(ctx context.Context, candID int64) (string, error) {
	const query = `SELECT pscid FROM candidate WHERE cand_id=$1`
	var pscid string
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, candID).Scan(&pscid); err != nil {
		return "", mapError(err, "candidate", candID)
	}
	return pscid, nil
}

func (r *directoryRepository) CandidateIDByPSCID(ctx context.Context, pscid string) (int64, error) {
	const query = `SELECT cand_id FROM candidate WHERE pscid=$1`
	var candID int64
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, pscid).Scan(&candID); err != nil {
		return 0, mapError(err, "candidate", pscid)
	}
	return candID, nil
}

func (r *directoryRepository) SessionVisitLabel(ctx context.Context, sessionID int64) (string, error) {
	const query = `SELECT visit_label FROM session WHERE id=$1`
	var label string
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, sessionID).Scan(&label); err != nil {
		return "", mapError(err, "session", sessionID)
	}
	return label, nil
}

func (r *directoryRepository) FindSession(ctx context.Context, pscid, visitLabel string) (int64, int64, error) {
	const query = `
        SELECT s.id, s.cand_id
        FROM session s
        INNER JOIN candidate c ON c.cand_id = s.cand_id
        WHERE c.pscid=$1 AND s.visit_label=$2`
	var sessionID, candID int64
	if err := persistence.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, pscid, visitLabel).
		Scan(&sessionID, &candID); err != nil {
		return 0, 0, mapError(err, "session", pscid+"/"+visitLabel)
	}
	return sessionID, candID, nil
}
