package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

func TestDirectoryRepository_FindSession(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(mock pgxmock.PgxPoolIface)
		wantSession int64
		wantCand    int64
		wantErr     error
	}{
		{
			name: "match",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT s.id, s.cand_id`).
					WithArgs("ABC123", "V2").
					WillReturnRows(pgxmock.NewRows([]string{"id", "cand_id"}).AddRow(int64(45), int64(300001)))
			},
			wantSession: 45,
			wantCand:    300001,
		},
		{
			name: "no such session",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT s.id, s.cand_id`).
					WithArgs("ABC123", "V2").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			sessionID, candID, err := NewDirectoryRepository(mock).FindSession(context.Background(), "ABC123", "V2")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSession, sessionID)
			assert.Equal(t, tt.wantCand, candID)
		})
	}
}

func TestDirectoryRepository_Lookups(t *testing.T) {
	mock := newMock(t)
	repo := NewDirectoryRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT label FROM modules`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"label"}).AddRow("Imaging Browser"))
	mock.ExpectQuery(`SELECT pscid FROM candidate`).
		WithArgs(int64(300001)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT cand_id FROM candidate`).
		WithArgs("ABC123").
		WillReturnRows(pgxmock.NewRows([]string{"cand_id"}).AddRow(int64(300001)))
	mock.ExpectQuery(`SELECT visit_label FROM session`).
		WithArgs(int64(44)).
		WillReturnRows(pgxmock.NewRows([]string{"visit_label"}).AddRow("V1"))

	label, err := repo.ModuleLabel(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Imaging Browser", label)

	_, err = repo.CandidatePSCID(ctx, 300001)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	candID, err := repo.CandidateIDByPSCID(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, int64(300001), candID)

	visit, err := repo.SessionVisitLabel(ctx, 44)
	require.NoError(t, err)
	assert.Equal(t, "V1", visit)
}

func TestDirectoryRepository_ListSites(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT center_id, name, study_site FROM psc ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"center_id", "name", "study_site"}).
			AddRow(int64(1), "Data Coordinating Center", false).
			AddRow(int64(2), "Montreal", true))

	sites, err := NewDirectoryRepository(mock).ListSites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Site{
		{CenterID: 1, Name: "Data Coordinating Center", IsStudySite: false},
		{CenterID: 2, Name: "Montreal", IsStudySite: true},
	}, sites)
}
