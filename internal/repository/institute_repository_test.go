package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

func TestInstituteRepositoryListSystems(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstituteRepository(db)

	mock.ExpectQuery(`FROM systems WHERE institute_id = \$1 ORDER BY sort_order ASC`).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "institute_id", "name", "status"}).
			AddRow("sys-1", "inst-1", "Sys-1", "AVAILABLE").
			AddRow("sys-2", "inst-1", "Sys-2", "MAINTENANCE"))

	systems, err := repo.ListSystems(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, systems, 2)
	assert.Equal(t, models.SystemStatusMaintenance, systems[1].Status)
	assert.False(t, systems[1].HardwareUp())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstituteRepositoryFindSettings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstituteRepository(db)

	columns := []string{"institute_id", "opening_time", "closing_time", "buffer_minutes", "working_days"}
	mock.ExpectQuery(`FROM institute_settings WHERE institute_id = \$1`).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("inst-1", "08:00", "20:00", 15, "1,2,3,4,5"))
	mock.ExpectQuery(`FROM institute_settings`).
		WithArgs("inst-2").
		WillReturnRows(sqlmock.NewRows(columns))

	settings, err := repo.FindSettings(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 15, settings.BufferMinutes)
	assert.Equal(t, "1,2,3,4,5", settings.WorkingDays)

	_, err = repo.FindSettings(context.Background(), "inst-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
