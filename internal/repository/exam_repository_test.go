package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-allocation-api/internal/models"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

var (
	examRowColumns = []string{"id", "institute_id", "course_id", "title", "exam_type", "kind", "source_exam_id", "exam_date",
		"start_time", "end_time", "duration_minutes", "total_marks", "status", "version", "created_at", "updated_at"}
	assignmentRowColumns = []string{"id", "exam_id", "student_id", "system_name", "attended", "kind", "section_number",
		"is_rescheduled", "rescheduled_reason", "original_date", "original_start_time", "prior_attended", "created_at"}
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExamRepositoryFindByIDLoadsAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM exams WHERE id = \$1`).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows(examRowColumns).
			AddRow("exam-1", "inst-1", "course-1", "Physics", "FINAL", "ORIGINAL", nil, "2024-03-11", "10:00", "11:00", 60, 100, "SCHEDULED", 3, now, now))
	mock.ExpectQuery(`FROM exam_assignments WHERE exam_id = ANY\(\$1\) ORDER BY exam_id ASC, position ASC`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assignmentRowColumns).
			AddRow("a1", "exam-1", "s1", "Sys-1", false, "REGULAR", 1, false, nil, nil, nil, nil, now).
			AddRow("a2", "exam-1", "s2", "Sys-2", false, "REGULAR", 1, true, "Power failure", nil, nil, true, now))

	exam, err := repo.FindByID(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExamKindOriginal, exam.Kind)
	assert.Equal(t, "2024-03-11", exam.Date)
	assert.Equal(t, 3, exam.Version)
	require.Len(t, exam.Assignments, 2)
	assert.Equal(t, "Sys-2", exam.Assignments[1].SystemName)
	assert.True(t, exam.Assignments[1].IsRescheduled)
	require.NotNil(t, exam.Assignments[1].PriorAttended)
	assert.True(t, *exam.Assignments[1].PriorAttended)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryFindCompanionMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(`FROM exams WHERE source_exam_id = \$1`).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows(examRowColumns))

	companion, err := repo.FindCompanion(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.Nil(t, companion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListByInstituteDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM exams WHERE institute_id = \$1 AND exam_date = \$2 ORDER BY`).
		WithArgs("inst-1", "2024-03-11").
		WillReturnRows(sqlmock.NewRows(examRowColumns).
			AddRow("exam-1", "inst-1", "course-1", "Physics", "FINAL", "ORIGINAL", nil, "2024-03-11", "10:00", "11:00", 60, 100, "SCHEDULED", 1, now, now).
			AddRow("exam-2", "inst-1", "course-1", "Physics (Rescheduled)", "FINAL", "RESCHEDULE_COMPANION", "exam-0", "2024-03-11", "14:00", "15:00", 60, 100, "SCHEDULED", 1, now, now))
	mock.ExpectQuery(`FROM exam_assignments`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assignmentRowColumns).
			AddRow("a1", "exam-2", "s9", "Sys-4", false, "RESCHEDULE_SLOT", nil, true, "Sick", "2024-03-08", "10:00", nil, now))

	exams, err := repo.ListByInstituteDate(context.Background(), "inst-1", "2024-03-11")
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Empty(t, exams[0].Assignments)
	require.Len(t, exams[1].Assignments, 1)
	require.NotNil(t, exams[1].SourceExamID)
	assert.Equal(t, "exam-0", *exams[1].SourceExamID)
	assert.Equal(t, models.AssignmentKindRescheduleSlot, exams[1].Assignments[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateDuplicateCompanion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec("INSERT INTO exams").WillReturnError(&pq.Error{Code: "23505"})

	source := "exam-1"
	err := repo.Create(context.Background(), nil, &models.Exam{
		InstituteID: "inst-1", Kind: models.ExamKindRescheduleCompanion, SourceExamID: &source,
	})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateInsertsAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec("INSERT INTO exams").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO exam_assignments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "s1", "Sys-1", false, sqlmock.AnyArg(), sqlmock.AnyArg(), true,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{
		InstituteID: "inst-1",
		Kind:        models.ExamKindRescheduleCompanion,
		Assignments: []models.SystemAssignment{{StudentID: "s1", SystemName: "Sys-1", Kind: models.AssignmentKindRescheduleSlot, IsRescheduled: true}},
	}
	require.NoError(t, repo.Create(context.Background(), nil, exam))
	assert.NotEmpty(t, exam.ID)
	assert.Equal(t, 1, exam.Version)
	assert.Equal(t, exam.ID, exam.Assignments[0].ExamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositorySaveBumpsVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(`(?s)UPDATE exams SET .+ WHERE id = \$7 AND version = \$8`).
		WithArgs("2024-03-11", "10:00", "11:00", 60, sqlmock.AnyArg(), sqlmock.AnyArg(), "exam-1", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM exam_assignments WHERE exam_id = \$1`).
		WithArgs("exam-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO exam_assignments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO exam_assignments").WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{
		ID: "exam-1", Date: "2024-03-11", StartTime: "10:00", EndTime: "11:00", DurationMinutes: 60,
		Status: models.ExamStatusScheduled, Version: 4,
		Assignments: []models.SystemAssignment{
			models.NewRegularAssignment("s1", "Sys-1", 1),
			models.NewRegularAssignment("s2", "Sys-2", 1),
		},
	}
	require.NoError(t, repo.Save(context.Background(), nil, exam))
	assert.Equal(t, 5, exam.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositorySaveStaleVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec("UPDATE exams SET").WillReturnResult(sqlmock.NewResult(0, 0))

	exam := &models.Exam{ID: "exam-1", Version: 2}
	err := repo.Save(context.Background(), nil, exam)
	assert.ErrorIs(t, err, appErrors.ErrOptimisticLock)
	assert.Equal(t, 2, exam.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec(`DELETE FROM exams WHERE id = \$1 AND version = \$2`).
		WithArgs("exam-2", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM exams`).
		WithArgs("exam-2", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), nil, "exam-2", 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), nil, "exam-2", 3), appErrors.ErrOptimisticLock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
