package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-allocation-api/internal/models"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

const examColumns = `id, institute_id, course_id, title, exam_type, kind, source_exam_id,
to_char(exam_date, 'YYYY-MM-DD') AS exam_date, start_time, end_time, duration_minutes, total_marks,
status, version, created_at, updated_at`

const assignmentColumns = `id, exam_id, student_id, system_name, attended, kind, section_number, is_rescheduled,
rescheduled_reason, to_char(original_date, 'YYYY-MM-DD') AS original_date, original_start_time, prior_attended, created_at`

const uniqueViolation = "23505"

// ExamRepository persists exams together with their system assignments.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func (r *ExamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns the institute's exams, optionally narrowed to a date, with assignments loaded.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	conditions := []string{"institute_id = $1"}
	args := []interface{}{filter.InstituteID}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("exam_date = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM exams WHERE %s ORDER BY exam_date ASC, start_time ASC, id ASC",
		examColumns, strings.Join(conditions, " AND "))

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	if err := r.attachAssignments(ctx, r.db, exams); err != nil {
		return nil, err
	}
	return exams, nil
}

// ListByInstituteDate returns every exam of an institute on one calendar day.
func (r *ExamRepository) ListByInstituteDate(ctx context.Context, instituteID, date string) ([]models.Exam, error) {
	return r.List(ctx, models.ExamFilter{InstituteID: instituteID, Date: date})
}

// FindByID loads an exam and its assignments. Missing exams return sql.ErrNoRows.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := "SELECT " + examColumns + " FROM exams WHERE id = $1"
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	exams := []models.Exam{exam}
	if err := r.attachAssignments(ctx, r.db, exams); err != nil {
		return nil, err
	}
	return &exams[0], nil
}

// FindCompanion returns the reschedule companion of a source exam, or nil when none exists.
func (r *ExamRepository) FindCompanion(ctx context.Context, sourceExamID string) (*models.Exam, error) {
	query := "SELECT " + examColumns + " FROM exams WHERE source_exam_id = $1"
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, sourceExamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find companion exam: %w", err)
	}
	exams := []models.Exam{exam}
	if err := r.attachAssignments(ctx, r.db, exams); err != nil {
		return nil, err
	}
	return &exams[0], nil
}

// Create inserts an exam with its assignments. A second companion for the same source
// violates the unique index and surfaces as ErrDuplicateRecord.
func (r *ExamRepository) Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	if exam == nil {
		return fmt.Errorf("exam payload is nil")
	}
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.Version == 0 {
		exam.Version = 1
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now

	target := r.exec(exec)
	const query = `
INSERT INTO exams (id, institute_id, course_id, title, exam_type, kind, source_exam_id, exam_date, start_time, end_time,
	duration_minutes, total_marks, status, version, created_at, updated_at)
VALUES (:id, :institute_id, :course_id, :title, :exam_type, :kind, :source_exam_id, :exam_date, :start_time, :end_time,
	:duration_minutes, :total_marks, :status, :version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, exam); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert exam: %w", appErrors.ErrDuplicateRecord)
		}
		return fmt.Errorf("insert exam: %w", err)
	}
	return r.insertAssignments(ctx, target, exam)
}

// Save updates the exam window and status and replaces its assignments, provided the stored
// version still equals exam.Version. On success the version is bumped in place.
func (r *ExamRepository) Save(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	if exam == nil {
		return fmt.Errorf("exam payload is nil")
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `UPDATE exams SET exam_date = $1, start_time = $2, end_time = $3, duration_minutes = $4, status = $5,
version = version + 1, updated_at = $6 WHERE id = $7 AND version = $8`
	result, err := target.ExecContext(ctx, query, exam.Date, exam.StartTime, exam.EndTime, exam.DurationMinutes,
		exam.Status, now, exam.ID, exam.Version)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exam rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrOptimisticLock
	}
	exam.Version++
	exam.UpdatedAt = now

	if _, err := target.ExecContext(ctx, `DELETE FROM exam_assignments WHERE exam_id = $1`, exam.ID); err != nil {
		return fmt.Errorf("clear exam assignments: %w", err)
	}
	return r.insertAssignments(ctx, target, exam)
}

// Delete removes an exam if its version is unchanged. Assignments cascade.
func (r *ExamRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string, version int) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM exams WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("exam rows affected: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrOptimisticLock
	}
	return nil
}

func (r *ExamRepository) insertAssignments(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error {
	const query = `
INSERT INTO exam_assignments (id, exam_id, position, student_id, system_name, attended, kind, section_number,
	is_rescheduled, rescheduled_reason, original_date, original_start_time, prior_attended, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	now := time.Now().UTC()
	for i := range exam.Assignments {
		seat := &exam.Assignments[i]
		if seat.ID == "" {
			seat.ID = uuid.NewString()
		}
		if seat.Kind == "" {
			seat.Kind = models.AssignmentKindRegular
		}
		if seat.CreatedAt.IsZero() {
			seat.CreatedAt = now
		}
		seat.ExamID = exam.ID
		_, err := exec.ExecContext(ctx, query, seat.ID, seat.ExamID, i, seat.StudentID, seat.SystemName, seat.Attended,
			seat.Kind, seat.SectionNumber, seat.IsRescheduled, seat.RescheduledReason, seat.OriginalDate,
			seat.OriginalStartTime, seat.PriorAttended, seat.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert exam assignment for %s: %w", seat.StudentID, appErrors.ErrDuplicateRecord)
			}
			return fmt.Errorf("insert exam assignment: %w", err)
		}
	}
	return nil
}

func (r *ExamRepository) attachAssignments(ctx context.Context, q sqlx.QueryerContext, exams []models.Exam) error {
	if len(exams) == 0 {
		return nil
	}
	ids := make([]string, len(exams))
	index := make(map[string]int, len(exams))
	for i := range exams {
		ids[i] = exams[i].ID
		index[exams[i].ID] = i
		exams[i].Assignments = []models.SystemAssignment{}
	}

	query := "SELECT " + assignmentColumns + " FROM exam_assignments WHERE exam_id = ANY($1) ORDER BY exam_id ASC, position ASC"
	var seats []models.SystemAssignment
	if err := sqlx.SelectContext(ctx, q, &seats, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list exam assignments: %w", err)
	}
	for _, seat := range seats {
		if i, ok := index[seat.ExamID]; ok {
			exams[i].Assignments = append(exams[i].Assignments, seat)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
