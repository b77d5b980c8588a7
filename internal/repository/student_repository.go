package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// StudentRepository reads the course rosters used to seat exams.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListEligible returns students of the institute enrolled in the course who are active and have
// paid the course royalty, ordered by roll number.
func (r *StudentRepository) ListEligible(ctx context.Context, instituteID, courseID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.institute_id, s.roll_number, s.full_name
FROM students s
JOIN course_enrollments ce ON ce.student_id = s.id
WHERE s.institute_id = $1 AND ce.course_id = $2 AND s.active = TRUE AND ce.royalty_paid = TRUE
ORDER BY s.roll_number ASC, s.id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, instituteID, courseID); err != nil {
		return nil, fmt.Errorf("list eligible students: %w", err)
	}
	return students, nil
}

// FindByIDs returns the students with the given identifiers, ordered by roll number.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	const query = `SELECT id, institute_id, roll_number, full_name FROM students WHERE id = ANY($1) ORDER BY roll_number ASC, id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	return students, nil
}
