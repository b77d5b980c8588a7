package models

import (
	"fmt"
	"time"
)

// ExamType distinguishes practice papers from final exams.
type ExamType string

const (
	ExamTypeDPP   ExamType = "DPP"
	ExamTypeFinal ExamType = "FINAL"
)

// ExamStatus captures the lifecycle of an exam sitting.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "SCHEDULED"
	ExamStatusActive    ExamStatus = "ACTIVE"
	ExamStatusCompleted ExamStatus = "COMPLETED"
	ExamStatusCancelled ExamStatus = "CANCELLED"
)

// ExamKind tags whether an exam is an original sitting or hosts rescheduled students of another exam.
type ExamKind string

const (
	ExamKindOriginal            ExamKind = "ORIGINAL"
	ExamKindRescheduleCompanion ExamKind = "RESCHEDULE_COMPANION"
)

// CompanionTitleSuffix is appended to the source title when a companion exam is created. Display only.
const CompanionTitleSuffix = " (Rescheduled)"

// Exam is the persisted aggregate of an exam and its embedded system assignments.
type Exam struct {
	ID              string     `db:"id" json:"id"`
	InstituteID     string     `db:"institute_id" json:"instituteId"`
	CourseID        string     `db:"course_id" json:"courseId"`
	Title           string     `db:"title" json:"title"`
	Type            ExamType   `db:"exam_type" json:"type"`
	Kind            ExamKind   `db:"kind" json:"kind"`
	SourceExamID    *string    `db:"source_exam_id" json:"sourceExamId,omitempty"`
	Date            string     `db:"exam_date" json:"date"`
	StartTime       string     `db:"start_time" json:"startTime"`
	EndTime         string     `db:"end_time" json:"endTime"`
	DurationMinutes int        `db:"duration_minutes" json:"durationMinutes"`
	TotalMarks      int        `db:"total_marks" json:"totalMarks"`
	Status          ExamStatus `db:"status" json:"status"`
	Version         int        `db:"version" json:"version"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`

	Assignments []SystemAssignment `db:"-" json:"systemAssignments"`
}

// ExamFilter narrows exam listings.
type ExamFilter struct {
	InstituteID string
	Date        string
}

// IsCompanion reports whether the exam exists to host rescheduled students.
func (e *Exam) IsCompanion() bool {
	return e != nil && e.Kind == ExamKindRescheduleCompanion
}

// IsCompleted reports whether the exam is frozen.
func (e *Exam) IsCompleted() bool {
	return e != nil && e.Status == ExamStatusCompleted
}

// Validate checks the structural invariants of the record.
func (e *Exam) Validate() error {
	if e == nil {
		return fmt.Errorf("exam is nil")
	}
	if e.InstituteID == "" {
		return fmt.Errorf("exam %s: institute id is required", e.ID)
	}
	switch e.Kind {
	case ExamKindOriginal:
		if e.SourceExamID != nil {
			return fmt.Errorf("exam %s: original exams cannot reference a source exam", e.ID)
		}
	case ExamKindRescheduleCompanion:
		if e.SourceExamID == nil || *e.SourceExamID == "" {
			return fmt.Errorf("exam %s: companion exams require a source exam", e.ID)
		}
	default:
		return fmt.Errorf("exam %s: unknown kind %q", e.ID, e.Kind)
	}
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("exam %s: duration must be positive", e.ID)
	}
	if _, err := ParseDate(e.Date); err != nil {
		return fmt.Errorf("exam %s: %w", e.ID, err)
	}
	if _, err := ParseClock(e.StartTime); err != nil {
		return fmt.Errorf("exam %s: %w", e.ID, err)
	}
	return nil
}

// Clone returns a deep copy so callers can compute mutations without touching the original.
func (e *Exam) Clone() *Exam {
	if e == nil {
		return nil
	}
	clone := *e
	if e.SourceExamID != nil {
		id := *e.SourceExamID
		clone.SourceExamID = &id
	}
	clone.Assignments = make([]SystemAssignment, len(e.Assignments))
	for i, a := range e.Assignments {
		clone.Assignments[i] = a.Clone()
	}
	return &clone
}

// FindAssignment returns the index of the student's assignment or -1.
func (e *Exam) FindAssignment(studentID string) int {
	if e == nil {
		return -1
	}
	for i := range e.Assignments {
		if e.Assignments[i].StudentID == studentID {
			return i
		}
	}
	return -1
}

// RescheduledStudentIDs lists students whose source assignment is marked rescheduled, in roster order.
func (e *Exam) RescheduledStudentIDs() []string {
	if e == nil {
		return nil
	}
	var ids []string
	for _, a := range e.Assignments {
		if a.Kind == AssignmentKindRegular && a.IsRescheduled {
			ids = append(ids, a.StudentID)
		}
	}
	return ids
}
