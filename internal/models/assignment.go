package models

import "time"

// AssignmentKind separates normally sectioned seats from reschedule slots.
type AssignmentKind string

const (
	AssignmentKindRegular        AssignmentKind = "REGULAR"
	AssignmentKindRescheduleSlot AssignmentKind = "RESCHEDULE_SLOT"
)

// SystemAssignment pairs a student with a system for one exam window.
type SystemAssignment struct {
	ID                string         `db:"id" json:"id"`
	ExamID            string         `db:"exam_id" json:"examId"`
	StudentID         string         `db:"student_id" json:"studentId"`
	SystemName        string         `db:"system_name" json:"systemName"`
	Attended          bool           `db:"attended" json:"attended"`
	Kind              AssignmentKind `db:"kind" json:"kind"`
	SectionNumber     *int           `db:"section_number" json:"sectionNumber,omitempty"`
	IsRescheduled     bool           `db:"is_rescheduled" json:"isRescheduled"`
	RescheduledReason *string        `db:"rescheduled_reason" json:"rescheduledReason,omitempty"`
	OriginalDate      *string        `db:"original_date" json:"originalDate,omitempty"`
	OriginalStartTime *string        `db:"original_start_time" json:"originalStartTime,omitempty"`
	PriorAttended     *bool          `db:"prior_attended" json:"-"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
}

// NewRegularAssignment builds a sectioned seat. Section numbers below 1 are left unset.
func NewRegularAssignment(studentID, systemName string, section int) SystemAssignment {
	a := SystemAssignment{
		StudentID:  studentID,
		SystemName: systemName,
		Kind:       AssignmentKindRegular,
	}
	if section > 0 {
		a.SectionNumber = &section
	}
	return a
}

// Occupies reports whether the assignment holds its system during the exam window.
// A regular seat whose student was moved to a companion exam no longer does.
func (a SystemAssignment) Occupies() bool {
	if a.SystemName == "" {
		return false
	}
	return !(a.Kind == AssignmentKindRegular && a.IsRescheduled)
}

// Clone deep-copies pointer fields.
func (a SystemAssignment) Clone() SystemAssignment {
	clone := a
	if a.SectionNumber != nil {
		v := *a.SectionNumber
		clone.SectionNumber = &v
	}
	if a.RescheduledReason != nil {
		v := *a.RescheduledReason
		clone.RescheduledReason = &v
	}
	if a.OriginalDate != nil {
		v := *a.OriginalDate
		clone.OriginalDate = &v
	}
	if a.OriginalStartTime != nil {
		v := *a.OriginalStartTime
		clone.OriginalStartTime = &v
	}
	if a.PriorAttended != nil {
		v := *a.PriorAttended
		clone.PriorAttended = &v
	}
	return clone
}
