package scheduling

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrImmutableExam is returned when a mutation targets a completed exam.
	ErrImmutableExam = errors.New("exam is completed and cannot be modified")
	// ErrNoCompanion is returned when an edit or undo finds no reschedule companion for the exam.
	ErrNoCompanion = errors.New("exam has no rescheduled students")
)

// InputError reports malformed or missing request data.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CapacityError reports fewer available systems than students to seat.
type CapacityError struct {
	Need int
	Have int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: need %d systems, have %d", e.Need, e.Have)
}

// UnassignedStudentsError lists students left without a system.
type UnassignedStudentsError struct {
	StudentIDs []string
}

func (e *UnassignedStudentsError) Error() string {
	return fmt.Sprintf("students without a system: %s", strings.Join(e.StudentIDs, ", "))
}

// DuplicateSystemError reports a system given to more than one active assignment.
type DuplicateSystemError struct {
	SystemName string
	StudentIDs []string
}

func (e *DuplicateSystemError) Error() string {
	return fmt.Sprintf("system %s is assigned to more than one student", e.SystemName)
}

// DuplicateStudentError reports a student listed twice for one exam.
type DuplicateStudentError struct {
	StudentID string
}

func (e *DuplicateStudentError) Error() string {
	return fmt.Sprintf("student %s is listed more than once", e.StudentID)
}

// SystemBusyError reports a system reserved by another exam within the buffer-extended window.
type SystemBusyError struct {
	SystemName string
}

func (e *SystemBusyError) Error() string {
	return fmt.Sprintf("system %s is not available in the requested window", e.SystemName)
}

// UnknownSystemError reports a system name missing from the institute inventory.
type UnknownSystemError struct {
	SystemName string
}

func (e *UnknownSystemError) Error() string {
	return fmt.Sprintf("system %s does not belong to the institute", e.SystemName)
}

// AlreadyRescheduledError reports a student that must be restored before moving again.
type AlreadyRescheduledError struct {
	StudentID string
}

func (e *AlreadyRescheduledError) Error() string {
	return fmt.Sprintf("student %s is already rescheduled; undo the reschedule first", e.StudentID)
}

// NotInRosterError reports a student with no assignment in the source exam.
type NotInRosterError struct {
	StudentID string
}

func (e *NotInRosterError) Error() string {
	return fmt.Sprintf("student %s has no assignment in this exam", e.StudentID)
}

// RescheduledStudentError reports an edit that touches a student currently sitting the companion exam.
type RescheduledStudentError struct {
	StudentID string
}

func (e *RescheduledStudentError) Error() string {
	return fmt.Sprintf("student %s is rescheduled; undo the reschedule before editing the seat", e.StudentID)
}
