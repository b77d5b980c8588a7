package service

import (
	"database/sql"
	"errors"

	"github.com/noah-isme/exam-allocation-api/internal/scheduling"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

// Reasons carried in error details so clients can branch without parsing messages.
const (
	ReasonUnassignedStudents = "UNASSIGNED_STUDENTS"
	ReasonDuplicateSystem    = "DUPLICATE_SYSTEM"
	ReasonDuplicateStudent   = "DUPLICATE_STUDENT"
	ReasonSystemBusy         = "SYSTEM_BUSY"
	ReasonUnknownSystem      = "UNKNOWN_SYSTEM"
	ReasonAlreadyRescheduled = "ALREADY_RESCHEDULED"
	ReasonNotInRoster        = "NOT_IN_ROSTER"
	ReasonRescheduledStudent = "RESCHEDULED_STUDENT"
	ReasonVersionMismatch    = "VERSION_MISMATCH"
	ReasonDuplicateRecord    = "DUPLICATE_RECORD"
)

// translateEngineError maps scheduling and store errors onto API errors. Anything unknown
// becomes an internal error wrapping the cause.
func translateEngineError(err error, fallback string) error {
	if err == nil {
		return nil
	}

	var (
		apiErr      *appErrors.Error
		inputErr    *scheduling.InputError
		hoursErr    *scheduling.HoursViolation
		capacity    *scheduling.CapacityError
		unassigned  *scheduling.UnassignedStudentsError
		dupSystem   *scheduling.DuplicateSystemError
		dupStudent  *scheduling.DuplicateStudentError
		busy        *scheduling.SystemBusyError
		unknown     *scheduling.UnknownSystemError
		already     *scheduling.AlreadyRescheduledError
		notInRoster *scheduling.NotInRosterError
		rescheduled *scheduling.RescheduledStudentError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &inputErr):
		return appErrors.WithDetails(appErrors.ErrValidation, inputErr.Error(), map[string]any{"field": inputErr.Field})
	case errors.As(err, &hoursErr):
		return appErrors.WithDetails(appErrors.ErrValidation, hoursErr.Error(), map[string]any{
			"reason":      string(hoursErr.Kind),
			"openingTime": hoursErr.Hours.OpeningTime,
			"closingTime": hoursErr.Hours.ClosingTime,
		})
	case errors.As(err, &capacity):
		return appErrors.WithDetails(appErrors.ErrCapacity, capacity.Error(), map[string]any{
			"need": capacity.Need,
			"have": capacity.Have,
		})
	case errors.As(err, &unassigned):
		return appErrors.WithDetails(appErrors.ErrValidation, unassigned.Error(), map[string]any{
			"reason":     ReasonUnassignedStudents,
			"studentIds": unassigned.StudentIDs,
		})
	case errors.As(err, &dupSystem):
		return appErrors.WithDetails(appErrors.ErrConflict, dupSystem.Error(), map[string]any{
			"reason":     ReasonDuplicateSystem,
			"systemName": dupSystem.SystemName,
			"studentIds": dupSystem.StudentIDs,
		})
	case errors.As(err, &dupStudent):
		return appErrors.WithDetails(appErrors.ErrValidation, dupStudent.Error(), map[string]any{
			"reason":    ReasonDuplicateStudent,
			"studentId": dupStudent.StudentID,
		})
	case errors.As(err, &busy):
		return appErrors.WithDetails(appErrors.ErrConflict, busy.Error(), map[string]any{
			"reason":     ReasonSystemBusy,
			"systemName": busy.SystemName,
		})
	case errors.As(err, &unknown):
		return appErrors.WithDetails(appErrors.ErrValidation, unknown.Error(), map[string]any{
			"reason":     ReasonUnknownSystem,
			"systemName": unknown.SystemName,
		})
	case errors.As(err, &already):
		return appErrors.WithDetails(appErrors.ErrConflict, already.Error(), map[string]any{
			"reason":    ReasonAlreadyRescheduled,
			"studentId": already.StudentID,
		})
	case errors.As(err, &notInRoster):
		return appErrors.WithDetails(appErrors.ErrValidation, notInRoster.Error(), map[string]any{
			"reason":    ReasonNotInRoster,
			"studentId": notInRoster.StudentID,
		})
	case errors.As(err, &rescheduled):
		return appErrors.WithDetails(appErrors.ErrValidation, rescheduled.Error(), map[string]any{
			"reason":    ReasonRescheduledStudent,
			"studentId": rescheduled.StudentID,
		})
	case errors.Is(err, scheduling.ErrImmutableExam):
		return appErrors.Clone(appErrors.ErrImmutable, "")
	case errors.Is(err, scheduling.ErrNoCompanion):
		return appErrors.Clone(appErrors.ErrNotFound, err.Error())
	case errors.Is(err, appErrors.ErrOptimisticLock):
		return appErrors.WithDetails(appErrors.ErrConflict, "exam was modified by another request; reload and retry", map[string]any{
			"reason": ReasonVersionMismatch,
		})
	case errors.Is(err, appErrors.ErrDuplicateRecord):
		return appErrors.WithDetails(appErrors.ErrConflict, "a concurrent request already created this record; retry", map[string]any{
			"reason": ReasonDuplicateRecord,
		})
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}
