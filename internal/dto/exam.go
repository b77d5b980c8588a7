package dto

import "github.com/noah-isme/exam-allocation-api/internal/models"

// ExamListQuery filters the exam listing.
type ExamListQuery struct {
	InstituteID string `form:"instituteId" validate:"required"`
	Date        string `form:"date"`
}

// AvailabilityQuery asks which systems are free for a prospective exam window.
type AvailabilityQuery struct {
	InstituteID     string `validate:"required"`
	Date            string `form:"date" validate:"required"`
	StartTime       string `form:"startTime" validate:"required"`
	DurationMinutes int    `form:"duration" validate:"required,gt=0,lte=1440"`
	ExcludeExamID   string `form:"excludeExamId"`
}

// AvailabilityResponse lists systems free in the window and those held by other exams.
type AvailabilityResponse struct {
	InstituteID   string          `json:"instituteId"`
	Date          string          `json:"date"`
	StartTime     string          `json:"startTime"`
	EndTime       string          `json:"endTime"`
	BufferMinutes int             `json:"bufferMinutes"`
	Available     []models.System `json:"available"`
	Busy          []string        `json:"busy"`
	// OutsideHours carries the operating-hour rule the window breaks, if any.
	OutsideHours string `json:"outsideHours,omitempty"`
}

// ManualSeat pins a student to a system in an allocation preview.
type ManualSeat struct {
	StudentID  string `json:"studentId" validate:"required"`
	SystemName string `json:"systemName" validate:"required"`
}

// AllocationPreviewRequest drafts seats for an exam without persisting them.
type AllocationPreviewRequest struct {
	Date            string       `json:"date"`
	StartTime       string       `json:"startTime"`
	DurationMinutes *int         `json:"durationMinutes" validate:"omitempty,gt=0,lte=1440"`
	StudentIDs      []string     `json:"studentIds" validate:"omitempty,dive,required"`
	Overrides       []ManualSeat `json:"overrides" validate:"omitempty,dive"`
}

// AllocationPreviewResponse is a draft seating plan.
type AllocationPreviewResponse struct {
	ExamID      string                    `json:"examId"`
	Date        string                    `json:"date"`
	StartTime   string                    `json:"startTime"`
	EndTime     string                    `json:"endTime"`
	Assignments []models.SystemAssignment `json:"systemAssignments"`
	Conflicts   []string                  `json:"conflicts"`
	Available   []string                  `json:"available"`
}

// SeatInput is one submitted seat of a schedule save.
type SeatInput struct {
	StudentID     string `json:"studentId" validate:"required"`
	SystemName    string `json:"systemName"`
	Attended      *bool  `json:"attended"`
	SectionNumber *int   `json:"sectionNumber" validate:"omitempty,gt=0"`
}

// SaveScheduleRequest commits an exam's window and seats.
type SaveScheduleRequest struct {
	Date              string      `json:"date" validate:"required"`
	StartTime         string      `json:"startTime" validate:"required"`
	DurationMinutes   *int        `json:"durationMinutes" validate:"omitempty,gt=0,lte=1440"`
	Version           int         `json:"version" validate:"required,gte=1"`
	SystemAssignments []SeatInput `json:"systemAssignments" validate:"dive"`
}

// RescheduleRequest moves students of an exam to its reschedule companion. The same shape
// drives the edit endpoint.
type RescheduleRequest struct {
	ExamID         string            `json:"examId" validate:"required"`
	StudentIDs     []string          `json:"studentIds" validate:"required,min=1,dive,required"`
	RescheduleDate string            `json:"rescheduleDate" validate:"required"`
	StartTime      string            `json:"startTime"`
	Reason         string            `json:"reason" validate:"required,max=500"`
	Systems        map[string]string `json:"systems"`
}

// UndoRescheduleRequest restores every rescheduled student of an exam.
type UndoRescheduleRequest struct {
	ExamID string `json:"examId" validate:"required"`
}

// RescheduleResponse returns both exams after a reschedule commit.
type RescheduleResponse struct {
	SourceExam       *models.Exam `json:"sourceExam"`
	CompanionExam    *models.Exam `json:"companionExam"`
	CompanionCreated bool         `json:"companionCreated"`
	Moved            []string     `json:"moved"`
	Updated          []string     `json:"updated"`
}

// UndoRescheduleResponse returns the restored source exam and what happened to the companion.
type UndoRescheduleResponse struct {
	SourceExam       *models.Exam `json:"sourceExam"`
	CompanionExam    *models.Exam `json:"companionExam,omitempty"`
	CompanionDeleted bool         `json:"companionDeleted"`
	Restored         []string     `json:"restored"`
}

// SeatPlanFile is a rendered seat plan.
type SeatPlanFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
