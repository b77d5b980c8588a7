// Package scheduling holds the exam allocation engine: time windows, system availability,
// seat planning and reschedule transitions. Everything here is pure; persistence lives in
// the service and repository layers.
package scheduling

import (
	"fmt"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// Window is a half-open interval [Start, End) in minutes since midnight on Date.
type Window struct {
	Date  string `json:"date"`
	Start int    `json:"startMinutes"`
	End   int    `json:"endMinutes"`
}

// WindowFor converts an exam's date, start time and duration into a window.
func WindowFor(date, startTime string, durationMinutes int) (Window, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return Window{}, invalid("date", "%v", err)
	}
	start, err := models.ParseClock(startTime)
	if err != nil {
		return Window{}, invalid("startTime", "%v", err)
	}
	if durationMinutes <= 0 {
		return Window{}, invalid("durationMinutes", "must be greater than zero")
	}
	return Window{Date: day.Format(models.DateLayout), Start: start, End: start + durationMinutes}, nil
}

// StartTime renders the window start as HH:MM.
func (w Window) StartTime() string {
	return models.FormatClock(w.Start)
}

// EndTime renders the window end as HH:MM.
func (w Window) EndTime() string {
	return models.FormatClock(w.End)
}

// Conflicts reports whether two windows collide once each is extended by the buffer.
// The predicate is symmetric, so the order exams are compared in never matters.
func Conflicts(a, b Window, bufferMinutes int) bool {
	if a.Date != b.Date {
		return false
	}
	return a.Start < b.End+bufferMinutes && a.End+bufferMinutes > b.Start
}

// ViolationKind names the operating-hour rule a window breaks.
type ViolationKind string

const (
	BeforeOpening    ViolationKind = "BEFORE_OPENING"
	AtOrAfterClosing ViolationKind = "AT_OR_AFTER_CLOSING"
	EndsAfterClosing ViolationKind = "ENDS_AFTER_CLOSING"
	NotWorkingDay    ViolationKind = "NOT_WORKING_DAY"
)

// HoursViolation is returned when a window falls outside operating hours.
type HoursViolation struct {
	Kind   ViolationKind
	Window Window
	Hours  models.OperatingHours
}

func (e *HoursViolation) Error() string {
	switch e.Kind {
	case BeforeOpening:
		return fmt.Sprintf("exam starts at %s, before the institute opens at %s", e.Window.StartTime(), e.Hours.OpeningTime)
	case AtOrAfterClosing:
		return fmt.Sprintf("exam starts at %s, at or after closing time %s", e.Window.StartTime(), e.Hours.ClosingTime)
	case EndsAfterClosing:
		return fmt.Sprintf("exam ends at %s, after closing time %s", e.Window.EndTime(), e.Hours.ClosingTime)
	case NotWorkingDay:
		return fmt.Sprintf("%s is not a working day for the institute", e.Window.Date)
	}
	return "exam window is outside operating hours"
}

// ValidateWithinHours checks a window against opening, closing and working days.
// An exam must start at or after opening, strictly before closing, and end no later than closing.
func ValidateWithinHours(w Window, hours models.OperatingHours) error {
	opening := hours.OpeningMinutes()
	closing := hours.ClosingMinutes()
	switch {
	case w.Start < opening:
		return &HoursViolation{Kind: BeforeOpening, Window: w, Hours: hours}
	case w.Start >= closing:
		return &HoursViolation{Kind: AtOrAfterClosing, Window: w, Hours: hours}
	case w.End > closing:
		return &HoursViolation{Kind: EndsAfterClosing, Window: w, Hours: hours}
	}
	day, err := models.ParseDate(w.Date)
	if err != nil {
		return invalid("date", "%v", err)
	}
	if !hours.WorksOn(day.Weekday()) {
		return &HoursViolation{Kind: NotWorkingDay, Window: w, Hours: hours}
	}
	return nil
}

// ExamWindow derives the window of a stored exam.
func ExamWindow(exam *models.Exam) (Window, error) {
	w, err := WindowFor(exam.Date, exam.StartTime, exam.DurationMinutes)
	if err != nil {
		return Window{}, fmt.Errorf("exam %s: %w", exam.ID, err)
	}
	return w, nil
}
