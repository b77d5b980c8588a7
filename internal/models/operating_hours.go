package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OperatingHours bounds when exams may run at an institute.
type OperatingHours struct {
	InstituteID   string         `json:"instituteId"`
	OpeningTime   string         `json:"openingTime"`
	ClosingTime   string         `json:"closingTime"`
	BufferMinutes int            `json:"bufferMinutes"`
	WorkingDays   []time.Weekday `json:"workingDays"`

	openingMinutes int
	closingMinutes int
}

// NewOperatingHours validates and builds operating hours. Opening must precede closing.
func NewOperatingHours(instituteID, opening, closing string, buffer int, workingDays []time.Weekday) (OperatingHours, error) {
	open, err := ParseClock(opening)
	if err != nil {
		return OperatingHours{}, fmt.Errorf("opening time: %w", err)
	}
	closeAt, err := ParseClock(closing)
	if err != nil {
		return OperatingHours{}, fmt.Errorf("closing time: %w", err)
	}
	if open >= closeAt {
		return OperatingHours{}, fmt.Errorf("opening time %s must be before closing time %s", opening, closing)
	}
	if buffer < 0 {
		return OperatingHours{}, fmt.Errorf("buffer minutes must not be negative")
	}
	days := make([]time.Weekday, len(workingDays))
	copy(days, workingDays)
	return OperatingHours{
		InstituteID:    instituteID,
		OpeningTime:    FormatClock(open),
		ClosingTime:    FormatClock(closeAt),
		BufferMinutes:  buffer,
		WorkingDays:    days,
		openingMinutes: open,
		closingMinutes: closeAt,
	}, nil
}

// OpeningMinutes returns the opening time in minutes since midnight.
func (h OperatingHours) OpeningMinutes() int {
	if h.openingMinutes == 0 && h.OpeningTime != "" {
		m, _ := ParseClock(h.OpeningTime)
		return m
	}
	return h.openingMinutes
}

// ClosingMinutes returns the closing time in minutes since midnight.
func (h OperatingHours) ClosingMinutes() int {
	if h.closingMinutes == 0 && h.ClosingTime != "" {
		m, _ := ParseClock(h.ClosingTime)
		return m
	}
	return h.closingMinutes
}

// WorksOn reports whether exams may be held on the weekday. No configured days means every day.
func (h OperatingHours) WorksOn(day time.Weekday) bool {
	if len(h.WorkingDays) == 0 {
		return true
	}
	for _, d := range h.WorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

// InstituteSettings is the stored operating-hour row of an institute. WorkingDays is a comma
// separated list of weekday numbers with 0 = Sunday.
type InstituteSettings struct {
	InstituteID   string `db:"institute_id"`
	OpeningTime   string `db:"opening_time"`
	ClosingTime   string `db:"closing_time"`
	BufferMinutes int    `db:"buffer_minutes"`
	WorkingDays   string `db:"working_days"`
}

// ParseWorkingDays reads a comma separated weekday list such as "1,2,3,4,5".
func ParseWorkingDays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid working day %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}
