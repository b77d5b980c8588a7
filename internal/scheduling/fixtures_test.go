package scheduling

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

func testHours(t *testing.T, days ...time.Weekday) models.OperatingHours {
	t.Helper()
	hours, err := models.NewOperatingHours("inst-1", "09:00", "18:00", 30, days)
	require.NoError(t, err)
	return hours
}

func testSystems(n int) []models.System {
	systems := make([]models.System, 0, n)
	for i := 1; i <= n; i++ {
		systems = append(systems, models.System{
			ID:          fmt.Sprintf("sys-%d", i),
			InstituteID: "inst-1",
			Name:        fmt.Sprintf("Sys-%d", i),
			Status:      models.SystemStatusAvailable,
		})
	}
	return systems
}

// testExam seats the given students on Sys-1, Sys-2, ... in order.
func testExam(id, date, start string, duration int, students ...string) models.Exam {
	exam := models.Exam{
		ID:              id,
		InstituteID:     "inst-1",
		CourseID:        "course-1",
		Title:           "Maths",
		Type:            models.ExamTypeFinal,
		Kind:            models.ExamKindOriginal,
		Date:            date,
		StartTime:       start,
		DurationMinutes: duration,
		TotalMarks:      100,
		Status:          models.ExamStatusScheduled,
		Version:         1,
	}
	for i, student := range students {
		seat := models.NewRegularAssignment(student, fmt.Sprintf("Sys-%d", i+1), DefaultSection)
		seat.ID = fmt.Sprintf("%s-a%d", id, i+1)
		seat.ExamID = id
		exam.Assignments = append(exam.Assignments, seat)
	}
	return exam
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
}
