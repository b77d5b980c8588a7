package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/pkg/export"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

type studentDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

// renderer turns a dataset into a downloadable document.
type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportService renders exam seat plans.
type ExportService struct {
	exams     examStore
	students  studentDirectory
	renderers map[string]renderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Missing renderers fall back to the defaults.
func NewExportService(exams examStore, students studentDirectory, logger *zap.Logger, renderers ...renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(renderers) == 0 {
		renderers = []renderer{export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter()}
	}
	byFormat := make(map[string]renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Extension()] = r
	}
	return &ExportService{
		exams:     exams,
		students:  students,
		renderers: byFormat,
		logger:    logger,
	}
}

// SeatPlan renders the seating of an exam in the requested format (csv, pdf or xlsx).
func (s *ExportService) SeatPlan(ctx context.Context, actor models.Actor, examID, format string) (*dto.SeatPlanFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format), map[string]any{"field": "format"})
	}

	inputs := engineInputs{exams: s.exams}
	exam, err := inputs.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(exam.Assignments))
	for _, a := range exam.Assignments {
		ids = append(ids, a.StudentID)
	}
	directory := make(map[string]models.Student, len(ids))
	if len(ids) > 0 && s.students != nil {
		students, err := s.students.FindByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		for _, st := range students {
			directory[st.ID] = st
		}
	}

	body, err := r.Render(seatPlanDataset(exam, directory))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render seat plan")
	}
	s.logger.Debug("seat plan rendered", zap.String("exam_id", exam.ID), zap.String("format", format), zap.Int("bytes", len(body)))

	return &dto.SeatPlanFile{
		Filename:    fmt.Sprintf("seat_plan_%s_%s.%s", sanitizeFilename(exam.Title), exam.Date, r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

func seatPlanDataset(exam *models.Exam, directory map[string]models.Student) export.Dataset {
	data := export.Dataset{
		Title: exam.Title,
		Meta: []string{
			fmt.Sprintf("Date: %s", exam.Date),
			fmt.Sprintf("Time: %s - %s", exam.StartTime, exam.EndTime),
			fmt.Sprintf("Status: %s", exam.Status),
		},
		Headers: []string{"No", "Roll Number", "Student", "System", "Section", "Status"},
	}
	for i, a := range exam.Assignments {
		student, known := directory[a.StudentID]
		name, roll := a.StudentID, "-"
		if known {
			name, roll = student.FullName, student.RollNumber
		}
		section := "-"
		if a.SectionNumber != nil {
			section = strconv.Itoa(*a.SectionNumber)
		}
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(i + 1),
			roll,
			name,
			orDash(a.SystemName),
			section,
			seatStatus(a),
		})
	}
	return data
}

func seatStatus(a models.SystemAssignment) string {
	switch {
	case a.Kind == models.AssignmentKindRescheduleSlot:
		return "Rescheduled sitting"
	case a.IsRescheduled:
		return "Moved"
	case a.Attended:
		return "Attended"
	}
	return "Scheduled"
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "(", "", ")", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
