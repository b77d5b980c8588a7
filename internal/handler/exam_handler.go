package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/middleware"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/pkg/response"
)

type examScheduler interface {
	ListExams(ctx context.Context, actor models.Actor, query dto.ExamListQuery) ([]models.Exam, error)
	GetExam(ctx context.Context, actor models.Actor, id string) (*models.Exam, error)
	Availability(ctx context.Context, actor models.Actor, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, bool, error)
	PreviewAllocation(ctx context.Context, actor models.Actor, examID string, req dto.AllocationPreviewRequest) (*dto.AllocationPreviewResponse, error)
	SaveSchedule(ctx context.Context, actor models.Actor, examID string, req dto.SaveScheduleRequest) (*models.Exam, error)
}

type seatPlanExporter interface {
	SeatPlan(ctx context.Context, actor models.Actor, examID, format string) (*dto.SeatPlanFile, error)
}

// ExamHandler exposes exam scheduling endpoints.
type ExamHandler struct {
	service examScheduler
	export  seatPlanExporter
}

// NewExamHandler constructs the handler.
func NewExamHandler(svc examScheduler, export seatPlanExporter) *ExamHandler {
	return &ExamHandler{service: svc, export: export}
}

// List godoc
// @Summary List exams of an institute
// @Tags Exams
// @Produce json
// @Param instituteId query string true "Institute ID"
// @Param date query string false "Exam date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ExamListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	exams, err := h.service.ListExams(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, gin.H{"total": len(exams)})
}

// Get godoc
// @Summary Get an exam with its system assignments
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	exam, err := h.service.GetExam(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam)
}

// Availability godoc
// @Summary Resolve free systems for a prospective exam window
// @Tags Exams
// @Produce json
// @Param id path string true "Institute ID"
// @Param date query string true "Exam date (YYYY-MM-DD)"
// @Param startTime query string true "Start time (HH:MM)"
// @Param duration query int true "Duration in minutes"
// @Param excludeExamId query string false "Exam being edited"
// @Success 200 {object} response.Envelope
// @Router /institutes/{id}/availability [get]
func (h *ExamHandler) Availability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	query.InstituteID = c.Param("id")

	result, cached, err := h.service.Availability(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// PreviewAllocation godoc
// @Summary Draft a seat plan for an exam without saving it
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.AllocationPreviewRequest false "Window and student overrides"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exams/{id}/allocation/preview [post]
func (h *ExamHandler) PreviewAllocation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AllocationPreviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid allocation payload"))
			return
		}
	}
	result, err := h.service.PreviewAllocation(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// SaveSchedule godoc
// @Summary Commit an exam's window and system assignments
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.SaveScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /exams/{id}/schedule [put]
func (h *ExamHandler) SaveSchedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid schedule payload"))
		return
	}
	exam, err := h.service.SaveSchedule(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam)
}

// SeatPlan godoc
// @Summary Download the seat plan of an exam
// @Tags Exams
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Exam ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /exams/{id}/seat-plan [get]
func (h *ExamHandler) SeatPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.export.SeatPlan(c.Request.Context(), actor, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Body)
}
