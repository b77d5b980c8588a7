package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/internal/scheduling"
	"github.com/noah-isme/exam-allocation-api/pkg/response"
)

type rescheduler interface {
	BulkReschedule(ctx context.Context, actor models.Actor, req dto.RescheduleRequest) (*dto.RescheduleResponse, error)
	UpdateReschedule(ctx context.Context, actor models.Actor, req dto.RescheduleRequest) (*dto.RescheduleResponse, error)
	UndoReschedule(ctx context.Context, actor models.Actor, req dto.UndoRescheduleRequest) (*dto.UndoRescheduleResponse, error)
	Group(ctx context.Context, actor models.Actor, examID string) (*scheduling.RescheduleGroup, error)
}

// RescheduleHandler exposes reschedule endpoints.
type RescheduleHandler struct {
	service rescheduler
}

// NewRescheduleHandler constructs the handler.
func NewRescheduleHandler(svc rescheduler) *RescheduleHandler {
	return &RescheduleHandler{service: svc}
}

// Bulk godoc
// @Summary Move students of an exam to its rescheduled sitting
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param payload body dto.RescheduleRequest true "Reschedule payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/reschedule [post]
func (h *RescheduleHandler) Bulk(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reschedule payload"))
		return
	}
	result, err := h.service.BulkReschedule(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.CompanionCreated {
		status = http.StatusCreated
	}
	response.JSON(c, status, result)
}

// Update godoc
// @Summary Edit the rescheduled sitting of an exam
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param payload body dto.RescheduleRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /exams/reschedule [put]
func (h *RescheduleHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid reschedule payload"))
		return
	}
	result, err := h.service.UpdateReschedule(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Undo godoc
// @Summary Restore every rescheduled student of an exam
// @Tags Reschedule
// @Accept json
// @Produce json
// @Param payload body dto.UndoRescheduleRequest true "Undo payload"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /exams/reschedule/undo [post]
func (h *RescheduleHandler) Undo(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UndoRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid undo payload"))
		return
	}
	result, err := h.service.UndoReschedule(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Group godoc
// @Summary Show the reschedule group of an exam
// @Tags Reschedule
// @Produce json
// @Param id path string true "Exam ID (original or rescheduled sitting)"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/reschedule [get]
func (h *RescheduleHandler) Group(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	group, err := h.service.Group(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group)
}
