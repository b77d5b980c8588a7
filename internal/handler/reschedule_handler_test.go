package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/internal/scheduling"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

type reschedulerMock struct {
	captured dto.RescheduleRequest
	undo     dto.UndoRescheduleRequest
	created  bool
	err      error
}

func (m *reschedulerMock) BulkReschedule(ctx context.Context, actor models.Actor, req dto.RescheduleRequest) (*dto.RescheduleResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RescheduleResponse{CompanionCreated: m.created, Moved: req.StudentIDs}, nil
}

func (m *reschedulerMock) UpdateReschedule(ctx context.Context, actor models.Actor, req dto.RescheduleRequest) (*dto.RescheduleResponse, error) {
	m.captured = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.RescheduleResponse{Updated: req.StudentIDs}, nil
}

func (m *reschedulerMock) UndoReschedule(ctx context.Context, actor models.Actor, req dto.UndoRescheduleRequest) (*dto.UndoRescheduleResponse, error) {
	m.undo = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.UndoRescheduleResponse{CompanionDeleted: true}, nil
}

func (m *reschedulerMock) Group(ctx context.Context, actor models.Actor, examID string) (*scheduling.RescheduleGroup, error) {
	return &scheduling.RescheduleGroup{SourceExamID: examID, Members: []scheduling.GroupMember{}}, m.err
}

func rescheduleRouter(svc *reschedulerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRescheduleHandler(svc)
	router := gin.New()
	router.Use(withClaims(instituteAdmin))
	router.POST("/exams/reschedule", h.Bulk)
	router.PUT("/exams/reschedule", h.Update)
	router.POST("/exams/reschedule/undo", h.Undo)
	router.GET("/exams/:id/reschedule", h.Group)
	return router
}

func sendJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const reschedulePayload = `{"examId":"exam-1","studentIds":["s1","s2"],"rescheduleDate":"2024-03-10","reason":"Power failure","systems":{"s1":"Sys-4"}}`

func TestRescheduleHandlerBulkCreatesCompanion(t *testing.T) {
	svc := &reschedulerMock{created: true}
	w := sendJSON(rescheduleRouter(svc), http.MethodPost, "/exams/reschedule", reschedulePayload)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"s1", "s2"}, svc.captured.StudentIDs)
	assert.Equal(t, "2024-03-10", svc.captured.RescheduleDate)
	assert.Equal(t, "Sys-4", svc.captured.Systems["s1"])
}

func TestRescheduleHandlerBulkJoinsCompanion(t *testing.T) {
	w := sendJSON(rescheduleRouter(&reschedulerMock{}), http.MethodPost, "/exams/reschedule", reschedulePayload)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRescheduleHandlerUpdateAndUndo(t *testing.T) {
	svc := &reschedulerMock{}
	router := rescheduleRouter(svc)

	w := sendJSON(router, http.MethodPut, "/exams/reschedule", reschedulePayload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Power failure", svc.captured.Reason)

	w = sendJSON(router, http.MethodPost, "/exams/reschedule/undo", `{"examId":"exam-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "exam-1", svc.undo.ExamID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/exam-1/reschedule", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRescheduleHandlerErrors(t *testing.T) {
	svc := &reschedulerMock{err: appErrors.WithDetails(appErrors.ErrConflict, "student s1 is already rescheduled", map[string]any{"reason": "ALREADY_RESCHEDULED"})}
	w := sendJSON(rescheduleRouter(svc), http.MethodPost, "/exams/reschedule", reschedulePayload)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_RESCHEDULED")

	w = sendJSON(rescheduleRouter(&reschedulerMock{}), http.MethodPost, "/exams/reschedule/undo", `{"examId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
