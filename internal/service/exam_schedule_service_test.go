package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

type scheduleFixture struct {
	svc   *ExamScheduleService
	store *examStoreStub
	audit *auditStub
	cache *memoryCache
}

func newScheduleFixture(t *testing.T, tx txProvider, systems int, roster []models.Student, exams ...models.Exam) scheduleFixture {
	t.Helper()
	store := newExamStoreStub(exams...)
	audit := &auditStub{}
	cache := newMemoryCache()
	cacheSvc := NewCacheService(cache, nil, time.Minute, nil, true)
	svc := NewExamScheduleService(store, instituteStub{systems: testSystems(systems)}, rosterStub{students: roster}, audit, tx, cacheSvc, nil, testDefaults(), nil, nil)
	return scheduleFixture{svc: svc, store: store, audit: audit, cache: cache}
}

func intPtr(v int) *int { return &v }

func systemNames(systems []models.System) []string {
	names := make([]string, 0, len(systems))
	for _, s := range systems {
		names = append(names, s.Name)
	}
	return names
}

func TestExamScheduleServiceAvailability(t *testing.T) {
	earlier := testExam("exam-2", testDate, "09:00", 45, "x1")
	fx := newScheduleFixture(t, noopTxProvider{}, 3, nil, earlier)

	query := dto.AvailabilityQuery{InstituteID: "inst-1", Date: testDate, StartTime: "10:00", DurationMinutes: 60}
	resp, cached, err := fx.svc.Availability(context.Background(), testActor, query)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"Sys-2", "Sys-3"}, systemNames(resp.Available))
	assert.Equal(t, []string{"Sys-1"}, resp.Busy)
	assert.Equal(t, "11:00", resp.EndTime)
	assert.Equal(t, 30, resp.BufferMinutes)
	assert.Empty(t, resp.OutsideHours)

	again, cached, err := fx.svc.Availability(context.Background(), testActor, query)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, resp.Busy, again.Busy)
	assert.Equal(t, systemNames(resp.Available), systemNames(again.Available))
}

func TestExamScheduleServiceAvailabilityReportsOutsideHours(t *testing.T) {
	fx := newScheduleFixture(t, noopTxProvider{}, 2, nil)

	resp, _, err := fx.svc.Availability(context.Background(), testActor, dto.AvailabilityQuery{
		InstituteID: "inst-1", Date: testDate, StartTime: "08:00", DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, "BEFORE_OPENING", resp.OutsideHours)
	assert.Len(t, resp.Available, 2)
}

func TestExamScheduleServiceAvailabilityScopesInstitute(t *testing.T) {
	fx := newScheduleFixture(t, noopTxProvider{}, 2, nil)

	_, _, err := fx.svc.Availability(context.Background(), models.Actor{UserID: "u", InstituteID: "inst-2"}, dto.AvailabilityQuery{
		InstituteID: "inst-1", Date: testDate, StartTime: "10:00", DurationMinutes: 60,
	})
	requireAppError(t, err, appErrors.ErrForbidden)
}

func TestExamScheduleServiceListExams(t *testing.T) {
	fx := newScheduleFixture(t, noopTxProvider{}, 2, nil,
		testExam("exam-1", testDate, "10:00", 60, "s1"),
		testExam("exam-2", "2024-03-12", "10:00", 60, "s2"),
	)

	exams, err := fx.svc.ListExams(context.Background(), testActor, dto.ExamListQuery{InstituteID: "inst-1", Date: testDate})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "exam-1", exams[0].ID)

	_, err = fx.svc.ListExams(context.Background(), testActor, dto.ExamListQuery{InstituteID: "inst-1", Date: "11/03/2024"})
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = fx.svc.GetExam(context.Background(), testActor, "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestExamScheduleServicePreviewUsesEligibleRoster(t *testing.T) {
	exam := testExam("exam-1", testDate, "10:00", 60)
	roster := []models.Student{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	fx := newScheduleFixture(t, noopTxProvider{}, 3, roster, exam)

	resp, err := fx.svc.PreviewAllocation(context.Background(), testActor, "exam-1", dto.AllocationPreviewRequest{
		Overrides: []dto.ManualSeat{{StudentID: "s3", SystemName: "Sys-1"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Assignments, 3)
	assert.Equal(t, "Sys-1", resp.Assignments[0].SystemName)
	assert.Equal(t, "Sys-2", resp.Assignments[1].SystemName)
	assert.Equal(t, "Sys-1", resp.Assignments[2].SystemName)
	assert.Equal(t, []string{"Sys-1"}, resp.Conflicts)
	assert.Equal(t, []string{"Sys-3"}, resp.Available)
	assert.Equal(t, "11:00", resp.EndTime)
}

func TestExamScheduleServicePreviewCapacity(t *testing.T) {
	exam := testExam("exam-1", testDate, "10:00", 60)
	roster := []models.Student{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	fx := newScheduleFixture(t, noopTxProvider{}, 2, roster, exam)

	_, err := fx.svc.PreviewAllocation(context.Background(), testActor, "exam-1", dto.AllocationPreviewRequest{})
	appErr := requireAppError(t, err, appErrors.ErrCapacity)
	assert.Equal(t, 3, appErr.Details["need"])
	assert.Equal(t, 2, appErr.Details["have"])
}

func TestExamScheduleServiceSaveSchedule(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	exam := testExam("exam-1", testDate, "14:00", 90, "s1", "s2")
	fx := newScheduleFixture(t, tx, 3, nil, exam)
	require.NoError(t, fx.cache.Set(context.Background(), AvailabilityCacheKey("inst-1", testDate, "10:00", 60, ""), map[string]string{"k": "v"}, time.Minute))

	mock.ExpectBegin()
	mock.ExpectCommit()

	saved, err := fx.svc.SaveSchedule(context.Background(), testActor, "exam-1", dto.SaveScheduleRequest{
		Date:      testDate,
		StartTime: "10:00",
		Version:   1,
		SystemAssignments: []dto.SeatInput{
			{StudentID: "s1", SystemName: "Sys-3"},
			{StudentID: "s2", SystemName: "Sys-2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, "10:00", saved.StartTime)
	assert.Equal(t, "11:30", saved.EndTime)
	assert.Equal(t, "exam-1-a1", saved.Assignments[0].ID)
	assert.Equal(t, "Sys-3", fx.store.get("exam-1").Assignments[0].SystemName)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduleSave, fx.audit.entries[0].Action)
	assert.Equal(t, "admin-1", *fx.audit.entries[0].UserID)
	assert.Equal(t, []string{"availability:inst-1:2024-03-11:*"}, fx.cache.deleted)
	assert.Empty(t, fx.cache.entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamScheduleServiceSaveScheduleRejects(t *testing.T) {
	busyNeighbour := testExam("exam-2", testDate, "10:00", 60, "x1", "x2", "x3")
	busyNeighbour.Assignments = busyNeighbour.Assignments[2:]

	completed := testExam("exam-1", testDate, "14:00", 60, "s1", "s2")
	completed.Status = models.ExamStatusCompleted

	rescheduled := testExam("exam-1", testDate, "14:00", 60, "s1", "s2")
	rescheduled.Assignments[0].IsRescheduled = true

	seats := []dto.SeatInput{{StudentID: "s1", SystemName: "Sys-1"}, {StudentID: "s2", SystemName: "Sys-2"}}

	cases := []struct {
		name   string
		exams  []models.Exam
		req    dto.SaveScheduleRequest
		want   *appErrors.Error
		reason string
	}{
		{
			name: "duplicate system",
			req: dto.SaveScheduleRequest{Date: testDate, StartTime: "14:00", Version: 1, SystemAssignments: []dto.SeatInput{
				{StudentID: "s1", SystemName: "Sys-1"}, {StudentID: "s2", SystemName: "Sys-1"},
			}},
			want:   appErrors.ErrConflict,
			reason: ReasonDuplicateSystem,
		},
		{
			name: "unassigned student",
			req: dto.SaveScheduleRequest{Date: testDate, StartTime: "14:00", Version: 1, SystemAssignments: []dto.SeatInput{
				{StudentID: "s1", SystemName: "Sys-1"}, {StudentID: "s2"},
			}},
			want:   appErrors.ErrValidation,
			reason: ReasonUnassignedStudents,
		},
		{
			name:   "stale version",
			req:    dto.SaveScheduleRequest{Date: testDate, StartTime: "14:00", Version: 4, SystemAssignments: seats},
			want:   appErrors.ErrConflict,
			reason: ReasonVersionMismatch,
		},
		{
			name:   "ends after closing",
			req:    dto.SaveScheduleRequest{Date: testDate, StartTime: "17:30", Version: 1, SystemAssignments: seats},
			want:   appErrors.ErrValidation,
			reason: "ENDS_AFTER_CLOSING",
		},
		{
			name:   "system busy in neighbouring exam",
			exams:  []models.Exam{busyNeighbour},
			req:    dto.SaveScheduleRequest{Date: testDate, StartTime: "10:30", Version: 1, SystemAssignments: []dto.SeatInput{{StudentID: "s1", SystemName: "Sys-3"}, {StudentID: "s2", SystemName: "Sys-2"}}},
			want:   appErrors.ErrConflict,
			reason: ReasonSystemBusy,
		},
		{
			name:   "unknown system",
			req:    dto.SaveScheduleRequest{Date: testDate, StartTime: "14:00", Version: 1, SystemAssignments: []dto.SeatInput{{StudentID: "s1", SystemName: "Sys-9"}, {StudentID: "s2", SystemName: "Sys-2"}}},
			want:   appErrors.ErrValidation,
			reason: ReasonUnknownSystem,
		},
		{
			name:  "completed exam",
			exams: []models.Exam{completed},
			req:   dto.SaveScheduleRequest{Date: testDate, StartTime: "14:00", Version: 1, SystemAssignments: seats},
			want:  appErrors.ErrImmutable,
		},
		{
			name:   "rescheduled student in payload",
			exams:  []models.Exam{rescheduled},
			req:    dto.SaveScheduleRequest{Date: testDate, StartTime: "14:00", Version: 1, SystemAssignments: seats},
			want:   appErrors.ErrValidation,
			reason: ReasonRescheduledStudent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, mock := newTxProviderMock(t)
			exams := tc.exams
			if len(exams) == 0 || exams[0].ID != "exam-1" {
				exams = append([]models.Exam{testExam("exam-1", testDate, "14:00", 60, "s1", "s2")}, exams...)
			}
			fx := newScheduleFixture(t, tx, 3, nil, exams...)

			_, err := fx.svc.SaveSchedule(context.Background(), testActor, "exam-1", tc.req)
			appErr := requireAppError(t, err, tc.want)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, appErr.Details["reason"])
			}
			assert.Empty(t, fx.store.saved)
			assert.Empty(t, fx.audit.entries)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExamScheduleServiceSaveScheduleValidatesBeforeStore(t *testing.T) {
	fx := newScheduleFixture(t, noopTxProvider{}, 2, nil, testExam("exam-1", testDate, "10:00", 60, "s1"))

	_, err := fx.svc.SaveSchedule(context.Background(), testActor, "exam-1", dto.SaveScheduleRequest{StartTime: "10:00", Version: 1})
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = fx.svc.SaveSchedule(context.Background(), testActor, "exam-1", dto.SaveScheduleRequest{Date: testDate, StartTime: "25:00", Version: 1})
	requireAppError(t, err, appErrors.ErrValidation)
	assert.Zero(t, fx.store.reads)
}

func TestExamScheduleServiceSaveScheduleRollsBackOnStoreConflict(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newScheduleFixture(t, tx, 2, nil, testExam("exam-1", testDate, "10:00", 60, "s1"))
	fx.store.saveErr = appErrors.ErrOptimisticLock

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := fx.svc.SaveSchedule(context.Background(), testActor, "exam-1", dto.SaveScheduleRequest{
		Date: testDate, StartTime: "10:00", Version: 1,
		SystemAssignments: []dto.SeatInput{{StudentID: "s1", SystemName: "Sys-2", SectionNumber: intPtr(2)}},
	})
	appErr := requireAppError(t, err, appErrors.ErrConflict)
	assert.Equal(t, ReasonVersionMismatch, appErr.Details["reason"])
	assert.Empty(t, fx.audit.entries)
	require.NoError(t, mock.ExpectationsWereMet())
}
