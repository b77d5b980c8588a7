package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/internal/scheduling"
	"github.com/noah-isme/exam-allocation-api/pkg/config"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

type rosterReader interface {
	ListEligible(ctx context.Context, instituteID, courseID string) ([]models.Student, error)
}

// ExamScheduleService resolves availability, drafts seat plans and commits exam schedules.
type ExamScheduleService struct {
	inputs    engineInputs
	roster    rosterReader
	audit     auditWriter
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamScheduleService wires schedule dependencies.
func NewExamScheduleService(
	exams examStore,
	institutes instituteReader,
	roster rosterReader,
	audit auditWriter,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	defaults config.SchedulingConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExamScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamScheduleService{
		inputs: engineInputs{
			exams:      exams,
			institutes: institutes,
			defaults:   defaults,
			now:        time.Now,
		},
		roster:    roster,
		audit:     audit,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// ListExams lists the exams of an institute, optionally on one date.
func (s *ExamScheduleService) ListExams(ctx context.Context, actor models.Actor, query dto.ExamListQuery) ([]models.Exam, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam query")
	}
	if query.Date != "" {
		if err := validDate("date", query.Date); err != nil {
			return nil, err
		}
	}
	if !actor.CanAccess(query.InstituteID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "institute is outside your scope")
	}
	exams, err := s.inputs.exams.List(ctx, models.ExamFilter{InstituteID: query.InstituteID, Date: query.Date})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// GetExam returns one exam with its assignments.
func (s *ExamScheduleService) GetExam(ctx context.Context, actor models.Actor, id string) (*models.Exam, error) {
	return s.inputs.loadExam(ctx, actor, id)
}

// Availability reports the free and busy systems of an institute for a prospective window.
// The boolean result is true when the answer came from cache.
func (s *ExamScheduleService) Availability(ctx context.Context, actor models.Actor, query dto.AvailabilityQuery) (resp *dto.AvailabilityResponse, cached bool, err error) {
	defer func() { s.metrics.RecordEngineOutcome(OperationAvailability, err) }()

	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	window, err := scheduling.WindowFor(query.Date, query.StartTime, query.DurationMinutes)
	if err != nil {
		return nil, false, translateEngineError(err, "invalid window")
	}
	if !actor.CanAccess(query.InstituteID) {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "institute is outside your scope")
	}

	key := AvailabilityCacheKey(query.InstituteID, window.Date, window.StartTime(), query.DurationMinutes, query.ExcludeExamID)
	var hit dto.AvailabilityResponse
	if ok, cacheErr := s.cache.Get(ctx, key, &hit); cacheErr == nil && ok {
		return &hit, true, nil
	}

	env, err := s.inputs.environment(ctx, query.InstituteID, window.Date)
	if err != nil {
		return nil, false, err
	}
	availability, err := scheduling.Resolve(window, env.Hours.BufferMinutes, env.ExamsOnDate, env.Systems, query.ExcludeExamID)
	if err != nil {
		return nil, false, translateEngineError(err, "failed to resolve availability")
	}

	resp = &dto.AvailabilityResponse{
		InstituteID:   query.InstituteID,
		Date:          window.Date,
		StartTime:     window.StartTime(),
		EndTime:       window.EndTime(),
		BufferMinutes: env.Hours.BufferMinutes,
		Available:     availability.Available,
		Busy:          availability.Busy.Names(),
	}
	var violation *scheduling.HoursViolation
	if hoursErr := scheduling.ValidateWithinHours(window, env.Hours); errors.As(hoursErr, &violation) {
		resp.OutsideHours = string(violation.Kind)
	}

	_ = s.cache.Set(ctx, key, resp, 0)
	return resp, false, nil
}

// PreviewAllocation drafts seats for an exam without persisting them. Students default to the
// exam's current active roster, then to the course's eligible students. Overrides are applied
// one by one after automatic allocation and any duplicate they cause is reported as a conflict.
func (s *ExamScheduleService) PreviewAllocation(ctx context.Context, actor models.Actor, examID string, req dto.AllocationPreviewRequest) (resp *dto.AllocationPreviewResponse, err error) {
	defer func() { s.metrics.RecordEngineOutcome(OperationAllocationDraft, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation request")
	}
	exam, err := s.inputs.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	if exam.IsCompanion() {
		return nil, companionEditError()
	}
	if exam.IsCompleted() {
		return nil, translateEngineError(scheduling.ErrImmutableExam, "")
	}

	window, err := previewWindow(exam, req)
	if err != nil {
		return nil, translateEngineError(err, "invalid window")
	}
	env, err := s.inputs.environment(ctx, exam.InstituteID, window.Date)
	if err != nil {
		return nil, err
	}
	if err := scheduling.ValidateWithinHours(window, env.Hours); err != nil {
		return nil, translateEngineError(err, "")
	}

	rescheduled := make(map[string]bool)
	for _, id := range exam.RescheduledStudentIDs() {
		rescheduled[id] = true
	}
	students, err := s.previewStudents(ctx, exam, req.StudentIDs, rescheduled)
	if err != nil {
		return nil, err
	}

	availability, err := scheduling.Resolve(window, env.Hours.BufferMinutes, env.ExamsOnDate, env.Systems, exam.ID)
	if err != nil {
		return nil, translateEngineError(err, "failed to resolve availability")
	}
	plan, err := scheduling.AutoAllocate(students, availability.Available)
	if err != nil {
		return nil, translateEngineError(err, "failed to allocate systems")
	}

	conflicts := plan.Conflicts()
	for _, override := range req.Overrides {
		if rescheduled[override.StudentID] {
			return nil, translateEngineError(&scheduling.RescheduledStudentError{StudentID: override.StudentID}, "")
		}
		plan.ManualAssign(override.StudentID, override.SystemName)
		if !availability.IsAvailable(override.SystemName) {
			conflicts[override.SystemName] = struct{}{}
		}
	}
	for name := range plan.Conflicts() {
		conflicts[name] = struct{}{}
	}

	assignments := plan.Assignments()
	taken := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		taken[a.SystemName] = true
	}
	for _, a := range exam.Assignments {
		if a.Kind == models.AssignmentKindRegular && a.IsRescheduled {
			assignments = append(assignments, a.Clone())
		}
	}
	free := make([]string, 0, len(availability.Available))
	for _, sys := range availability.Available {
		if !taken[sys.Name] {
			free = append(free, sys.Name)
		}
	}

	return &dto.AllocationPreviewResponse{
		ExamID:      exam.ID,
		Date:        window.Date,
		StartTime:   window.StartTime(),
		EndTime:     window.EndTime(),
		Assignments: assignments,
		Conflicts:   conflicts.Names(),
		Available:   free,
	}, nil
}

func (s *ExamScheduleService) previewStudents(ctx context.Context, exam *models.Exam, requested []string, rescheduled map[string]bool) ([]string, error) {
	if len(requested) > 0 {
		for _, id := range requested {
			if rescheduled[id] {
				return nil, translateEngineError(&scheduling.RescheduledStudentError{StudentID: id}, "")
			}
		}
		return requested, nil
	}

	var students []string
	for _, a := range exam.Assignments {
		if a.Kind == models.AssignmentKindRegular && !a.IsRescheduled {
			students = append(students, a.StudentID)
		}
	}
	if len(students) > 0 || len(rescheduled) > 0 || s.roster == nil {
		return students, nil
	}

	eligible, err := s.roster.ListEligible(ctx, exam.InstituteID, exam.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible students")
	}
	return models.StudentIDs(eligible), nil
}

// SaveSchedule commits a new window and seat list for an exam. Rescheduled seats are carried
// over untouched; the submitted version must match the stored one.
func (s *ExamScheduleService) SaveSchedule(ctx context.Context, actor models.Actor, examID string, req dto.SaveScheduleRequest) (saved *models.Exam, err error) {
	defer func() { s.metrics.RecordEngineOutcome(OperationScheduleSave, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if _, err := scheduling.WindowFor(req.Date, req.StartTime, 1); err != nil {
		return nil, translateEngineError(err, "invalid window")
	}

	exam, err := s.inputs.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	if exam.IsCompanion() {
		return nil, companionEditError()
	}
	if exam.IsCompleted() {
		return nil, translateEngineError(scheduling.ErrImmutableExam, "")
	}
	if exam.Version != req.Version {
		return nil, translateEngineError(appErrors.ErrOptimisticLock, "")
	}

	duration := exam.DurationMinutes
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}
	window, err := scheduling.WindowFor(req.Date, req.StartTime, duration)
	if err != nil {
		return nil, translateEngineError(err, "invalid window")
	}
	env, err := s.inputs.environment(ctx, exam.InstituteID, window.Date)
	if err != nil {
		return nil, err
	}
	if err := scheduling.ValidateWithinHours(window, env.Hours); err != nil {
		return nil, translateEngineError(err, "")
	}

	assignments, err := mergeSeats(exam, req.SystemAssignments)
	if err != nil {
		return nil, translateEngineError(err, "")
	}
	if err := scheduling.ValidateAssignments(exam, assignments); err != nil {
		return nil, translateEngineError(err, "")
	}
	availability, err := scheduling.Resolve(window, env.Hours.BufferMinutes, env.ExamsOnDate, env.Systems, exam.ID)
	if err != nil {
		return nil, translateEngineError(err, "failed to resolve availability")
	}
	if err := scheduling.CheckSystemsFree(assignments, availability, env.Systems); err != nil {
		return nil, translateEngineError(err, "")
	}

	updated := exam.Clone()
	updated.Date = window.Date
	updated.StartTime = window.StartTime()
	updated.EndTime = window.EndTime()
	updated.DurationMinutes = duration
	updated.Assignments = assignments

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			rollback(tx, s.logger)
		}
	}()

	if err = s.inputs.exams.Save(ctx, tx, updated); err != nil {
		return nil, translateEngineError(err, "failed to save exam schedule")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit exam schedule")
	}

	s.cache.InvalidateAvailability(ctx, exam.InstituteID, exam.Date, updated.Date)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionScheduleSave, updated.ID, map[string]any{
		"date":      updated.Date,
		"startTime": updated.StartTime,
		"endTime":   updated.EndTime,
		"seats":     len(updated.Assignments),
		"version":   updated.Version,
	})
	s.logger.Info("exam assignments saved",
		zap.String("exam_id", updated.ID),
		zap.String("institute_id", updated.InstituteID),
		zap.String("date", updated.Date),
		zap.Int("assignments", len(updated.Assignments)),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}

// mergeSeats builds the assignment list for a save. Existing seats keep their ids and
// attendance unless the payload overrides it; rescheduled seats cannot be edited here.
func mergeSeats(exam *models.Exam, seats []dto.SeatInput) ([]models.SystemAssignment, error) {
	merged := make([]models.SystemAssignment, 0, len(seats)+len(exam.Assignments))
	for _, seat := range seats {
		idx := exam.FindAssignment(seat.StudentID)
		var next models.SystemAssignment
		if idx >= 0 {
			current := exam.Assignments[idx]
			if current.IsRescheduled {
				return nil, &scheduling.RescheduledStudentError{StudentID: seat.StudentID}
			}
			next = current.Clone()
			next.SystemName = seat.SystemName
		} else {
			next = models.NewRegularAssignment(seat.StudentID, seat.SystemName, scheduling.DefaultSection)
		}
		if seat.SectionNumber != nil {
			section := *seat.SectionNumber
			next.SectionNumber = &section
		}
		if seat.Attended != nil {
			next.Attended = *seat.Attended
		}
		merged = append(merged, next)
	}
	for _, a := range exam.Assignments {
		if a.Kind == models.AssignmentKindRegular && a.IsRescheduled {
			merged = append(merged, a.Clone())
		}
	}
	return merged, nil
}

func previewWindow(exam *models.Exam, req dto.AllocationPreviewRequest) (scheduling.Window, error) {
	date, start, duration := exam.Date, exam.StartTime, exam.DurationMinutes
	if req.Date != "" {
		date = req.Date
	}
	if req.StartTime != "" {
		start = req.StartTime
	}
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}
	return scheduling.WindowFor(date, start, duration)
}

func companionEditError() error {
	return appErrors.WithDetails(appErrors.ErrValidation, "rescheduled sittings are edited through the reschedule endpoints", map[string]any{
		"field": "examId",
	})
}
