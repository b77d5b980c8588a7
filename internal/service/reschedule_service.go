package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-allocation-api/internal/dto"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/internal/scheduling"
	"github.com/noah-isme/exam-allocation-api/pkg/config"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

// RescheduleService moves students between an exam and its reschedule companion.
type RescheduleService struct {
	inputs    engineInputs
	audit     auditWriter
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRescheduleService wires reschedule dependencies.
func NewRescheduleService(
	exams examStore,
	institutes instituteReader,
	audit auditWriter,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	defaults config.SchedulingConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{
		inputs: engineInputs{
			exams:      exams,
			institutes: institutes,
			defaults:   defaults,
			now:        time.Now,
		},
		audit:     audit,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// BulkReschedule moves the listed students to the exam's companion sitting, creating it on first use.
func (s *RescheduleService) BulkReschedule(ctx context.Context, actor models.Actor, req dto.RescheduleRequest) (resp *dto.RescheduleResponse, err error) {
	defer func() { s.metrics.RecordEngineOutcome(OperationBulkReschedule, err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	source, companion, err := s.loadPair(ctx, actor, req.ExamID)
	if err != nil {
		return nil, err
	}
	env, err := s.inputs.environment(ctx, source.InstituteID, req.RescheduleDate)
	if err != nil {
		return nil, err
	}
	result, err := scheduling.BulkReschedule(source, companion, engineRequest(req), env)
	if err != nil {
		return nil, translateEngineError(err, "failed to reschedule students")
	}

	if err = s.commitReschedule(ctx, result); err != nil {
		return nil, err
	}
	s.afterReschedule(ctx, actor, OperationBulkReschedule, models.AuditActionReschedule, source, companion, result, req.Reason)
	return rescheduleResponse(result), nil
}

// UpdateReschedule edits the companion sitting: date, start time and reason of students already
// moved are overwritten and any newly listed students join them.
func (s *RescheduleService) UpdateReschedule(ctx context.Context, actor models.Actor, req dto.RescheduleRequest) (resp *dto.RescheduleResponse, err error) {
	defer func() { s.metrics.RecordEngineOutcome(OperationUpdateReschedule, err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	source, companion, err := s.loadPair(ctx, actor, req.ExamID)
	if err != nil {
		return nil, err
	}
	env, err := s.inputs.environment(ctx, source.InstituteID, req.RescheduleDate)
	if err != nil {
		return nil, err
	}
	result, err := scheduling.UpdateReschedule(source, companion, engineRequest(req), env)
	if err != nil {
		return nil, translateEngineError(err, "failed to update reschedule")
	}

	if err = s.commitReschedule(ctx, result); err != nil {
		return nil, err
	}
	s.afterReschedule(ctx, actor, OperationUpdateReschedule, models.AuditActionRescheduleUpdate, source, companion, result, req.Reason)
	return rescheduleResponse(result), nil
}

// UndoReschedule returns every rescheduled student of the exam to their original seat.
func (s *RescheduleService) UndoReschedule(ctx context.Context, actor models.Actor, req dto.UndoRescheduleRequest) (resp *dto.UndoRescheduleResponse, err error) {
	defer func() { s.metrics.RecordEngineOutcome(OperationUndoReschedule, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid undo payload")
	}
	source, companion, err := s.loadPair(ctx, actor, req.ExamID)
	if err != nil {
		return nil, err
	}
	env, err := s.inputs.environment(ctx, source.InstituteID, source.Date)
	if err != nil {
		return nil, err
	}
	result, err := scheduling.UndoReschedule(source, companion, env)
	if err != nil {
		return nil, translateEngineError(err, "failed to undo reschedule")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			rollback(tx, s.logger)
		}
	}()

	if err = s.inputs.exams.Save(ctx, tx, result.Source); err != nil {
		return nil, translateEngineError(err, "failed to restore source exam")
	}
	if result.DeleteCompanion {
		err = s.inputs.exams.Delete(ctx, tx, result.Companion.ID, result.Companion.Version)
	} else {
		err = s.inputs.exams.Save(ctx, tx, result.Companion)
	}
	if err != nil {
		return nil, translateEngineError(err, "failed to update reschedule companion")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit undo")
	}

	s.cache.InvalidateAvailability(ctx, source.InstituteID, source.Date, companion.Date)
	s.metrics.AddStudentsMoved(OperationUndoReschedule, len(result.Restored))
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionRescheduleUndo, source.ID, map[string]any{
		"companionExamId":  companion.ID,
		"restored":         result.Restored,
		"companionDeleted": result.DeleteCompanion,
	})
	s.logger.Info("reschedule undone",
		zap.String("exam_id", source.ID),
		zap.String("companion_exam_id", companion.ID),
		zap.String("institute_id", source.InstituteID),
		zap.Int("restored", len(result.Restored)),
		zap.Bool("companion_deleted", result.DeleteCompanion),
	)

	out := &dto.UndoRescheduleResponse{
		SourceExam:       result.Source,
		CompanionDeleted: result.DeleteCompanion,
		Restored:         result.Restored,
	}
	if !result.DeleteCompanion {
		out.CompanionExam = result.Companion
	}
	return out, nil
}

// Group returns the reschedule group view for an exam. Either side of the pair may be named.
func (s *RescheduleService) Group(ctx context.Context, actor models.Actor, examID string) (*scheduling.RescheduleGroup, error) {
	exam, err := s.inputs.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	source, companion := exam, (*models.Exam)(nil)
	if exam.IsCompanion() {
		companion = exam
		source, err = s.inputs.loadExam(ctx, actor, *exam.SourceExamID)
		if err != nil {
			return nil, err
		}
	} else if companion, err = s.inputs.loadCompanion(ctx, exam); err != nil {
		return nil, err
	}
	group := scheduling.BuildGroup(source, companion)
	return &group, nil
}

func (s *RescheduleService) validateRequest(req dto.RescheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	return validDate("rescheduleDate", req.RescheduleDate)
}

func (s *RescheduleService) loadPair(ctx context.Context, actor models.Actor, examID string) (*models.Exam, *models.Exam, error) {
	source, err := s.inputs.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, nil, err
	}
	companion, err := s.inputs.loadCompanion(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	return source, companion, nil
}

// commitReschedule writes the companion and the source exam in one transaction.
func (s *RescheduleService) commitReschedule(ctx context.Context, result *scheduling.RescheduleResult) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			rollback(tx, s.logger)
		}
	}()

	if result.CompanionCreated {
		err = s.inputs.exams.Create(ctx, tx, result.Companion)
	} else {
		err = s.inputs.exams.Save(ctx, tx, result.Companion)
	}
	if err != nil {
		return translateEngineError(err, "failed to store reschedule companion")
	}
	if err = s.inputs.exams.Save(ctx, tx, result.Source); err != nil {
		return translateEngineError(err, "failed to update source exam")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit reschedule")
	}
	return nil
}

func (s *RescheduleService) afterReschedule(ctx context.Context, actor models.Actor, operation, action string, source, previous *models.Exam, result *scheduling.RescheduleResult, reason string) {
	dates := []string{source.Date, result.Companion.Date}
	if previous != nil {
		dates = append(dates, previous.Date)
	}
	s.cache.InvalidateAvailability(ctx, source.InstituteID, dates...)
	s.metrics.AddStudentsMoved(operation, len(result.Moved))

	writeAudit(ctx, s.audit, s.logger, actor, action, source.ID, map[string]any{
		"companionExamId":  result.Companion.ID,
		"companionCreated": result.CompanionCreated,
		"date":             result.Companion.Date,
		"startTime":        result.Companion.StartTime,
		"reason":           reason,
		"moved":            result.Moved,
		"updated":          result.Updated,
	})
	s.logger.Info("students rescheduled",
		zap.String("exam_id", source.ID),
		zap.String("companion_exam_id", result.Companion.ID),
		zap.String("institute_id", source.InstituteID),
		zap.String("date", result.Companion.Date),
		zap.Int("moved", len(result.Moved)),
		zap.Int("updated", len(result.Updated)),
	)
}

func engineRequest(req dto.RescheduleRequest) scheduling.RescheduleRequest {
	return scheduling.RescheduleRequest{
		StudentIDs: req.StudentIDs,
		Date:       req.RescheduleDate,
		StartTime:  req.StartTime,
		Reason:     req.Reason,
		Systems:    req.Systems,
	}
}

func rescheduleResponse(result *scheduling.RescheduleResult) *dto.RescheduleResponse {
	return &dto.RescheduleResponse{
		SourceExam:       result.Source,
		CompanionExam:    result.Companion,
		CompanionCreated: result.CompanionCreated,
		Moved:            result.Moved,
		Updated:          result.Updated,
	}
}
