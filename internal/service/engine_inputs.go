package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/internal/scheduling"
	"github.com/noah-isme/exam-allocation-api/pkg/config"
	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type examStore interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error)
	ListByInstituteDate(ctx context.Context, instituteID, date string) ([]models.Exam, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	FindCompanion(ctx context.Context, sourceExamID string) (*models.Exam, error)
	Create(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error
	Save(ctx context.Context, exec sqlx.ExtContext, exam *models.Exam) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string, version int) error
}

type instituteReader interface {
	ListSystems(ctx context.Context, instituteID string) ([]models.System, error)
	FindSettings(ctx context.Context, instituteID string) (*models.InstituteSettings, error)
}

type auditWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error
}

// engineInputs loads the collaborator data the scheduling engine computes on.
type engineInputs struct {
	exams      examStore
	institutes instituteReader
	defaults   config.SchedulingConfig
	now        func() time.Time
}

// operatingHours returns the institute's stored hours, or the configured defaults when it has none.
func (e engineInputs) operatingHours(ctx context.Context, instituteID string) (models.OperatingHours, error) {
	settings, err := e.institutes.FindSettings(ctx, instituteID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return models.OperatingHours{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute settings")
		}
		settings = &models.InstituteSettings{
			InstituteID:   instituteID,
			OpeningTime:   e.defaults.DefaultOpening,
			ClosingTime:   e.defaults.DefaultClosing,
			BufferMinutes: e.defaults.DefaultBufferMinutes,
		}
		hours, err := models.NewOperatingHours(instituteID, settings.OpeningTime, settings.ClosingTime, settings.BufferMinutes, e.defaults.DefaultWorkingDays)
		if err != nil {
			return models.OperatingHours{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "default operating hours are invalid")
		}
		return hours, nil
	}

	days, err := models.ParseWorkingDays(settings.WorkingDays)
	if err != nil {
		return models.OperatingHours{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "institute working days are invalid")
	}
	hours, err := models.NewOperatingHours(instituteID, settings.OpeningTime, settings.ClosingTime, settings.BufferMinutes, days)
	if err != nil {
		return models.OperatingHours{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "institute operating hours are invalid")
	}
	return hours, nil
}

// environment gathers hours, inventory and every exam of the institute on date.
func (e engineInputs) environment(ctx context.Context, instituteID, date string) (scheduling.Environment, error) {
	hours, err := e.operatingHours(ctx, instituteID)
	if err != nil {
		return scheduling.Environment{}, err
	}
	systems, err := e.institutes.ListSystems(ctx, instituteID)
	if err != nil {
		return scheduling.Environment{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load systems")
	}
	exams, err := e.exams.ListByInstituteDate(ctx, instituteID, date)
	if err != nil {
		return scheduling.Environment{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exams on date")
	}
	return scheduling.Environment{
		Hours:       hours,
		Systems:     systems,
		ExamsOnDate: exams,
		Now:         e.now,
		NewID:       uuid.NewString,
	}, nil
}

// loadExam fetches an exam the actor is allowed to see.
func (e engineInputs) loadExam(ctx context.Context, actor models.Actor, id string) (*models.Exam, error) {
	exam, err := e.exams.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if !actor.CanAccess(exam.InstituteID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exam belongs to another institute")
	}
	return exam, nil
}

func (e engineInputs) loadCompanion(ctx context.Context, source *models.Exam) (*models.Exam, error) {
	if source.IsCompanion() {
		return nil, nil
	}
	companion, err := e.exams.FindCompanion(ctx, source.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule companion")
	}
	return companion, nil
}

// validDate rejects malformed dates before they reach a query.
func validDate(field, value string) error {
	if _, err := models.ParseDate(value); err != nil {
		return appErrors.WithDetails(appErrors.ErrValidation, err.Error(), map[string]any{"field": field})
	}
	return nil
}

// writeAudit records a committed mutation. Failures are logged and never surface to the caller.
func writeAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, actor models.Actor, action, examID string, payload map[string]any) {
	if writer == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("encode audit payload", zap.String("action", action), zap.Error(err))
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceExam,
		ResourceID: &examID,
		NewValues:  body,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if err := writer.Create(ctx, nil, entry); err != nil {
		logger.Warn("write audit log", zap.String("action", action), zap.String("exam_id", examID), zap.Error(err))
	}
}

func rollback(tx *sqlx.Tx, logger *zap.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn("rollback transaction", zap.Error(err))
	}
}
