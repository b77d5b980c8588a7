package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions recorded for committed engine mutations.
const (
	AuditActionScheduleSave     = "EXAM_SCHEDULE_SAVE"
	AuditActionReschedule       = "EXAM_RESCHEDULE"
	AuditActionRescheduleUpdate = "EXAM_RESCHEDULE_UPDATE"
	AuditActionRescheduleUndo   = "EXAM_RESCHEDULE_UNDO"
	AuditActionSeatPlanExport   = "EXAM_SEAT_PLAN_EXPORT"
)

// AuditResourceExam names the audited resource.
const AuditResourceExam = "exam"

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"resource"`
	ResourceID *string        `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  types.JSONText `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
