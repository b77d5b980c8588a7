package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-allocation-api/internal/models"
)

// InstituteRepository reads the system inventory and operating-hour settings of institutes.
type InstituteRepository struct {
	db *sqlx.DB
}

// NewInstituteRepository constructs the repository.
func NewInstituteRepository(db *sqlx.DB) *InstituteRepository {
	return &InstituteRepository{db: db}
}

// ListSystems returns the institute's systems in inventory order.
func (r *InstituteRepository) ListSystems(ctx context.Context, instituteID string) ([]models.System, error) {
	const query = `SELECT id, institute_id, name, status FROM systems WHERE institute_id = $1 ORDER BY sort_order ASC, name ASC`
	var systems []models.System
	if err := r.db.SelectContext(ctx, &systems, query, instituteID); err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	return systems, nil
}

// FindSettings loads stored operating hours. Institutes without a row return sql.ErrNoRows.
func (r *InstituteRepository) FindSettings(ctx context.Context, instituteID string) (*models.InstituteSettings, error) {
	const query = `SELECT institute_id, opening_time, closing_time, buffer_minutes, working_days
FROM institute_settings WHERE institute_id = $1`
	var settings models.InstituteSettings
	if err := r.db.GetContext(ctx, &settings, query, instituteID); err != nil {
		return nil, err
	}
	return &settings, nil
}
