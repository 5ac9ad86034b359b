package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

const schoolYearColumns = `id, year, name, semester1_start, semester1_end, semester2_start, semester2_end,
        is_active, reset_threshold, carry_mode, carry_percent, created_at, updated_at`

// SchoolYearRepository reads school years and their semester calendars.
type SchoolYearRepository struct {
	db *sqlx.DB
}

// NewSchoolYearRepository constructs a SchoolYearRepository.
func NewSchoolYearRepository(db *sqlx.DB) *SchoolYearRepository {
	return &SchoolYearRepository{db: db}
}

// FindByYear fetches a school year by its four-digit year. Missing years return sql.ErrNoRows.
func (r *SchoolYearRepository) FindByYear(ctx context.Context, year string) (*models.SchoolYear, error) {
	query := `SELECT ` + schoolYearColumns + ` FROM school_years WHERE year = $1`
	var sy models.SchoolYear
	if err := r.db.GetContext(ctx, &sy, query, year); err != nil {
		return nil, err
	}
	return &sy, nil
}

// FindActive returns the school year flagged active.
func (r *SchoolYearRepository) FindActive(ctx context.Context) (*models.SchoolYear, error) {
	query := `SELECT ` + schoolYearColumns + ` FROM school_years WHERE is_active = true ORDER BY year DESC LIMIT 1`
	var sy models.SchoolYear
	if err := r.db.GetContext(ctx, &sy, query); err != nil {
		return nil, err
	}
	return &sy, nil
}

// List returns every school year, newest first.
func (r *SchoolYearRepository) List(ctx context.Context) ([]models.SchoolYear, error) {
	query := `SELECT ` + schoolYearColumns + ` FROM school_years ORDER BY year DESC`
	var years []models.SchoolYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list school years: %w", err)
	}
	return years, nil
}
