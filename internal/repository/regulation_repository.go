package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

// RegulationRepository persists the violation and award rule catalog.
type RegulationRepository struct {
	db *sqlx.DB
}

// NewRegulationRepository constructs a RegulationRepository.
func NewRegulationRepository(db *sqlx.DB) *RegulationRepository {
	return &RegulationRepository{db: db}
}

// List returns regulations matching the filter ordered by type, category and name.
func (r *RegulationRepository) List(ctx context.Context, filter models.RegulationFilter) ([]models.Regulation, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT id, name, category, type, point, action_taken, is_active, created_at, updated_at
        FROM regulations WHERE %s ORDER BY type ASC, category ASC, name ASC LIMIT %d OFFSET %d`, where, size, (page-1)*size)
	var regulations []models.Regulation
	if err := r.db.SelectContext(ctx, &regulations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list regulations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM regulations WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count regulations: %w", err)
	}
	return regulations, total, nil
}

// FindByID fetches a regulation. Missing rows return sql.ErrNoRows.
func (r *RegulationRepository) FindByID(ctx context.Context, id string) (*models.Regulation, error) {
	const query = `SELECT id, name, category, type, point, action_taken, is_active, created_at, updated_at FROM regulations WHERE id = $1`
	var regulation models.Regulation
	if err := r.db.GetContext(ctx, &regulation, query, id); err != nil {
		return nil, err
	}
	return &regulation, nil
}

// Create inserts a regulation.
func (r *RegulationRepository) Create(ctx context.Context, regulation *models.Regulation) error {
	if regulation.ID == "" {
		regulation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	regulation.CreatedAt = now
	regulation.UpdatedAt = now
	const query = `INSERT INTO regulations (id, name, category, type, point, action_taken, is_active, created_at, updated_at)
        VALUES (:id, :name, :category, :type, :point, :action_taken, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, regulation); err != nil {
		return fmt.Errorf("create regulation: %w", err)
	}
	return nil
}

// Update modifies a regulation. Existing events keep the points they captured.
func (r *RegulationRepository) Update(ctx context.Context, regulation *models.Regulation) error {
	regulation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE regulations SET name = :name, category = :category, type = :type, point = :point,
        action_taken = :action_taken, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, regulation); err != nil {
		return fmt.Errorf("update regulation: %w", err)
	}
	return nil
}

// Deactivate hides a regulation from new events.
func (r *RegulationRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE regulations SET is_active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate regulation: %w", err)
	}
	return nil
}

// normalizePage clamps paging input to page >= 1 and 1..100 rows, defaulting to 20.
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
