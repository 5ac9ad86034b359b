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

const violationDetailSelect = `SELECT v.id, v.student_id, v.regulation_id, v.points, v.description, v.recorded_by,
        v.occurred_at, v.school_year, v.semester, v.created_at, v.updated_at,
        r.name AS regulation_name, r.category AS regulation_category, r.type AS regulation_type, r.action_taken
        FROM violations v
        JOIN regulations r ON r.id = v.regulation_id`

// ViolationRepository persists violation events.
type ViolationRepository struct {
	db *sqlx.DB
}

// NewViolationRepository constructs a ViolationRepository.
func NewViolationRepository(db *sqlx.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// List returns violations matching the filter, newest first.
func (r *ViolationRepository) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationDetail, int, error) {
	conditions, args := eventConditions("v", filter.StudentID, filter.SchoolYear, filter.Semester)
	where := strings.Join(conditions, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`%s WHERE %s ORDER BY v.occurred_at DESC, v.id ASC LIMIT %d OFFSET %d`, violationDetailSelect, where, size, (page-1)*size)
	var violations []models.ViolationDetail
	if err := r.db.SelectContext(ctx, &violations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list violations: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM violations v WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count violations: %w", err)
	}
	return violations, total, nil
}

// FindByID fetches a violation with its regulation. Missing rows return sql.ErrNoRows.
func (r *ViolationRepository) FindByID(ctx context.Context, id string) (*models.ViolationDetail, error) {
	var violation models.ViolationDetail
	if err := r.db.GetContext(ctx, &violation, violationDetailSelect+" WHERE v.id = $1", id); err != nil {
		return nil, err
	}
	return &violation, nil
}

// Create inserts a violation in a single statement.
func (r *ViolationRepository) Create(ctx context.Context, violation *models.Violation) error {
	if violation.ID == "" {
		violation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	violation.CreatedAt = now
	violation.UpdatedAt = now
	const query = `INSERT INTO violations (id, student_id, regulation_id, points, description, recorded_by, occurred_at, school_year, semester, created_at, updated_at)
        VALUES (:id, :student_id, :regulation_id, :points, :description, :recorded_by, :occurred_at, :school_year, :semester, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, violation); err != nil {
		return fmt.Errorf("create violation: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a violation.
func (r *ViolationRepository) Update(ctx context.Context, violation *models.Violation) error {
	violation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE violations SET regulation_id = :regulation_id, points = :points, description = :description,
        occurred_at = :occurred_at, school_year = :school_year, semester = :semester, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, violation); err != nil {
		return fmt.Errorf("update violation: %w", err)
	}
	return nil
}

// Delete removes a violation.
func (r *ViolationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM violations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete violation: %w", err)
	}
	return nil
}

// eventConditions builds the shared student/year/semester filter for event tables.
func eventConditions(alias, studentID, schoolYear string, semester models.Semester) ([]string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if studentID != "" {
		args = append(args, studentID)
		conditions = append(conditions, fmt.Sprintf("%s.student_id = $%d", alias, len(args)))
	}
	if schoolYear != "" {
		args = append(args, schoolYear)
		conditions = append(conditions, fmt.Sprintf("%s.school_year = $%d", alias, len(args)))
	}
	if semester != 0 {
		args = append(args, semester)
		conditions = append(conditions, fmt.Sprintf("%s.semester = $%d", alias, len(args)))
	}
	return conditions, args
}
