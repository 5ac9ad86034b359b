package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

const awardDetailSelect = `SELECT a.id, a.student_id, a.regulation_id, a.points, a.description, a.proposed_by, a.approved_by,
        a.status, a.occurred_at, a.school_year, a.semester, a.decided_at, a.decision_note, a.created_at, a.updated_at,
        r.name AS regulation_name, r.category AS regulation_category, r.type AS regulation_type, r.action_taken
        FROM awards a
        JOIN regulations r ON r.id = a.regulation_id`

// AwardRepository persists award events and their approval decisions.
type AwardRepository struct {
	db *sqlx.DB
}

// NewAwardRepository constructs an AwardRepository.
func NewAwardRepository(db *sqlx.DB) *AwardRepository {
	return &AwardRepository{db: db}
}

// List returns awards matching the filter, newest first.
func (r *AwardRepository) List(ctx context.Context, filter models.AwardFilter) ([]models.AwardDetail, int, error) {
	conditions, args := eventConditions("a", filter.StudentID, filter.SchoolYear, filter.Semester)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`%s WHERE %s ORDER BY a.occurred_at DESC, a.id ASC LIMIT %d OFFSET %d`, awardDetailSelect, where, size, (page-1)*size)
	var awards []models.AwardDetail
	if err := r.db.SelectContext(ctx, &awards, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list awards: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM awards a WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count awards: %w", err)
	}
	return awards, total, nil
}

// FindByID fetches an award with its regulation. Missing rows return sql.ErrNoRows.
func (r *AwardRepository) FindByID(ctx context.Context, id string) (*models.AwardDetail, error) {
	var award models.AwardDetail
	if err := r.db.GetContext(ctx, &award, awardDetailSelect+" WHERE a.id = $1", id); err != nil {
		return nil, err
	}
	return &award, nil
}

// Create inserts a proposed award.
func (r *AwardRepository) Create(ctx context.Context, award *models.Award) error {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	if award.Status == "" {
		award.Status = models.AwardStatusProposed
	}
	now := time.Now().UTC()
	award.CreatedAt = now
	award.UpdatedAt = now
	const query = `INSERT INTO awards (id, student_id, regulation_id, points, description, proposed_by, approved_by, status, occurred_at, school_year, semester, decided_at, decision_note, created_at, updated_at)
        VALUES (:id, :student_id, :regulation_id, :points, :description, :proposed_by, :approved_by, :status, :occurred_at, :school_year, :semester, :decided_at, :decision_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, award); err != nil {
		return fmt.Errorf("create award: %w", err)
	}
	return nil
}

// Decide moves a proposed award to approved or rejected. The status guard makes
// the transition happen at most once; it returns sql.ErrNoRows when the award is
// missing or already decided.
func (r *AwardRepository) Decide(ctx context.Context, id string, status models.AwardStatus, approverID string, note *string, decidedAt time.Time) error {
	const query = `UPDATE awards SET status = $2, approved_by = $3, decision_note = $4, decided_at = $5, updated_at = $5
        WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, status, approverID, note, decidedAt, models.AwardStatusProposed)
	if err != nil {
		return fmt.Errorf("decide award: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide award rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an award.
func (r *AwardRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM awards WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete award: %w", err)
	}
	return nil
}
