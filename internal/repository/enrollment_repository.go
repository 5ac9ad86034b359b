package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

// EnrollmentRepository reads class memberships.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListForClassPeriod returns enrollments in the class for the school year that
// were active at any point between from and to (inclusive days).
func (r *EnrollmentRepository) ListForClassPeriod(ctx context.Context, classID, schoolYear string, from, to time.Time) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.school_year, e.joined_at, e.left_at, e.status,
        s.full_name AS student_name, s.nis AS student_nis, c.name AS class_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.class_id = $1 AND e.school_year = $2
          AND e.joined_at::date <= $4::date
          AND (e.left_at IS NULL OR e.left_at::date >= $3::date)
        ORDER BY s.full_name ASC, s.id ASC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, classID, schoolYear, from, to); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return rows, nil
}
