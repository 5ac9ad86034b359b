package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

// ClassRepository reads class reference data.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns the class with its homeroom teacher name. Missing classes return sql.ErrNoRows.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.grade, c.track, c.homeroom_teacher_id, c.created_at, c.updated_at,
        u.full_name AS homeroom_teacher_name
        FROM classes c
        LEFT JOIN users u ON u.id = c.homeroom_teacher_id
        WHERE c.id = $1`
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
