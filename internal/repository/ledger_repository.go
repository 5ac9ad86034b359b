package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/pkg/database"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// LedgerRepository loads the event log a ledger is derived from.
type LedgerRepository struct {
	db       *sqlx.DB
	snapshot bool
	metrics  queryObserver
}

// NewLedgerRepository constructs a LedgerRepository. With snapshot enabled both
// event queries share one read-only REPEATABLE READ transaction. metrics may be nil.
func NewLedgerRepository(db *sqlx.DB, snapshot bool, metrics queryObserver) *LedgerRepository {
	return &LedgerRepository{db: db, snapshot: snapshot, metrics: metrics}
}

// LoadStudentYear returns every violation and award of the student in the school
// year, joined with the regulation type used for integrity checks.
func (r *LedgerRepository) LoadStudentYear(ctx context.Context, studentID, schoolYear string) (*models.StudentYearEvents, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveDBQuery("ledger_student_year", time.Since(start))
		}
	}()

	events := &models.StudentYearEvents{}
	load := func(q sqlx.QueryerContext) error {
		if err := sqlx.SelectContext(ctx, q, &events.Violations,
			violationDetailSelect+` WHERE v.student_id = $1 AND v.school_year = $2 ORDER BY v.occurred_at ASC, v.id ASC`,
			studentID, schoolYear); err != nil {
			return fmt.Errorf("load violations: %w", err)
		}
		if err := sqlx.SelectContext(ctx, q, &events.Awards,
			awardDetailSelect+` WHERE a.student_id = $1 AND a.school_year = $2 ORDER BY a.occurred_at ASC, a.id ASC`,
			studentID, schoolYear); err != nil {
			return fmt.Errorf("load awards: %w", err)
		}
		return nil
	}

	if !r.snapshot {
		if err := load(r.db); err != nil {
			return nil, err
		}
		return events, nil
	}
	if err := database.ReadSnapshot(ctx, r.db, func(tx *sqlx.Tx) error { return load(tx) }); err != nil {
		return nil, err
	}
	return events, nil
}
