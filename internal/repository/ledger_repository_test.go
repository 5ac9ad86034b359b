package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	labels []string
}

func (o *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.labels = append(o.labels, label)
}

func expectStudentYearEvents(mock sqlmock.Sqlmock) {
	now := time.Now()
	mock.ExpectQuery(`FROM violations v\s+JOIN regulations r.*WHERE v.student_id = \$1 AND v.school_year = \$2`).
		WithArgs("stu-1", "2024").
		WillReturnRows(sqlmock.NewRows(violationRowColumns).
			AddRow("v-1", "stu-1", "reg-1", 20, "", "t-1", now, "2024", 1, now, now, "Bolos", "kehadiran", "violation", ""))
	mock.ExpectQuery(`FROM awards a\s+JOIN regulations r.*WHERE a.student_id = \$1 AND a.school_year = \$2`).
		WithArgs("stu-1", "2024").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "regulation_id", "points", "description", "proposed_by", "approved_by",
			"status", "occurred_at", "school_year", "semester", "decided_at", "decision_note", "created_at", "updated_at",
			"regulation_name", "regulation_category", "regulation_type", "action_taken"}))
}

func TestLedgerRepositoryLoadStudentYearSnapshot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectStudentYearEvents(mock)
	mock.ExpectCommit()

	observer := &recordingObserver{}
	events, err := NewLedgerRepository(db, true, observer).LoadStudentYear(context.Background(), "stu-1", "2024")
	require.NoError(t, err)
	require.Len(t, events.Violations, 1)
	assert.Empty(t, events.Awards)
	assert.Equal(t, []string{"ledger_student_year"}, observer.labels)
}

func TestLedgerRepositoryLoadStudentYearWithoutSnapshot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	expectStudentYearEvents(mock)

	events, err := NewLedgerRepository(db, false, nil).LoadStudentYear(context.Background(), "stu-1", "2024")
	require.NoError(t, err)
	assert.Equal(t, 20, events.Violations[0].Points)
}

func TestLedgerRepositoryRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM violations v").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := NewLedgerRepository(db, true, nil).LoadStudentYear(context.Background(), "stu-1", "2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load violations")
}
