package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentRepositoryListForClassPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	from := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	left := time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "school_year", "joined_at", "left_at", "status", "student_name", "student_nis", "class_name"}).
		AddRow("e-1", "stu-1", "class-1", "2024", from, nil, "ACTIVE", "Andi", "001", "XI IPA 1").
		AddRow("e-2", "stu-2", "class-1", "2024", from, left, "TRANSFERRED", "Budi", "002", "XI IPA 1")
	mock.ExpectQuery(`(?s)FROM enrollments e.*WHERE e.class_id = \$1 AND e.school_year = \$2.*joined_at::date <= \$4::date.*left_at::date >= \$3::date`).
		WithArgs("class-1", "2024", from, to).
		WillReturnRows(rows)

	enrollments, err := NewEnrollmentRepository(db).ListForClassPeriod(context.Background(), "class-1", "2024", from, to)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "Budi", enrollments[1].StudentName)
	require.NotNil(t, enrollments[1].LeftAt)
}

func TestEnrollmentRepositoryListForClassPeriodError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM enrollments").WillReturnError(errors.New("boom"))

	_, err := NewEnrollmentRepository(db).ListForClassPeriod(context.Background(), "class-1", "2024", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list class enrollments")
}
