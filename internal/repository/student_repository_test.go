package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "nis", "full_name", "gender", "active", "created_at", "updated_at"}).
		AddRow("stu-1", "2024001", "Andi Pratama", "L", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).WithArgs("stu-1").WillReturnRows(rows)

	student, err := NewStudentRepository(db).FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Andi Pratama", student.FullName)
}

func TestStudentRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM students").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := NewStudentRepository(db).FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "grade", "track", "homeroom_teacher_id", "created_at", "updated_at", "homeroom_teacher_name"}).
		AddRow("class-1", "XI IPA 1", "XI", "IPA", "t-1", now, now, "Pak Budi")
	mock.ExpectQuery("FROM classes c\\s+LEFT JOIN users u").WithArgs("class-1").WillReturnRows(rows)

	class, err := NewClassRepository(db).FindByID(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "XI IPA 1", class.Name)
	require.NotNil(t, class.HomeroomTeacherName)
	assert.Equal(t, "Pak Budi", *class.HomeroomTeacherName)
}

func schoolYearRows() *sqlmock.Rows {
	now := time.Now()
	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	return sqlmock.NewRows([]string{"id", "year", "name", "semester1_start", "semester1_end", "semester2_start", "semester2_end",
		"is_active", "reset_threshold", "carry_mode", "carry_percent", "created_at", "updated_at"}).
		AddRow("sy-1", "2024", "2024/2025", day("2024-07-15"), day("2024-12-20"), day("2025-01-06"), day("2025-06-20"),
			true, 55, nil, nil, now, now)
}

func TestSchoolYearRepositoryFindByYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM school_years WHERE year = $1")).WithArgs("2024").WillReturnRows(schoolYearRows())

	sy, err := NewSchoolYearRepository(db).FindByYear(context.Background(), "2024")
	require.NoError(t, err)
	require.NotNil(t, sy.ResetThreshold)
	assert.Equal(t, 55, *sy.ResetThreshold)
	assert.Nil(t, sy.CarryMode)
	semester, ok := sy.SemesterOf(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, models.SemesterEven, semester)
}

func TestSchoolYearRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM school_years WHERE is_active = true").WillReturnRows(schoolYearRows())

	sy, err := NewSchoolYearRepository(db).FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024", sy.Year)
}

func TestSchoolYearRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM school_years ORDER BY year DESC").WillReturnRows(schoolYearRows())

	years, err := NewSchoolYearRepository(db).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, years, 1)
}
