package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

var regulationRowColumns = []string{"id", "name", "category", "type", "point", "action_taken", "is_active", "created_at", "updated_at"}

func TestRegulationRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	active := true
	now := time.Now()
	rows := sqlmock.NewRows(regulationRowColumns).
		AddRow("reg-1", "Terlambat", "kedisiplinan", "violation", 5, "Teguran lisan", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM regulations WHERE 1=1 AND type = $1 AND is_active = $2 AND LOWER(name) LIKE $3 ORDER BY type ASC, category ASC, name ASC LIMIT 10 OFFSET 10")).
		WithArgs(models.RegulationTypeViolation, true, "%lambat%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM regulations WHERE 1=1 AND type = $1 AND is_active = $2 AND LOWER(name) LIKE $3")).
		WithArgs(models.RegulationTypeViolation, true, "%lambat%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	list, total, err := NewRegulationRepository(db).List(context.Background(), models.RegulationFilter{
		Type:     models.RegulationTypeViolation,
		Active:   &active,
		Search:   "Lambat",
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, 5, list[0].Point)
}

func TestRegulationRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegulationRepository(db)

	mock.ExpectExec("INSERT INTO regulations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE regulations SET is_active = false")).
		WithArgs("reg-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reg := &models.Regulation{Name: "Juara lomba", Category: "prestasi", Type: models.RegulationTypeAward, Point: 10, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), reg))
	assert.NotEmpty(t, reg.ID)
	assert.False(t, reg.CreatedAt.IsZero())

	require.NoError(t, repo.Deactivate(context.Background(), "reg-9"))
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 20, size)
}
