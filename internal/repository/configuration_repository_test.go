package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

func TestConfigurationRepositoryListByKeys(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow("reset_threshold", "55", "INTEGER", "desc", "admin", time.Now())
	mock.ExpectQuery("SELECT key, value .* FROM configurations WHERE key = ANY").
		WithArgs(pq.Array([]string{"reset_threshold", "carry_mode"})).
		WillReturnRows(rows)

	result, err := repo.ListByKeys(context.Background(), []string{"reset_threshold", "carry_mode"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "55", result[0].Value)
	assert.Equal(t, models.ConfigurationTypeInteger, result[0].Type)
}

func TestConfigurationRepositoryListByKeysEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	result, err := NewConfigurationRepository(db).ListByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestConfigurationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("carry_mode", "excess", "ENUM", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cfg := &models.Configuration{
		Key:       "carry_mode",
		Value:     "excess",
		Type:      models.ConfigurationTypeEnum,
		UpdatedBy: strPtr("admin"),
	}
	require.NoError(t, repo.Upsert(context.Background(), cfg))
	assert.False(t, cfg.UpdatedAt.IsZero())
}

func TestConfigurationRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("reset_threshold", "70", "INTEGER", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("carry_percent", "50", "INTEGER", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	items := []models.Configuration{
		{Key: "reset_threshold", Value: "70", Type: models.ConfigurationTypeInteger, UpdatedBy: strPtr("admin")},
		{Key: "carry_percent", Value: "50", Type: models.ConfigurationTypeInteger, UpdatedBy: strPtr("admin")},
	}
	require.NoError(t, repo.BulkUpsert(context.Background(), items))
}
