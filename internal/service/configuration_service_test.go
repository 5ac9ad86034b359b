package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/dto"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type configurationRepoStub struct {
	items map[string]models.Configuration
	err   error
}

func (s *configurationRepoStub) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := []models.Configuration{}
	for _, key := range keys {
		if cfg, ok := s.items[key]; ok {
			result = append(result, cfg)
		}
	}
	return result, nil
}

func (s *configurationRepoStub) Get(ctx context.Context, key string) (*models.Configuration, error) {
	if s.err != nil {
		return nil, s.err
	}
	if cfg, ok := s.items[key]; ok {
		return &cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (s *configurationRepoStub) Upsert(ctx context.Context, cfg *models.Configuration) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Configuration)
	}
	s.items[cfg.Key] = *cfg
	return nil
}

func (s *configurationRepoStub) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Configuration)
	}
	for _, cfg := range cfgs {
		s.items[cfg.Key] = cfg
	}
	return nil
}

type configurationYearStub struct {
	err error
}

func (y configurationYearStub) FindByYear(ctx context.Context, year string) (*models.SchoolYear, error) {
	if y.err != nil {
		return nil, y.err
	}
	return &models.SchoolYear{Year: year}, nil
}

type auditLoggerStub struct {
	logs []*models.AuditLog
}

func (a *auditLoggerStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type ledgerFlushStub struct {
	flushed int
}

func (l *ledgerFlushStub) InvalidateAll(ctx context.Context) {
	l.flushed++
}

func newConfigurationService(repo *configurationRepoStub, years configurationYearStub, flush *ledgerFlushStub, defaults map[string]string) *ConfigurationService {
	var flusher ledgerCacheFlusher
	if flush != nil {
		flusher = flush
	}
	return NewConfigurationService(repo, years, &auditLoggerStub{}, flusher, validator.New(), nil, ConfigurationServiceConfig{Defaults: defaults})
}

func TestConfigurationServiceUpdatePolicyKeys(t *testing.T) {
	repo := &configurationRepoStub{}
	flush := &ledgerFlushStub{}
	service := newConfigurationService(repo, configurationYearStub{}, flush, nil)
	actor := &models.JWTClaims{UserID: "admin"}

	item, err := service.Update(context.Background(), models.ConfigKeyResetThreshold, " 45 ", actor)
	require.NoError(t, err)
	assert.Equal(t, "45", item.Value)
	assert.Equal(t, "INTEGER", item.Type)

	item, err = service.Update(context.Background(), models.ConfigKeyCarryMode, "EXCESS", actor)
	require.NoError(t, err)
	assert.Equal(t, "excess", item.Value)
	assert.Equal(t, 2, flush.flushed)

	_, err = service.Update(context.Background(), models.ConfigKeySchoolDisplayName, "SMA Negeri 1", actor)
	require.NoError(t, err)
	assert.Equal(t, 2, flush.flushed)
}

func TestConfigurationServiceRejectsInvalidValues(t *testing.T) {
	service := newConfigurationService(&configurationRepoStub{}, configurationYearStub{}, &ledgerFlushStub{}, nil)
	actor := &models.JWTClaims{UserID: "admin"}

	cases := map[string]string{
		models.ConfigKeyCarryPercent:     "120",
		models.ConfigKeyResetThreshold:   "sixty",
		models.ConfigKeyCarryMode:        "half",
		models.ConfigKeyActiveSchoolYear: "2024/2025",
		"unknown_key":                    "abc",
	}
	for key, value := range cases {
		_, err := service.Update(context.Background(), key, value, actor)
		require.Error(t, err, key)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, key)
	}
}

func TestConfigurationServiceUpdateValidatesSchoolYear(t *testing.T) {
	service := newConfigurationService(&configurationRepoStub{}, configurationYearStub{err: sql.ErrNoRows}, &ledgerFlushStub{}, nil)
	_, err := service.Update(context.Background(), models.ConfigKeyActiveSchoolYear, "2030", &models.JWTClaims{UserID: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceBulkUpdateRollbackOnValidation(t *testing.T) {
	repo := &configurationRepoStub{}
	flush := &ledgerFlushStub{}
	service := newConfigurationService(repo, configurationYearStub{}, flush, nil)
	req := dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{
			{Key: models.ConfigKeyCarryPercent, Value: "50"},
			{Key: "unknown", Value: "value"},
		},
	}
	_, err := service.BulkUpdate(context.Background(), req, &models.JWTClaims{UserID: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.items, 0)
	assert.Zero(t, flush.flushed)
}

func TestConfigurationServiceBulkUpdateFlushesOnce(t *testing.T) {
	repo := &configurationRepoStub{}
	flush := &ledgerFlushStub{}
	service := newConfigurationService(repo, configurationYearStub{}, flush, nil)
	req := dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{
			{Key: models.ConfigKeyCarryPercent, Value: "50"},
			{Key: models.ConfigKeyResetThreshold, Value: "70"},
		},
	}
	items, err := service.BulkUpdate(context.Background(), req, &models.JWTClaims{UserID: "admin"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "70", repo.items[models.ConfigKeyResetThreshold].Value)
	assert.Equal(t, 1, flush.flushed)
}

func TestConfigurationServiceListFiltersKeys(t *testing.T) {
	repo := &configurationRepoStub{
		items: map[string]models.Configuration{
			models.ConfigKeyResetThreshold: {Key: models.ConfigKeyResetThreshold, Value: "50", Type: models.ConfigurationTypeInteger},
			"other_key":                    {Key: "other_key", Value: "secret", Type: models.ConfigurationTypeString},
		},
	}
	service := newConfigurationService(repo, configurationYearStub{}, nil, map[string]string{models.ConfigKeyCarryMode: "full"})
	items, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(allowedConfigurationKeys))
	values := map[string]string{}
	for _, item := range items {
		values[item.Key] = item.Value
	}
	assert.NotContains(t, values, "other_key")
	assert.Equal(t, "50", values[models.ConfigKeyResetThreshold])
	assert.Equal(t, "full", values[models.ConfigKeyCarryMode])
}

func TestConfigurationServiceUpdateHandlesRepoError(t *testing.T) {
	repo := &configurationRepoStub{err: errors.New("db down")}
	service := newConfigurationService(repo, configurationYearStub{}, nil, nil)
	_, err := service.Update(context.Background(), models.ConfigKeySchoolDisplayName, "SMA Negeri 1", &models.JWTClaims{UserID: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceActiveSchoolYearFallback(t *testing.T) {
	service := newConfigurationService(&configurationRepoStub{}, configurationYearStub{}, nil,
		map[string]string{models.ConfigKeyActiveSchoolYear: "2024"})
	value, err := service.ActiveSchoolYear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024", value)

	empty := newConfigurationService(&configurationRepoStub{}, configurationYearStub{}, nil, nil)
	_, err = empty.ActiveSchoolYear(context.Background())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
