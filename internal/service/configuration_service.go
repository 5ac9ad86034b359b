package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/dto"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type configurationSchoolYearReader interface {
	FindByYear(ctx context.Context, year string) (*models.SchoolYear, error)
}

// ledgerCacheFlusher drops cached ledgers after a policy change.
type ledgerCacheFlusher interface {
	InvalidateAll(ctx context.Context)
}

type allowedConfiguration struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Min, Max    int
	Options     []string
	SchoolYear  bool
	// Policy marks keys that change ledger results.
	Policy bool
}

var allowedConfigurationKeys = []string{
	models.ConfigKeyActiveSchoolYear,
	models.ConfigKeyResetThreshold,
	models.ConfigKeyCarryMode,
	models.ConfigKeyCarryPercent,
	models.ConfigKeySchoolDisplayName,
}

var allowedConfigurations = map[string]allowedConfiguration{
	models.ConfigKeyActiveSchoolYear: {
		Key:         models.ConfigKeyActiveSchoolYear,
		Type:        models.ConfigurationTypeString,
		Description: "School year (e.g. 2024) used when a request omits the year",
		SchoolYear:  true,
	},
	models.ConfigKeyResetThreshold: {
		Key:         models.ConfigKeyResetThreshold,
		Type:        models.ConfigurationTypeInteger,
		Description: "Semester 1 net points at or above which points carry into semester 2",
		Min:         0,
		Max:         1000,
		Policy:      true,
	},
	models.ConfigKeyCarryMode: {
		Key:         models.ConfigKeyCarryMode,
		Type:        models.ConfigurationTypeEnum,
		Description: "Carried base: full balance or the excess above the threshold",
		Options:     []string{string(models.CarryModeFull), string(models.CarryModeExcess)},
		Policy:      true,
	},
	models.ConfigKeyCarryPercent: {
		Key:         models.ConfigKeyCarryPercent,
		Type:        models.ConfigurationTypeInteger,
		Description: "Percentage of the carried base moved into semester 2",
		Min:         0,
		Max:         100,
		Policy:      true,
	},
	models.ConfigKeySchoolDisplayName: {
		Key:         models.ConfigKeySchoolDisplayName,
		Type:        models.ConfigurationTypeString,
		Description: "Display name for the school shown in report headers",
	},
}

// ConfigurationServiceConfig seeds values returned when a key was never stored.
type ConfigurationServiceConfig struct {
	Defaults map[string]string
}

// ConfigurationService manages runtime configuration entries, including the
// reset policy keys read by the ledger engine.
type ConfigurationService struct {
	repo      configurationRepository
	years     configurationSchoolYearReader
	audit     auditRecorder
	ledgers   ledgerCacheFlusher
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
}

// NewConfigurationService constructs a ConfigurationService. years, audit and ledgers may be nil.
func NewConfigurationService(repo configurationRepository, years configurationSchoolYearReader, audit auditRecorder, ledgers ledgerCacheFlusher, validate *validator.Validate, logger *zap.Logger, cfg ConfigurationServiceConfig) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(cfg.Defaults))
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &ConfigurationService{
		repo:      repo,
		years:     years,
		audit:     audit,
		ledgers:   ledgers,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
	}
}

// List returns every allowed key with its stored or default value.
func (s *ConfigurationService) List(ctx context.Context) ([]dto.ConfigurationItem, error) {
	rows, err := s.repo.ListByKeys(ctx, allowedConfigurationKeys)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list configurations")
	}
	existing := make(map[string]models.Configuration, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.ConfigurationItem, 0, len(allowedConfigurationKeys))
	for _, key := range allowedConfigurationKeys {
		item := s.item(key, "")
		if row, ok := existing[key]; ok {
			item.Value = row.Value
		} else if def, ok := s.defaults[key]; ok {
			item.Value = def
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single configuration, falling back to its default.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*dto.ConfigurationItem, error) {
	if _, err := s.requireAllowedKey(key); err != nil {
		return nil, err
	}
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if def, ok := s.defaults[key]; ok {
				item := s.item(key, def)
				return &item, nil
			}
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return nil, appErrors.Internal(err, "failed to get configuration")
	}
	item := s.item(key, cfg.Value)
	return &item, nil
}

// Update validates and stores a single configuration entry.
func (s *ConfigurationService) Update(ctx context.Context, key string, value string, actor *models.JWTClaims) (*dto.ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err = s.validateValue(ctx, meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to fetch configuration")
	}

	cfg := &models.Configuration{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: strPtr(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Internal(err, "failed to update configuration")
	}

	s.emitAudit(ctx, actor, key, prevValue(prev), value)
	if meta.Policy && s.ledgers != nil {
		s.ledgers.InvalidateAll(ctx)
	}

	item := s.item(key, value)
	return &item, nil
}

// BulkUpdate validates every item before storing any of them.
func (s *ConfigurationService) BulkUpdate(ctx context.Context, req dto.BulkUpdateConfigurationRequest, actor *models.JWTClaims) ([]dto.ConfigurationItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	keys := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		keys = append(keys, item.Key)
	}
	existing, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing configurations")
	}
	existingMap := make(map[string]models.Configuration, len(existing))
	for _, cfg := range existing {
		existingMap[cfg.Key] = cfg
	}

	policyChanged := false
	toUpsert := make([]models.Configuration, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			return nil, err
		}
		normalized, err := s.validateValue(ctx, meta, item.Value)
		if err != nil {
			return nil, err
		}
		policyChanged = policyChanged || meta.Policy
		toUpsert = append(toUpsert, models.Configuration{
			Key:         item.Key,
			Value:       normalized,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Internal(err, "failed to bulk update configurations")
	}

	result := make([]dto.ConfigurationItem, 0, len(toUpsert))
	for _, cfg := range toUpsert {
		result = append(result, s.item(cfg.Key, cfg.Value))
		var prev *models.Configuration
		if row, ok := existingMap[cfg.Key]; ok {
			prev = &row
		}
		s.emitAudit(ctx, actor, cfg.Key, prevValue(prev), cfg.Value)
	}
	if policyChanged && s.ledgers != nil {
		s.ledgers.InvalidateAll(ctx)
	}
	return result, nil
}

// ActiveSchoolYear returns the configured default school year.
func (s *ConfigurationService) ActiveSchoolYear(ctx context.Context) (string, error) {
	cfg, err := s.repo.Get(ctx, models.ConfigKeyActiveSchoolYear)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Internal(err, "failed to get configuration")
	}
	value := ""
	if cfg != nil {
		value = cfg.Value
	} else {
		value = s.defaults[models.ConfigKeyActiveSchoolYear]
	}
	if value == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "active_school_year not configured")
	}
	return value, nil
}

func (s *ConfigurationService) item(key, value string) dto.ConfigurationItem {
	meta := allowedConfigurations[key]
	return dto.ConfigurationItem{
		Key:         key,
		Value:       value,
		Type:        string(meta.Type),
		Description: meta.Description,
		Options:     meta.Options,
	}
}

func (s *ConfigurationService) requireAllowedKey(key string) (allowedConfiguration, error) {
	meta, ok := allowedConfigurations[key]
	if !ok {
		return allowedConfiguration{}, appErrors.Clone(appErrors.ErrValidation, "unsupported configuration key")
	}
	return meta, nil
}

func (s *ConfigurationService) validateValue(ctx context.Context, meta allowedConfiguration, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects an integer", meta.Key))
		}
		if n < meta.Min || n > meta.Max {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be between %d and %d", meta.Key, meta.Min, meta.Max))
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeEnum:
		lower := strings.ToLower(value)
		for _, option := range meta.Options {
			if lower == option {
				return option, nil
			}
		}
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be one of %s", meta.Key, strings.Join(meta.Options, ", ")))
	case models.ConfigurationTypeString:
		if meta.SchoolYear {
			if !models.ValidSchoolYear(value) {
				return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects a four-digit year", meta.Key))
			}
			if err := s.ensureSchoolYearExists(ctx, value); err != nil {
				return "", err
			}
		}
		return value, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported configuration type")
	}
}

func (s *ConfigurationService) ensureSchoolYearExists(ctx context.Context, year string) error {
	if s.years == nil {
		return nil
	}
	if _, err := s.years.FindByYear(ctx, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school year not found")
		}
		return appErrors.Internal(err, "failed to verify school year")
	}
	return nil
}

func (s *ConfigurationService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionConfigChange, models.AuditResourceConfiguration, key,
		map[string]string{"key": key, "value": oldValue},
		map[string]string{"key": key, "value": newValue},
	)
}

func prevValue(cfg *models.Configuration) string {
	if cfg == nil {
		return ""
	}
	return cfg.Value
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}
