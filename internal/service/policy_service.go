package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type policyConfigReader interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
}

var policyConfigKeys = []string{
	models.ConfigKeyResetThreshold,
	models.ConfigKeyCarryMode,
	models.ConfigKeyCarryPercent,
}

// PolicyService resolves the reset policy in effect for a school year. Later
// sources win: environment defaults, then the configurations table, then the
// school year's own override columns. Invalid stored values are skipped.
type PolicyService struct {
	defaults models.ResetPolicy
	configs  policyConfigReader
	logger   *zap.Logger
}

// NewPolicyService constructs a PolicyService. An invalid default policy is
// replaced by the built-in one.
func NewPolicyService(defaults models.ResetPolicy, configs policyConfigReader, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ValidateResetPolicy(defaults); err != nil {
		logger.Warn("invalid default reset policy, using built-in", zap.Error(err))
		defaults = models.DefaultResetPolicy()
	}
	return &PolicyService{defaults: defaults, configs: configs, logger: logger}
}

// Defaults returns the environment level policy.
func (s *PolicyService) Defaults() models.ResetPolicy {
	return s.defaults
}

// Resolve returns the effective policy for year. A nil year yields the
// configuration level policy.
func (s *PolicyService) Resolve(ctx context.Context, year *models.SchoolYear) (models.ResetPolicy, error) {
	policy := s.defaults

	if s.configs != nil {
		rows, err := s.configs.ListByKeys(ctx, policyConfigKeys)
		if err != nil {
			return models.ResetPolicy{}, appErrors.Internal(err, "failed to load reset policy configuration")
		}
		for _, row := range rows {
			policy = s.apply(policy, row.Key, row.Value, "configuration")
		}
	}

	if year != nil {
		if year.ResetThreshold != nil {
			policy = s.apply(policy, models.ConfigKeyResetThreshold, strconv.Itoa(*year.ResetThreshold), "school_year")
		}
		if year.CarryMode != nil {
			policy = s.apply(policy, models.ConfigKeyCarryMode, *year.CarryMode, "school_year")
		}
		if year.CarryPercent != nil {
			policy = s.apply(policy, models.ConfigKeyCarryPercent, strconv.Itoa(*year.CarryPercent), "school_year")
		}
	}
	return policy, nil
}

func (s *PolicyService) apply(policy models.ResetPolicy, key, raw, source string) models.ResetPolicy {
	next := policy
	raw = strings.TrimSpace(raw)
	switch key {
	case models.ConfigKeyResetThreshold:
		value, err := strconv.Atoi(raw)
		if err != nil {
			s.warnInvalid(key, raw, source, err)
			return policy
		}
		next.Threshold = value
	case models.ConfigKeyCarryMode:
		next.CarryMode = models.CarryMode(strings.ToLower(raw))
	case models.ConfigKeyCarryPercent:
		value, err := strconv.Atoi(raw)
		if err != nil {
			s.warnInvalid(key, raw, source, err)
			return policy
		}
		next.CarryPercent = value
	default:
		return policy
	}
	if err := ValidateResetPolicy(next); err != nil {
		s.warnInvalid(key, raw, source, err)
		return policy
	}
	return next
}

func (s *PolicyService) warnInvalid(key, raw, source string, err error) {
	s.logger.Warn("ignoring invalid reset policy value",
		zap.String("key", key),
		zap.String("value", raw),
		zap.String("source", source),
		zap.Error(err),
	)
}
