package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/dto"
	"github.com/noah-isme/sma-discipline-api/internal/middleware"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

type configurationService interface {
	List(ctx context.Context) ([]dto.ConfigurationItem, error)
	Get(ctx context.Context, key string) (*dto.ConfigurationItem, error)
	Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*dto.ConfigurationItem, error)
	BulkUpdate(ctx context.Context, req dto.BulkUpdateConfigurationRequest, actor *models.JWTClaims) ([]dto.ConfigurationItem, error)
}

type policyLookup interface {
	EffectivePolicy(ctx context.Context, year string) (*models.ResetPolicy, error)
}

// ConfigurationHandler serves runtime settings, including the reset policy keys.
type ConfigurationHandler struct {
	settings configurationService
	policies policyLookup
}

// NewConfigurationHandler wires the configuration endpoints. policies may be nil,
// in which case /configuration/policy is not served.
func NewConfigurationHandler(settings configurationService, policies policyLookup) *ConfigurationHandler {
	return &ConfigurationHandler{settings: settings, policies: policies}
}

// List godoc
// @Summary List configuration entries
// @Description Every allowed key with its stored value, or the default when unset.
// @Tags Configuration
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /configuration [get]
func (h *ConfigurationHandler) List(c *gin.Context) {
	items, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, middleware.ResponseMeta(c))
}

// Get godoc
// @Summary Get one configuration entry
// @Tags Configuration
// @Produce json
// @Param key path string true "Configuration key"
// @Success 200 {object} response.Envelope
// @Router /configuration/{key} [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	item, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Policy godoc
// @Summary Effective reset policy
// @Description Threshold and carry rule applied to a school year after defaults, configuration and year overrides.
// @Tags Configuration
// @Produce json
// @Param year query string true "School year"
// @Success 200 {object} response.Envelope
// @Router /configuration/policy [get]
func (h *ConfigurationHandler) Policy(c *gin.Context) {
	if h.policies == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "policy lookup unavailable"))
		return
	}
	year, err := requiredQuery(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	policy, err := h.policies.EffectivePolicy(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, policy)
}

// Update godoc
// @Summary Update one configuration entry
// @Description Policy keys flush cached ledgers once stored.
// @Tags Configuration
// @Accept json
// @Produce json
// @Param key path string true "Configuration key"
// @Param payload body dto.UpdateConfigurationRequest true "New value"
// @Success 200 {object} response.Envelope
// @Router /configuration/{key} [put]
func (h *ConfigurationHandler) Update(c *gin.Context) {
	key := c.Param("key")
	var req dto.UpdateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid configuration payload"))
		return
	}
	switch strings.TrimSpace(req.Key) {
	case "", key:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "body key "+req.Key+" does not match path key "+key))
		return
	}

	item, err := h.settings.Update(c.Request.Context(), key, req.Value, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// BulkUpdate godoc
// @Summary Update several configuration entries at once
// @Description All values are validated before any is stored.
// @Tags Configuration
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateConfigurationRequest true "Entries"
// @Success 200 {object} response.Envelope
// @Router /configuration [put]
func (h *ConfigurationHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid bulk configuration payload"))
		return
	}
	if len(req.Items) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "items must not be empty"))
		return
	}

	items, err := h.settings.BulkUpdate(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}
