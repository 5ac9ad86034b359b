package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/middleware"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
	Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error
}

// Capability names returned by /auth/me. They mirror the route guards.
const (
	CapabilityReadLedgers         = "ledgers:read"
	CapabilityRecordViolations    = "violations:record"
	CapabilityEditViolations      = "violations:edit"
	CapabilityProposeAwards       = "awards:propose"
	CapabilityDecideAwards        = "awards:decide"
	CapabilityManageRegulations   = "regulations:manage"
	CapabilityGenerateReports     = "reports:generate"
	CapabilityManageConfiguration = "configuration:manage"
)

var capabilityRoles = []struct {
	name  string
	roles []models.UserRole
}{
	{CapabilityReadLedgers, middleware.StaffRoles},
	{CapabilityRecordViolations, middleware.StaffRoles},
	{CapabilityEditViolations, middleware.DisciplineRoles},
	{CapabilityProposeAwards, middleware.StaffRoles},
	{CapabilityDecideAwards, middleware.DisciplineRoles},
	{CapabilityManageRegulations, middleware.AdminRoles},
	{CapabilityGenerateReports, middleware.StaffRoles},
	{CapabilityManageConfiguration, middleware.AdminRoles},
}

// SessionInfo is the /auth/me payload.
type SessionInfo struct {
	models.UserInfo
	Capabilities []string `json:"capabilities"`
}

// AuthHandler serves staff sessions.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}
	req.IP, req.UserAgent = clientMeta(c)

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid refresh payload"))
		return
	}
	req.IP, req.UserAgent = clientMeta(c)

	tokens, err := h.service.RefreshToken(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokens)
}

// Logout godoc
// @Summary Revoke a refresh token
// @Tags Authentication
// @Accept json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "refresh_token is required"))
		return
	}

	var meta models.LoginRequest
	meta.IP, meta.UserAgent = clientMeta(c)
	if err := h.service.Logout(c.Request.Context(), req.RefreshToken, claims.UserID, meta); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current user and what the session may do
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.OK(c, SessionInfo{
		UserInfo: models.UserInfo{
			ID:       claims.UserID,
			Email:    claims.Email,
			FullName: claims.FullName,
			Role:     claims.Role,
		},
		Capabilities: capabilitiesFor(claims.Role),
	})
}

func capabilitiesFor(role models.UserRole) []string {
	out := make([]string, 0, len(capabilityRoles))
	for _, entry := range capabilityRoles {
		if middleware.HasRole(role, entry.roles...) {
			out = append(out, entry.name)
		}
	}
	return out
}

func clientMeta(c *gin.Context) (string, string) {
	return c.ClientIP(), c.GetHeader("User-Agent")
}
