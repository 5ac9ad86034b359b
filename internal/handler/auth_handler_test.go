package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type authServiceStub struct {
	loginReq     models.LoginRequest
	loginErr     error
	loggedOut    string
	logoutUserID string
}

func (s *authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	s.loginReq = req
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", User: models.UserInfo{ID: "u1"}}, nil
}

func (s *authServiceStub) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (s *authServiceStub) Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) error {
	s.loggedOut, s.logoutUserID = refreshToken, userID
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	stub := &authServiceStub{}
	h := NewAuthHandler(stub)
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"bk@school.id","password":"secret"}`))
	c.Request.Header.Set("User-Agent", "test-agent")

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bk@school.id", stub.loginReq.Email)
	assert.Equal(t, "test-agent", stub.loginReq.UserAgent)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&authServiceStub{loginErr: appErrors.ErrInvalidCredentials})
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"bk@school.id","password":"wrong"}`))
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	h := NewAuthHandler(&authServiceStub{})
	c, w := newGinContext(http.MethodPost, "/auth/refresh", []byte(`{"refresh_token":"refresh"}`))
	h.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "access-2")
}

func TestAuthHandlerLogout(t *testing.T) {
	stub := &authServiceStub{}
	h := NewAuthHandler(stub)

	c, w := newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	h.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	withClaims(c, "u1", models.RoleCounselor)
	h.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	withClaims(c, "u1", models.RoleCounselor)
	h.Logout(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "refresh", stub.loggedOut)
	assert.Equal(t, "u1", stub.logoutUserID)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&authServiceStub{})
	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	withClaims(c, "u1", models.RoleTeacher)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"TEACHER"`)
	assert.Contains(t, w.Body.String(), CapabilityRecordViolations)
	assert.NotContains(t, w.Body.String(), CapabilityDecideAwards)
}

func TestCapabilitiesFor(t *testing.T) {
	assert.Empty(t, capabilitiesFor(models.RoleStudent))
	assert.Len(t, capabilitiesFor(models.RoleSuperAdmin), len(capabilityRoles))
	assert.Contains(t, capabilitiesFor(models.RoleCounselor), CapabilityDecideAwards)
	assert.NotContains(t, capabilitiesFor(models.RoleCounselor), CapabilityManageConfiguration)
}
