package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := v[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/items/:id", handlers...)
	return r
}

func serve(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var testTokens = validatorStub{
	"admin":     {UserID: "u-admin", Role: models.RoleAdmin},
	"teacher":   {UserID: "u-teacher", Role: models.RoleTeacher},
	"superuser": {UserID: "u-root", Role: models.RoleSuperAdmin},
}

func TestJWT(t *testing.T) {
	r := newRouter(JWT(testTokens))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer unknown").Code)
	assert.Equal(t, http.StatusOK, serve(r, "Bearer admin").Code)
	assert.Equal(t, http.StatusOK, serve(r, "bearer admin").Code)
}

func TestOptionalJWT(t *testing.T) {
	var seen *models.JWTClaims
	r := newRouter(OptionalJWT(testTokens), func(c *gin.Context) { seen = Claims(c) })

	assert.Equal(t, http.StatusOK, serve(r, "Bearer unknown").Code)
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusOK, serve(r, "Bearer teacher").Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-teacher", seen.UserID)
}

func TestRBAC(t *testing.T) {
	r := newRouter(JWT(testTokens), RBAC(DisciplineRoles...))

	assert.Equal(t, http.StatusOK, serve(r, "Bearer admin").Code)
	assert.Equal(t, http.StatusOK, serve(r, "Bearer superuser").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer teacher").Code)

	unauthenticated := newRouter(RBAC(AdminRoles...))
	assert.Equal(t, http.StatusUnauthorized, serve(unauthenticated, "").Code)
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(models.RoleCounselor, DisciplineRoles...))
	assert.False(t, HasRole(models.RoleTeacher, DisciplineRoles...))
	assert.True(t, HasRole(models.RoleSuperAdmin))
	assert.False(t, HasRole(models.RoleStudent, StaffRoles...))
}

type auditWriterStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	writer := &auditWriterStub{}
	r := newRouter(JWT(testTokens), Audit(writer, nil, "DOWNLOAD", "report"))

	serve(r, "Bearer admin")
	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, "DOWNLOAD", entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-admin", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "42", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"/items/:id"`)

	serve(r, "Bearer unknown")
	assert.Len(t, writer.logs, 1)
}

func TestAuditWriterFailureDoesNotFailRequest(t *testing.T) {
	writer := &auditWriterStub{err: errors.New("db down")}
	r := newRouter(Audit(writer, nil, "DOWNLOAD", "report"))
	assert.Equal(t, http.StatusOK, serve(r, "").Code)
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer, "/metrics"))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/metrics", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"/items/:id", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.statuses)
}

func TestResponseMeta(t *testing.T) {
	var meta map[string]interface{}
	r := newRouter(WithResponseMeta(), func(c *gin.Context) { meta = ResponseMeta(c) })
	serve(r, "")
	assert.Contains(t, meta, "processing_time_ms")
}
