package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/authsvc"
	"github.com/streamspace/authcore/internal/models"
	"github.com/streamspace/authcore/internal/ratelimit"
	"github.com/streamspace/authcore/internal/reqctx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers struct {
	byID map[string]*models.User
}

func (s *stubUsers) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return s.byID[userID], nil
}

func (s *stubUsers) List(ctx context.Context, tenantID string, page, size int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range s.byID {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubLockout struct {
	unlocked []string
	err      error
}

func (s *stubLockout) Unlock(ctx context.Context, tenantID, userID string) error {
	if s.err != nil {
		return s.err
	}
	s.unlocked = append(s.unlocked, userID)
	return nil
}

type stubAudit struct {
	lastFilter models.AuditFilter
	entries    []*models.AuditEntry
}

func (s *stubAudit) Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	s.lastFilter = filter
	return s.entries, nil
}

type stubKeys struct {
	rotated string
	err     error
}

func (s *stubKeys) Rotate(newMaterial string) error {
	if s.err != nil {
		return s.err
	}
	s.rotated = newMaterial
	return nil
}

// fakePrincipalAuth simulates a successful BearerAuth pass, stamping a fixed
// principal without needing a real *tokens.Service.
func fakePrincipalAuth(p reqctx.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqctx.WithPrincipal(c, p)
		c.Next()
	}
}

func denyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, apperrors.Unauthorized("nope").ToResponse())
		c.Abort()
	}
}

func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !reqctx.IsAdmin(c) {
			c.JSON(http.StatusForbidden, apperrors.Forbidden("admin role required").ToResponse())
			c.Abort()
			return
		}
		c.Next()
	}
}

func newTestRouter(t *testing.T, principal reqctx.Principal, users UserStore, lockoutSvc LockoutManager, audit AuditQuerier, keyRotator KeyRotator, authSvc *authsvc.Service) *gin.Engine {
	t.Helper()
	limiter := ratelimit.New(time.Minute)
	h := New(authSvc, users, lockoutSvc, audit, keyRotator, limiter, RateLimitConfig{
		LoginCapacity:    1000,
		LoginPeriod:      time.Minute,
		RegisterCapacity: 1000,
		RegisterPeriod:   time.Minute,
	})

	router := gin.New()
	h.Register(router, fakePrincipalAuth(principal), adminOnly(), nil, nil)
	return router
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewBuffer(b)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth_ReturnsOK(t *testing.T) {
	router := newTestRouter(t, reqctx.Principal{}, &stubUsers{byID: map[string]*models.User{}}, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)
	rec := doRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUser_ReturnsNotFoundAcrossTenants(t *testing.T) {
	users := &stubUsers{byID: map[string]*models.User{
		"u1": {ID: "u1", TenantID: "tenant-other", Email: "x@y.com", Active: true},
	}}
	principal := reqctx.Principal{UserID: "caller", TenantID: "tenant-mine", Role: "USER"}
	router := newTestRouter(t, principal, users, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodGet, "/api/users/u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUser_ReturnsUserWithinTenant(t *testing.T) {
	users := &stubUsers{byID: map[string]*models.User{
		"u1": {ID: "u1", TenantID: "tenant-mine", Email: "x@y.com", Name: "X", Active: true},
	}}
	principal := reqctx.Principal{UserID: "caller", TenantID: "tenant-mine", Role: "USER"}
	router := newTestRouter(t, principal, users, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodGet, "/api/users/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "x@y.com", resp.Email)
}

func TestListUsers_ScopedToCallerTenant(t *testing.T) {
	users := &stubUsers{byID: map[string]*models.User{
		"u1": {ID: "u1", TenantID: "tenant-mine", Email: "a@a.com", Active: true},
		"u2": {ID: "u2", TenantID: "tenant-other", Email: "b@b.com", Active: true},
	}}
	principal := reqctx.Principal{UserID: "caller", TenantID: "tenant-mine", Role: "USER"}
	router := newTestRouter(t, principal, users, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []models.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "a@a.com", resp[0].Email)
}

func TestAdminRoutes_RejectNonAdmin(t *testing.T) {
	principal := reqctx.Principal{UserID: "caller", TenantID: "tenant-mine", Role: "USER"}
	router := newTestRouter(t, principal, &stubUsers{byID: map[string]*models.User{}}, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodGet, "/api/admin/audit-logs", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAuditLogs_ScopesFilterToCallerTenant(t *testing.T) {
	audit := &stubAudit{entries: []*models.AuditEntry{{ID: "e1", EventKind: models.EventLoginSuccess}}}
	principal := reqctx.Principal{UserID: "admin-1", TenantID: "tenant-mine", Role: "ADMIN"}
	router := newTestRouter(t, principal, &stubUsers{byID: map[string]*models.User{}}, &stubLockout{}, audit, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodGet, "/api/admin/audit-logs?eventType=LOGIN_SUCCESS", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tenant-mine", audit.lastFilter.TenantID)
	assert.Equal(t, "LOGIN_SUCCESS", audit.lastFilter.EventKind)
}

func TestRotateKey_RejectsShortSecret(t *testing.T) {
	principal := reqctx.Principal{UserID: "admin-1", TenantID: "tenant-mine", Role: "ADMIN"}
	router := newTestRouter(t, principal, &stubUsers{byID: map[string]*models.User{}}, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodPost, "/api/admin/security/rotate-jwt-key", RotateKeyRequest{NewSecret: "too-short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRotateKey_AppliesValidSecret(t *testing.T) {
	keys := &stubKeys{}
	principal := reqctx.Principal{UserID: "admin-1", TenantID: "tenant-mine", Role: "ADMIN"}
	router := newTestRouter(t, principal, &stubUsers{byID: map[string]*models.User{}}, &stubLockout{}, &stubAudit{}, keys, nil)

	secret := "0123456789abcdef0123456789abcdef"
	rec := doRequest(router, http.MethodPost, "/api/admin/security/rotate-jwt-key", RotateKeyRequest{NewSecret: secret})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, secret, keys.rotated)
}

func TestLockoutStatus_ReportsLockedUser(t *testing.T) {
	future := timeNowPlus(time.Hour)
	users := &stubUsers{byID: map[string]*models.User{
		"u1": {ID: "u1", TenantID: "tenant-mine", FailedLoginAttempts: 5, LockoutUntil: &future},
	}}
	principal := reqctx.Principal{UserID: "admin-1", TenantID: "tenant-mine", Role: "ADMIN"}
	router := newTestRouter(t, principal, users, &stubLockout{}, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodGet, "/api/admin/users/u1/lockout-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.LockoutInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.IsLocked)
	assert.Equal(t, 5, info.FailedAttempts)
	require.NotNil(t, info.RemainingMinutes)
}

func TestUnlock_CallsLockoutService(t *testing.T) {
	users := &stubUsers{byID: map[string]*models.User{
		"u1": {ID: "u1", TenantID: "tenant-mine"},
	}}
	lockoutSvc := &stubLockout{}
	principal := reqctx.Principal{UserID: "admin-1", TenantID: "tenant-mine", Role: "ADMIN"}
	router := newTestRouter(t, principal, users, lockoutSvc, &stubAudit{}, &stubKeys{}, nil)

	rec := doRequest(router, http.MethodPost, "/api/admin/users/u1/unlock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, lockoutSvc.unlocked, "u1")
}

func timeNowPlus(d time.Duration) time.Time {
	return time.Now().Add(d)
}
