// Package httpapi is the HTTP edge: gin handlers for every route this
// service exposes, translating HTTP requests into internal/authsvc.Service
// calls and internal/apperrors.AppError values back into JSON error bodies.
//
// Handlers never touch SQL, tokens, or the audit queue directly; they call
// down into the service layer instead of embedding queries inline.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/authsvc"
	"github.com/streamspace/authcore/internal/keys"
	"github.com/streamspace/authcore/internal/lockout"
	"github.com/streamspace/authcore/internal/models"
	"github.com/streamspace/authcore/internal/ratelimit"
	"github.com/streamspace/authcore/internal/reqctx"
)

// UserStore is the subset of internal/db.UserStore the HTTP edge needs
// directly, beyond what internal/authsvc.Service already wraps.
type UserStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context, tenantID string, page, size int) ([]*models.User, error)
}

// AuditQuerier is the subset of internal/audit.Journal the admin audit-log
// listing endpoint needs.
type AuditQuerier interface {
	Query(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error)
}

// LockoutManager is the subset of internal/lockout.Service the admin
// unlock endpoint needs.
type LockoutManager interface {
	Unlock(ctx context.Context, tenantID, userID string) error
}

// KeyRotator is the subset of internal/keys.Provider the admin key-rotation
// endpoint needs.
type KeyRotator interface {
	Rotate(newMaterial string) error
}

// Handler holds every collaborator the HTTP edge calls into. The users,
// lockout, audit and keys fields are interface-typed so tests can substitute
// fakes the same way internal/authsvc's own tests do; auth and limiter are
// concrete types.
type Handler struct {
	auth      *authsvc.Service
	users     UserStore
	lockout   LockoutManager
	audit     AuditQuerier
	keys      KeyRotator
	limiter   *ratelimit.Limiter
	rateLimit RateLimitConfig
}

// RateLimitConfig carries the per-endpoint-class admission thresholds the
// composition root loaded from the environment, so Register doesn't reach
// past Handler for configuration the caller already parsed.
type RateLimitConfig struct {
	LoginCapacity    int
	LoginPeriod      time.Duration
	RegisterCapacity int
	RegisterPeriod   time.Duration
}

// New constructs a Handler.
func New(auth *authsvc.Service, users UserStore, lockoutSvc LockoutManager, audit AuditQuerier, keyProvider KeyRotator, limiter *ratelimit.Limiter, rateLimit RateLimitConfig) *Handler {
	return &Handler{
		auth:      auth,
		users:     users,
		lockout:   lockoutSvc,
		audit:     audit,
		keys:      keyProvider,
		limiter:   limiter,
		rateLimit: rateLimit,
	}
}

var _ LockoutManager = (*lockout.Service)(nil)
var _ KeyRotator = (*keys.Provider)(nil)

// Register mounts every route onto router. bearerAuth and requireAdmin
// are supplied by the caller (cmd/server) since they close over the
// concrete *tokens.Service and account-active checker the composition root
// constructs; Handler itself stays free of that dependency so it can be
// unit-tested without a token service. userListCache and auditLogCache are
// optional response-cache middleware for the two read-mostly listing
// endpoints (nil, or a no-op gin.HandlerFunc, when the cache is disabled);
// every other route always talks straight to its service.
func (h *Handler) Register(router gin.IRouter, bearerAuth, requireAdmin gin.HandlerFunc, userListCache, auditLogCache gin.HandlerFunc) {
	router.GET("/health", h.Health)

	authGroup := router.Group("/api/auth")
	authGroup.POST("/register", h.limiter.Middleware(ratelimit.ClassRegistration, h.rateLimit.RegisterCapacity, h.rateLimit.RegisterPeriod), h.HandleRegister)
	authGroup.POST("/login", h.limiter.Middleware(ratelimit.ClassLogin, h.rateLimit.LoginCapacity, h.rateLimit.LoginPeriod), h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", bearerAuth, h.Logout)
	authGroup.POST("/logout-all", bearerAuth, h.LogoutAll)

	users := router.Group("/api/users")
	users.Use(bearerAuth)
	if userListCache != nil {
		users.GET("", userListCache, h.ListUsers)
	} else {
		users.GET("", h.ListUsers)
	}
	users.GET("/:id", h.GetUser)

	admin := router.Group("/api/admin")
	admin.Use(bearerAuth, requireAdmin)
	if auditLogCache != nil {
		admin.GET("/audit-logs", auditLogCache, h.ListAuditLogs)
	} else {
		admin.GET("/audit-logs", h.ListAuditLogs)
	}
	admin.POST("/security/rotate-jwt-key", h.RotateKey)
	admin.GET("/users/:id/lockout-status", h.LockoutStatus)
	admin.POST("/users/:id/unlock", h.Unlock)
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleRegister handles POST /api/auth/register.
func (h *Handler) HandleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationFailed(err.Error()))
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req.TenantName, req.TenantSlug, req.Email, req.Password, req.UserName)
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationFailed(err.Error()))
		return
	}

	ip := ratelimit.ExtractIP(c)
	resp, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, req.TenantSlug, req.Device, ip, c.Request.UserAgent())
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationFailed(err.Error()))
		return
	}

	ip := ratelimit.ExtractIP(c)
	resp, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, ip, c.Request.UserAgent())
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationFailed(err.Error()))
		return
	}

	principal, _ := reqctx.FromContext(c)
	ip := ratelimit.ExtractIP(c)
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken, principal.UserID, principal.TenantID, ip, c.Request.UserAgent()); err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LogoutAll handles POST /api/auth/logout-all.
func (h *Handler) LogoutAll(c *gin.Context) {
	principal, ok := reqctx.FromContext(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	ip := ratelimit.ExtractIP(c)
	count, err := h.auth.LogoutAll(c.Request.Context(), principal.UserID, principal.TenantID, ip, c.Request.UserAgent())
	if err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, LogoutAllResponse{RevokedCount: count})
}

// GetUser handles GET /api/users/{id}. A caller may only look up users
// within their own tenant.
func (h *Handler) GetUser(c *gin.Context) {
	principal, ok := reqctx.FromContext(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	userID := c.Param("id")
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apperrors.InternalServer("failed to load user"))
		return
	}
	if user == nil || user.TenantID != principal.TenantID {
		respondError(c, apperrors.NotFound("user"))
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// ListUsers handles GET /api/users, scoped to the caller's own tenant.
func (h *Handler) ListUsers(c *gin.Context) {
	principal, ok := reqctx.FromContext(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	page := atoiOr(c.Query("page"), 1)
	size := atoiOr(c.Query("size"), 25)

	users, err := h.users.List(c.Request.Context(), principal.TenantID, page, size)
	if err != nil {
		respondError(c, apperrors.InternalServer("failed to list users"))
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}

// ListAuditLogs handles GET /api/admin/audit-logs.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	principal, _ := reqctx.FromContext(c)
	filter := models.AuditFilter{
		TenantID:  principal.TenantID,
		UserID:    c.Query("userId"),
		EventKind: c.Query("eventType"),
		Page:      atoiOr(c.Query("page"), 1),
		Size:      atoiOr(c.Query("size"), 25),
	}
	if start := c.Query("startDate"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			filter.Start = &t
		}
	}
	if end := c.Query("endDate"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			filter.End = &t
		}
	}

	entries, err := h.audit.Query(c.Request.Context(), filter)
	if err != nil {
		respondError(c, apperrors.InternalServer("failed to load audit logs"))
		return
	}
	c.JSON(http.StatusOK, entries)
}

// RotateKey handles POST /api/admin/security/rotate-jwt-key.
func (h *Handler) RotateKey(c *gin.Context) {
	var req RotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationFailed(err.Error()))
		return
	}
	if err := h.keys.Rotate(req.NewSecret); err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rotated"})
}

// LockoutStatus handles GET /api/admin/users/{id}/lockout-status.
func (h *Handler) LockoutStatus(c *gin.Context) {
	principal, _ := reqctx.FromContext(c)
	userID := c.Param("id")

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apperrors.InternalServer("failed to load user"))
		return
	}
	if user == nil || user.TenantID != principal.TenantID {
		respondError(c, apperrors.NotFound("user"))
		return
	}

	now := time.Now()
	info := models.LockoutInfo{
		UserID:         user.ID,
		IsLocked:       user.IsLocked(now),
		FailedAttempts: user.FailedLoginAttempts,
	}
	if info.IsLocked {
		info.LockedUntil = user.LockoutUntil
		remaining := int(user.LockoutUntil.Sub(now).Minutes()) + 1
		info.RemainingMinutes = &remaining
	}
	c.JSON(http.StatusOK, info)
}

// Unlock handles POST /api/admin/users/{id}/unlock.
func (h *Handler) Unlock(c *gin.Context) {
	principal, _ := reqctx.FromContext(c)
	userID := c.Param("id")

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apperrors.InternalServer("failed to load user"))
		return
	}
	if user == nil || user.TenantID != principal.TenantID {
		respondError(c, apperrors.NotFound("user"))
		return
	}

	if err := h.lockout.Unlock(c.Request.Context(), principal.TenantID, userID); err != nil {
		respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

func respondAppError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		respondError(c, appErr)
		return
	}
	respondError(c, apperrors.InternalServer(err.Error()))
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
