// Package authsvc composes tenants, users, tokens, refresh sessions, lockout,
// and the audit journal into the orchestrator flows this service exposes at
// its HTTP edge: register, login, refresh, logout, and logout-all.
//
// Nothing here touches SQL or HTTP directly; it calls down into narrower
// services, keeping transport and persistence concerns out of the
// orchestration logic.
package authsvc

import (
	"context"
	"time"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/db"
	"github.com/streamspace/authcore/internal/models"
)

// UserStore is the subset of internal/db.UserStore this service calls.
type UserStore interface {
	Create(ctx context.Context, tenantID, email, name, passwordHash string, role models.Role) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*models.User, error)
	List(ctx context.Context, tenantID string, page, size int) ([]*models.User, error)
}

// TenantStore is the subset of internal/db.TenantStore this service calls.
type TenantStore interface {
	Create(ctx context.Context, name, slug string) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// TokenService issues and verifies access tokens, implemented by
// internal/tokens.Service.
type TokenService interface {
	Issue(userID, tenantID, email, role string) (string, error)
}

// RefreshService is the refresh-token session chain, implemented by
// internal/refresh.Service.
type RefreshService interface {
	Generate(ctx context.Context, userID, tenantID, device string) (string, *models.RefreshToken, error)
	Rotate(ctx context.Context, plaintext string) (string, *models.RefreshToken, error)
	Revoke(ctx context.Context, plaintext string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// LockoutService is the progressive-lockout guard, implemented by
// internal/lockout.Service.
type LockoutService interface {
	IsLocked(ctx context.Context, tenantID, userID string) (bool, error)
	RecordFailedAttempt(ctx context.Context, tenantID, userID string) error
	ResetFailedAttempts(ctx context.Context, userID string) error
}

// AuditJournal is the subset of internal/audit.Journal this service needs.
type AuditJournal interface {
	Log(kind models.EventKind, userID, tenantID, ip, userAgent string, details map[string]interface{})
}

// Service is the auth orchestrator.
type Service struct {
	users       UserStore
	tenants     TenantStore
	tokens      TokenService
	refresh     RefreshService
	lockout     LockoutService
	audit       AuditJournal
	accessTTL   time.Duration
}

// New constructs a Service. accessTTL must match the access token's own
// lifetime so AuthResponse.ExpiresIn is accurate; it does not control token
// signing itself (internal/tokens.Service owns that).
func New(users UserStore, tenants TenantStore, tokens TokenService, refresh RefreshService, lockout LockoutService, audit AuditJournal, accessTTL time.Duration) *Service {
	return &Service{
		users:     users,
		tenants:   tenants,
		tokens:    tokens,
		refresh:   refresh,
		lockout:   lockout,
		audit:     audit,
		accessTTL: accessTTL,
	}
}

// Register creates a tenant and its first (ADMIN) user, then issues tokens.
func (s *Service) Register(ctx context.Context, tenantName, tenantSlug, email, password, userName string) (*models.AuthResponse, error) {
	exists, err := s.tenants.SlugExists(ctx, tenantSlug)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if exists {
		return nil, apperrors.TenantAlreadyExists(tenantSlug)
	}

	tenant, err := s.tenants.Create(ctx, tenantName, tenantSlug)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	s.audit.Log(models.EventTenantCreated, "", tenant.ID, "", "", map[string]interface{}{"slug": tenant.Slug})

	passwordHash, err := db.HashPassword(password)
	if err != nil {
		return nil, apperrors.InternalServer("failed to hash password")
	}

	user, err := s.users.Create(ctx, tenant.ID, email, userName, passwordHash, models.RoleAdmin)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	s.audit.Log(models.EventUserCreated, user.ID, tenant.ID, "", "", map[string]interface{}{"email": user.Email})

	return s.issueAuthResponse(ctx, user, tenant, "")
}

// Login authenticates a user within a tenant and issues tokens.
func (s *Service) Login(ctx context.Context, email, password, tenantSlug, device, ip, userAgent string) (*models.AuthResponse, error) {
	tenant, err := s.tenants.GetBySlug(ctx, tenantSlug)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if tenant == nil {
		s.audit.Log(models.EventLoginFailed, "", "", ip, userAgent, map[string]interface{}{"reason": "tenant not found"})
		return nil, apperrors.InvalidCredentials()
	}

	user, err := s.users.GetByEmail(ctx, tenant.ID, email)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if user == nil {
		s.audit.Log(models.EventLoginFailed, "", tenant.ID, ip, userAgent, map[string]interface{}{"reason": "user not found"})
		return nil, apperrors.InvalidCredentials()
	}

	locked, err := s.lockout.IsLocked(ctx, tenant.ID, user.ID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if locked {
		remaining := 0
		if user.LockoutUntil != nil {
			remaining = int(time.Until(*user.LockoutUntil).Minutes()) + 1
		}
		return nil, apperrors.AccountLocked(remaining)
	}

	if err := db.CheckPassword(user.PasswordHash, password); err != nil {
		if lockErr := s.lockout.RecordFailedAttempt(ctx, tenant.ID, user.ID); lockErr != nil {
			return nil, apperrors.DatabaseError(lockErr)
		}
		s.audit.Log(models.EventLoginFailed, user.ID, tenant.ID, ip, userAgent, map[string]interface{}{"reason": "bad password"})
		return nil, apperrors.InvalidCredentials()
	}

	if !user.Active {
		s.audit.Log(models.EventLoginFailed, user.ID, tenant.ID, ip, userAgent, map[string]interface{}{"reason": "inactive"})
		return nil, apperrors.InvalidCredentials()
	}

	if err := s.lockout.ResetFailedAttempts(ctx, user.ID); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	resp, err := s.issueAuthResponse(ctx, user, tenant, device)
	if err != nil {
		return nil, err
	}
	s.audit.Log(models.EventLoginSuccess, user.ID, tenant.ID, ip, userAgent, nil)
	return resp, nil
}

// Refresh rotates a presented refresh token and issues a fresh access token.
func (s *Service) Refresh(ctx context.Context, refreshPlaintext, ip, userAgent string) (*models.AuthResponse, error) {
	newPlaintext, record, err := s.refresh.Rotate(ctx, refreshPlaintext)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if user == nil {
		return nil, apperrors.UserNotFound(record.UserID)
	}
	if user.IsLocked(time.Now()) {
		return nil, apperrors.AccountLocked(int(time.Until(*user.LockoutUntil).Minutes()) + 1)
	}

	accessToken, err := s.tokens.Issue(user.ID, user.TenantID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalServer("failed to issue access token")
	}

	s.audit.Log(models.EventTokenRefresh, user.ID, user.TenantID, ip, userAgent, nil)

	return &models.AuthResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: newPlaintext,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		UserID:       user.ID,
		TenantID:     user.TenantID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
	}, nil
}

// Logout revokes a single refresh token.
func (s *Service) Logout(ctx context.Context, refreshPlaintext, userID, tenantID, ip, userAgent string) error {
	if err := s.refresh.Revoke(ctx, refreshPlaintext); err != nil {
		return err
	}
	s.audit.Log(models.EventLogout, userID, tenantID, ip, userAgent, nil)
	return nil
}

// LogoutAll revokes every active refresh token for a user.
func (s *Service) LogoutAll(ctx context.Context, userID, tenantID, ip, userAgent string) (int64, error) {
	count, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.audit.Log(models.EventLogout, userID, tenantID, ip, userAgent, map[string]interface{}{
		"scope":        "all",
		"revokedCount": count,
	})
	return count, nil
}

func (s *Service) issueAuthResponse(ctx context.Context, user *models.User, tenant *models.Tenant, device string) (*models.AuthResponse, error) {
	accessToken, err := s.tokens.Issue(user.ID, tenant.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalServer("failed to issue access token")
	}

	refreshPlaintext, _, err := s.refresh.Generate(ctx, user.ID, tenant.ID, device)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: refreshPlaintext,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		UserID:       user.ID,
		TenantID:     tenant.ID,
		TenantName:   tenant.Name,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
	}, nil
}
