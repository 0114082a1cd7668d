package httpapi

// RegisterRequest is the /api/auth/register body.
type RegisterRequest struct {
	TenantName string `json:"tenantName" binding:"required,min=1,max=200"`
	TenantSlug string `json:"tenantSlug" binding:"required,min=1,max=63"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	UserName   string `json:"userName" binding:"required,min=1,max=200"`
}

// LoginRequest is the /api/auth/login body.
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	TenantSlug string `json:"tenantSlug" binding:"required"`
	Device     string `json:"device"`
}

// RefreshRequest is the /api/auth/refresh and /api/auth/logout body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RotateKeyRequest is the /api/admin/security/rotate-jwt-key body.
type RotateKeyRequest struct {
	NewSecret string `json:"newSecret" binding:"required,min=32"`
}

// LogoutAllResponse is the /api/auth/logout-all success body.
type LogoutAllResponse struct {
	RevokedCount int64 `json:"revokedCount"`
}
