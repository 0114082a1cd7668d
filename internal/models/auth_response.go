package models

// AuthResponse is the payload returned by register/login/refresh.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	UserID       string `json:"userId"`
	TenantID     string `json:"tenantId"`
	TenantName   string `json:"tenantName"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
}
