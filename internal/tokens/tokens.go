// Package tokens implements TokenService: issuance and verification of
// signed access tokens.
//
// Key material comes from internal/keys.Provider instead of a single static
// secret, so a token carries a "kid" header identifying which key signed it.
// Verification looks the key up by kid, which is what lets a rotation leave
// in-flight tokens valid through their grace window (see internal/keys).
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/keys"
)

// Claims are the access token's payload. Minimal by design: enough to
// authorize a request without a database round trip.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`

	jwt.RegisteredClaims
}

// Service issues and verifies access tokens against a rotating key table.
type Service struct {
	keys     *keys.Provider
	issuer   string
	duration time.Duration
}

// New constructs a Service. duration is the access token lifetime, set from
// JWT_EXPIRATION_MS.
func New(kp *keys.Provider, issuer string, duration time.Duration) *Service {
	if issuer == "" {
		issuer = "authcore"
	}
	if duration <= 0 {
		duration = time.Hour
	}
	return &Service{keys: kp, issuer: issuer, duration: duration}
}

// Issue signs a new access token for the given principal, keyed under the
// provider's current signing key, and records that key's id in the "kid"
// header so Verify can find it again after a rotation.
func (s *Service) Issue(userID, tenantID, email, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		TenantID: tenantID,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}

	keyID, material := s.keys.Current()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(material)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString, rejecting anything not signed
// with HMAC (blocking both the "alg: none" and asymmetric-substitution
// attacks) and anything whose kid does not resolve to a still-valid key.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		material, ok := s.keys.ByID(kid)
		if !ok {
			return nil, apperrors.UnknownKey()
		}
		return material, nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.TokenInvalid()
	}
	return claims, nil
}

// UserID extracts the subject claim without requiring full re-validation,
// for call sites that already hold a verified Claims.
func (c *Claims) UserID() string {
	return c.Subject
}
