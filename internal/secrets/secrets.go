// Package secrets reads named secrets from the deployment environment.
//
// SecretsProvider is a pure function of environment state: no caching, no
// background refresh. Callers may read repeatedly, but the process should
// read signing material exactly once at startup and hold the derived key
// (see internal/keys).
package secrets

import (
	"os"

	"github.com/streamspace/authcore/internal/apperrors"
)

// MinSigningSecretBytes is the minimum length this codebase accepts for any
// secret used as HMAC signing material.
const MinSigningSecretBytes = 32

// Provider fetches named secrets from the environment.
type Provider interface {
	// Get returns the named secret's value, or SecretMissing if unset/blank.
	Get(name string) (string, error)

	// SigningSecret is a typed accessor for signing-key material: it applies
	// the same SecretMissing check as Get, plus a minimum-length policy
	// check that fails with SecretInvalid.
	SigningSecret(name string) (string, error)
}

// EnvProvider reads secrets from process environment variables.
type EnvProvider struct{}

// NewEnvProvider constructs the environment-backed SecretsProvider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) Get(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", apperrors.SecretMissing(name)
	}
	return v, nil
}

func (p *EnvProvider) SigningSecret(name string) (string, error) {
	v, err := p.Get(name)
	if err != nil {
		return "", err
	}
	if len(v) < MinSigningSecretBytes {
		return "", apperrors.SecretInvalid(name)
	}
	return v, nil
}
