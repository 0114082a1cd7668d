package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// secretHasher generates and verifies refresh-token secrets. It splits each
// token into two hashes: a fast SHA-256 lookup hash usable as a database
// index, and a slow bcrypt secret hash that guards against an attacker who
// has read access to the table but not the plaintext token. Neither hash
// alone is sufficient to authenticate a presented token.
type secretHasher struct {
	bcryptCost int
}

func newSecretHasher() *secretHasher {
	return &secretHasher{bcryptCost: bcrypt.DefaultCost}
}

// generate produces a fresh plaintext refresh token plus its lookup and
// secret hashes. The plaintext is returned to the caller exactly once; only
// the two hashes are persisted.
func (h *secretHasher) generate(byteLen int) (plaintext, lookupHash, secretHash string, err error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	plaintext = base64.URLEncoding.EncodeToString(buf)

	lookupHash = h.lookupHash(plaintext)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash refresh secret: %w", err)
	}
	secretHash = string(hashed)

	return plaintext, lookupHash, secretHash, nil
}

// lookupHash computes the deterministic index hash for plaintext, used to
// find a candidate row before the slow bcrypt comparison.
func (h *secretHasher) lookupHash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// verifySecret reports whether plaintext matches secretHash. Constant-time
// by virtue of bcrypt.CompareHashAndPassword.
func (h *secretHasher) verifySecret(plaintext, secretHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(plaintext)) == nil
}
