// Package refresh implements the refresh-token session chain: generation,
// validation, one-time-use rotation, and reuse (theft) detection.
//
// Entropy and hashing follow this codebase's existing split between a slow
// hash for long-lived secrets and a fast hash for lookup (see tokenhash.go's
// secretHasher, adapted from this repo's general-purpose token hasher): the
// plaintext is 256 bits from crypto/rand, base64 URL-encoded; a SHA-256
// digest narrows the candidate row; a bcrypt digest is the actual
// comparison, so a stolen row alone is not enough to forge the token.
package refresh

import (
	"context"
	"database/sql"
	"time"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/logger"
	"github.com/streamspace/authcore/internal/models"
)

// plaintextBytes is the refresh secret's entropy: 32 bytes (256 bits).
const plaintextBytes = 32

// DefaultTTL is the refresh token's default lifetime.
const DefaultTTL = 30 * 24 * time.Hour

// Store is the persistence surface RefreshService needs, implemented by
// internal/db.RefreshTokenStore.
type Store interface {
	Insert(ctx context.Context, userID, tenantID, lookupHash, secretHash, device string, expiresAt time.Time) (*models.RefreshToken, error)
	InsertTx(ctx context.Context, tx *sql.Tx, userID, tenantID, lookupHash, secretHash, device string, expiresAt time.Time) (*models.RefreshToken, error)
	GetByLookupHash(ctx context.Context, lookupHash string) (*models.RefreshToken, error)
	GetByLookupHashTx(ctx context.Context, tx *sql.Tx, lookupHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeTx(ctx context.Context, tx *sql.Tx, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	CleanupExpired(ctx context.Context, before time.Time) (int64, error)
	CleanupOldRevoked(ctx context.Context, before time.Time) (int64, error)
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// AuditJournal is the subset of internal/audit.Journal this service needs,
// defined here (consumer side) so refresh never imports the audit package.
type AuditJournal interface {
	Log(kind models.EventKind, userID, tenantID, ip, userAgent string, details map[string]interface{})
}

// Service implements generate/validate/rotate/revoke over Store.
type Service struct {
	store  Store
	audit  AuditJournal
	ttl    time.Duration
	hasher *secretHasher
}

// New constructs a Service. ttl <= 0 uses DefaultTTL.
func New(store Store, audit AuditJournal, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, audit: audit, ttl: ttl, hasher: newSecretHasher()}
}

// Generate creates and persists a new refresh token for userId/tenantId,
// returning the plaintext (shown to the caller exactly once) and the stored
// record.
func (s *Service) Generate(ctx context.Context, userID, tenantID, device string) (string, *models.RefreshToken, error) {
	plaintext, lookupHash, secretHash, err := s.hasher.generate(plaintextBytes)
	if err != nil {
		return "", nil, err
	}

	record, err := s.store.Insert(ctx, userID, tenantID, lookupHash, secretHash, device, time.Now().Add(s.ttl))
	if err != nil {
		return "", nil, apperrors.DatabaseError(err)
	}
	return plaintext, record, nil
}

// Validate reports whether plaintext matches a stored, currently-usable
// (not-revoked, not-expired) record.
func (s *Service) Validate(ctx context.Context, plaintext string) (bool, error) {
	lookupHash := s.hasher.lookupHash(plaintext)

	record, err := s.store.GetByLookupHash(ctx, lookupHash)
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	if record == nil {
		return false, nil
	}
	if !s.hasher.verifySecret(plaintext, record.SecretHash) {
		return false, nil
	}
	return record.Valid(time.Now()), nil
}

// Rotate atomically validates plaintext, revokes the matched record, and
// issues a fresh one, all within a single transaction. A presented token
// that matches an already-revoked record is treated as a reuse event: every
// active token for that user is revoked, a SUSPICIOUS_ACTIVITY audit event
// is emitted, and the call fails with TokenReuse.
func (s *Service) Rotate(ctx context.Context, plaintext string) (string, *models.RefreshToken, error) {
	lookupHash := s.hasher.lookupHash(plaintext)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return "", nil, apperrors.DatabaseError(err)
	}
	defer tx.Rollback()

	record, err := s.store.GetByLookupHashTx(ctx, tx, lookupHash)
	if err != nil {
		return "", nil, apperrors.DatabaseError(err)
	}
	if record == nil || !s.hasher.verifySecret(plaintext, record.SecretHash) {
		return "", nil, apperrors.TokenNotFound()
	}

	if record.Revoked {
		if err := tx.Rollback(); err != nil {
			logger.Audit().Warn().Err(err).Msg("rollback failed during reuse detection")
		}
		count, revokeErr := s.store.RevokeAllForUser(ctx, record.UserID)
		if revokeErr != nil {
			logger.Audit().Error().Err(revokeErr).Str("userId", record.UserID).Msg("failed to revoke all sessions after token reuse")
		}
		s.audit.Log(models.EventSuspiciousActivity, record.UserID, record.TenantID, "", "", map[string]interface{}{
			"reason":        "refresh token reuse",
			"revokedCount":  count,
			"tokenRecordId": record.ID,
		})
		return "", nil, apperrors.TokenReuse()
	}

	if !record.Valid(time.Now()) {
		return "", nil, apperrors.TokenExpired()
	}

	if err := s.store.RevokeTx(ctx, tx, record.ID); err != nil {
		return "", nil, apperrors.DatabaseError(err)
	}

	newPlaintext, newLookupHash, newSecretHash, err := s.hasher.generate(plaintextBytes)
	if err != nil {
		return "", nil, err
	}

	newRecord, err := s.store.InsertTx(ctx, tx, record.UserID, record.TenantID, newLookupHash, newSecretHash, record.Device, time.Now().Add(s.ttl))
	if err != nil {
		return "", nil, apperrors.DatabaseError(err)
	}

	if err := tx.Commit(); err != nil {
		return "", nil, apperrors.DatabaseError(err)
	}
	return newPlaintext, newRecord, nil
}

// Revoke marks the matching record revoked. Idempotent; TokenNotFound if
// nothing matches.
func (s *Service) Revoke(ctx context.Context, plaintext string) error {
	lookupHash := s.hasher.lookupHash(plaintext)

	record, err := s.store.GetByLookupHash(ctx, lookupHash)
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if record == nil {
		return apperrors.TokenNotFound()
	}
	if err := s.store.Revoke(ctx, record.ID); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// RevokeAllForUser revokes every active refresh token for a user and
// returns how many were affected. Idempotent: a second call returns 0.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.store.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return count, nil
}

// CleanupExpired purges expired records older than before.
func (s *Service) CleanupExpired(ctx context.Context, before time.Time) (int64, error) {
	count, err := s.store.CleanupExpired(ctx, before)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return count, nil
}

// CleanupOldRevoked purges revoked records created before before.
func (s *Service) CleanupOldRevoked(ctx context.Context, before time.Time) (int64, error) {
	count, err := s.store.CleanupOldRevoked(ctx, before)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return count, nil
}
