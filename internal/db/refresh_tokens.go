package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamspace/authcore/internal/models"
)

// RefreshTokenStore handles database operations for refresh-token records.
// It never sees a plaintext secret: callers hash the secret (lookup + bcrypt)
// before calling in, mirroring the fast-lookup/slow-verify split this
// codebase uses for session tokens.
type RefreshTokenStore struct {
	db *sql.DB
}

// NewRefreshTokenStore constructs a RefreshTokenStore over an existing pool.
func NewRefreshTokenStore(db *sql.DB) *RefreshTokenStore {
	return &RefreshTokenStore{db: db}
}

const refreshTokenColumns = `id, user_id, tenant_id, lookup_hash, secret_hash, device, expires_at, revoked, created_at`

func scanRefreshToken(row interface{ Scan(...interface{}) error }) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	var device sql.NullString
	if err := row.Scan(&rt.ID, &rt.UserID, &rt.TenantID, &rt.LookupHash, &rt.SecretHash,
		&device, &rt.ExpiresAt, &rt.Revoked, &rt.CreatedAt); err != nil {
		return nil, err
	}
	rt.Device = device.String
	return rt, nil
}

// Insert persists a new, non-revoked refresh-token record.
func (s *RefreshTokenStore) Insert(ctx context.Context, userID, tenantID, lookupHash, secretHash, device string, expiresAt time.Time) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		TenantID:   tenantID,
		LookupHash: lookupHash,
		SecretHash: secretHash,
		Device:     device,
		ExpiresAt:  expiresAt,
		Revoked:    false,
		CreatedAt:  time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, tenant_id, lookup_hash, secret_hash, device, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rt.ID, rt.UserID, rt.TenantID, rt.LookupHash, rt.SecretHash, nullableString(rt.Device), rt.ExpiresAt, rt.Revoked, rt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}
	return rt, nil
}

// InsertTx is Insert executed inside an existing transaction, used by
// rotation so the old-revoke and new-insert commit atomically.
func (s *RefreshTokenStore) InsertTx(ctx context.Context, tx *sql.Tx, userID, tenantID, lookupHash, secretHash, device string, expiresAt time.Time) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		TenantID:   tenantID,
		LookupHash: lookupHash,
		SecretHash: secretHash,
		Device:     device,
		ExpiresAt:  expiresAt,
		Revoked:    false,
		CreatedAt:  time.Now(),
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, tenant_id, lookup_hash, secret_hash, device, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rt.ID, rt.UserID, rt.TenantID, rt.LookupHash, rt.SecretHash, nullableString(rt.Device), rt.ExpiresAt, rt.Revoked, rt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}
	return rt, nil
}

// GetByLookupHash finds the (at most one) record matching the fast lookup
// index. The caller still must bcrypt-compare the plaintext against
// SecretHash before trusting the result.
func (s *RefreshTokenStore) GetByLookupHash(ctx context.Context, lookupHash string) (*models.RefreshToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE lookup_hash = $1`, lookupHash)
	rt, err := scanRefreshToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rt, err
}

// GetByLookupHashTx is GetByLookupHash scoped to an existing transaction, so
// rotation reads and writes the same row under one commit.
func (s *RefreshTokenStore) GetByLookupHashTx(ctx context.Context, tx *sql.Tx, lookupHash string) (*models.RefreshToken, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE lookup_hash = $1`, lookupHash)
	rt, err := scanRefreshToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rt, err
}

// Revoke marks a single record revoked. Idempotent: revoking an
// already-revoked record is a no-op success.
func (s *RefreshTokenStore) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = true WHERE id = $1`, id)
	return err
}

// RevokeTx is Revoke scoped to an existing transaction.
func (s *RefreshTokenStore) RevokeTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = true WHERE id = $1`, id)
	return err
}

// RevokeAllForUser marks every currently-active record for a user revoked in
// one statement and reports how many rows changed.
func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all for user: %w", err)
	}
	return res.RowsAffected()
}

// CleanupExpired deletes records whose expiry lies before the cutoff,
// safe to run on a schedule.
func (s *RefreshTokenStore) CleanupExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

// CleanupOldRevoked deletes revoked records older than the cutoff, distinct
// from CleanupExpired since a revoked-but-not-yet-expired record is still
// load-bearing for reuse detection until it ages out.
func (s *RefreshTokenStore) CleanupOldRevoked(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE revoked = true AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("cleanup old revoked refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

// BeginTx starts a transaction for rotation's atomic revoke+insert.
func (s *RefreshTokenStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
