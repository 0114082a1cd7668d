package refresh

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/models"
)

type fakeAudit struct {
	events []fakeAuditEvent
}

type fakeAuditEvent struct {
	kind     models.EventKind
	userID   string
	tenantID string
	details  map[string]interface{}
}

func (f *fakeAudit) Log(kind models.EventKind, userID, tenantID, ip, userAgent string, details map[string]interface{}) {
	f.events = append(f.events, fakeAuditEvent{kind: kind, userID: userID, tenantID: tenantID, details: details})
}

// fakeStore is an in-memory Store double, used for tests that exercise
// control flow (reuse detection, expiry) without a live database.
type fakeStore struct {
	records map[string]*models.RefreshToken // keyed by lookup hash
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.RefreshToken)}
}

func (f *fakeStore) Insert(ctx context.Context, userID, tenantID, lookupHash, secretHash, device string, expiresAt time.Time) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{ID: lookupHash, UserID: userID, TenantID: tenantID, LookupHash: lookupHash, SecretHash: secretHash, Device: device, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	f.records[lookupHash] = rt
	return rt, nil
}

func (f *fakeStore) InsertTx(ctx context.Context, tx *sql.Tx, userID, tenantID, lookupHash, secretHash, device string, expiresAt time.Time) (*models.RefreshToken, error) {
	return f.Insert(ctx, userID, tenantID, lookupHash, secretHash, device, expiresAt)
}

func (f *fakeStore) GetByLookupHash(ctx context.Context, lookupHash string) (*models.RefreshToken, error) {
	return f.records[lookupHash], nil
}

func (f *fakeStore) GetByLookupHashTx(ctx context.Context, tx *sql.Tx, lookupHash string) (*models.RefreshToken, error) {
	return f.GetByLookupHash(ctx, lookupHash)
}

func (f *fakeStore) Revoke(ctx context.Context, id string) error {
	for _, r := range f.records {
		if r.ID == id {
			r.Revoked = true
		}
	}
	return nil
}

func (f *fakeStore) RevokeTx(ctx context.Context, tx *sql.Tx, id string) error {
	return f.Revoke(ctx, id)
}

func (f *fakeStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.UserID == userID && !r.Revoked {
			r.Revoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CleanupExpired(ctx context.Context, before time.Time) (int64, error) { return 0, nil }
func (f *fakeStore) CleanupOldRevoked(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// BeginTx returns a real *sql.Tx from a sqlmock database so the service's
// tx.Rollback()/tx.Commit() calls against the fake store are no-ops against
// a harmless mock connection instead of panicking on a nil *sql.Tx.
func (f *fakeStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	mock.ExpectBegin()
	mock.MatchExpectationsInOrder(false)
	mock.ExpectCommit()
	mock.ExpectRollback()
	return sqlDB.BeginTx(ctx, nil)
}

func TestGenerateAndValidate(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAudit{}, time.Hour)

	plaintext, record, err := svc.Generate(context.Background(), "user-1", "tenant-1", "chrome")
	require.NoError(t, err)
	assert.NotEmpty(t, plaintext)
	assert.Equal(t, "user-1", record.UserID)

	valid, err := svc.Validate(context.Background(), plaintext)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = svc.Validate(context.Background(), "not-the-right-token")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRotate_Success(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAudit{}, time.Hour)

	plaintext, oldRecord, err := svc.Generate(context.Background(), "user-1", "tenant-1", "")
	require.NoError(t, err)

	newPlaintext, newRecord, err := svc.Rotate(context.Background(), plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, newPlaintext)
	assert.NotEqual(t, oldRecord.ID, newRecord.ID)

	stillValid, err := svc.Validate(context.Background(), plaintext)
	require.NoError(t, err)
	assert.False(t, stillValid)

	newValid, err := svc.Validate(context.Background(), newPlaintext)
	require.NoError(t, err)
	assert.True(t, newValid)
}

func TestRotate_ReuseDetected(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	svc := New(store, audit, time.Hour)

	plaintext, _, err := svc.Generate(context.Background(), "user-1", "tenant-1", "")
	require.NoError(t, err)

	// A second active session for the same user, so we can observe revoke-all.
	_, other, err := svc.Generate(context.Background(), "user-1", "tenant-1", "other-device")
	require.NoError(t, err)

	_, _, err = svc.Rotate(context.Background(), plaintext)
	require.NoError(t, err)

	// Presenting the now-revoked original token again signals reuse.
	_, _, err = svc.Rotate(context.Background(), plaintext)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeTokenReuse, appErr.Code)

	assert.True(t, store.records[other.LookupHash].Revoked, "reuse must revoke every active session for the user")
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.EventSuspiciousActivity, audit.events[0].kind)
}

func TestValidate_ExpiredRecordIsInvalid(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAudit{}, time.Hour)

	plaintext, record, err := svc.Generate(context.Background(), "user-1", "tenant-1", "")
	require.NoError(t, err)
	record.ExpiresAt = time.Now().Add(-time.Minute)

	valid, err := svc.Validate(context.Background(), plaintext)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRevoke_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAudit{}, time.Hour)

	err := svc.Revoke(context.Background(), "never-issued")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeTokenNotFound, appErr.Code)
}

func TestRevokeAllForUser_IdempotentSecondCallIsZero(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeAudit{}, time.Hour)

	_, _, err := svc.Generate(context.Background(), "user-1", "tenant-1", "")
	require.NoError(t, err)

	count, err := svc.RevokeAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.RevokeAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSecretHasherProducesBcryptVerifiableSecret(t *testing.T) {
	h := newSecretHasher()
	plaintext, lookup, secret, err := h.generate(plaintextBytes)
	require.NoError(t, err)
	assert.Len(t, lookup, 64) // hex-encoded sha256
	assert.Equal(t, lookup, h.lookupHash(plaintext))
	assert.True(t, h.verifySecret(plaintext, secret))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(secret), []byte(plaintext)))
}
