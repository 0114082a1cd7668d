package lockout

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/authcore/internal/db"
	"github.com/streamspace/authcore/internal/models"
)

type fakeAudit struct {
	events []fakeEvent
}

type fakeEvent struct {
	kind    models.EventKind
	details map[string]interface{}
}

func (f *fakeAudit) Log(kind models.EventKind, userID, tenantID, ip, userAgent string, details map[string]interface{}) {
	f.events = append(f.events, fakeEvent{kind: kind, details: details})
}

type fakeStore struct {
	user                *models.User
	failedLoginAttempts int
	lockoutUntil        *time.Time
}

func (f *fakeStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return f.user, nil
}

func (f *fakeStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()
	return sqlDB.BeginTx(ctx, nil)
}

func (f *fakeStore) GetForLockoutUpdate(ctx context.Context, tx *sql.Tx, userID string) (*db.LockoutRow, error) {
	return &db.LockoutRow{FailedLoginAttempts: f.failedLoginAttempts, LockoutUntil: f.lockoutUntil}, nil
}

func (f *fakeStore) SetLockoutState(ctx context.Context, tx *sql.Tx, userID string, attempts int, lockoutUntil *time.Time, lastFailed *time.Time) error {
	f.failedLoginAttempts = attempts
	f.lockoutUntil = lockoutUntil
	if f.user != nil {
		f.user.FailedLoginAttempts = attempts
		f.user.LockoutUntil = lockoutUntil
	}
	return nil
}

func TestRecordFailedAttempt_BelowThresholdDoesNotLock(t *testing.T) {
	store := &fakeStore{user: &models.User{ID: "user-1"}}
	audit := &fakeAudit{}
	svc := New(store, audit, nil)

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.RecordFailedAttempt(context.Background(), "tenant-1", "user-1"))
	}

	assert.Equal(t, 4, store.failedLoginAttempts)
	assert.Nil(t, store.lockoutUntil)
	assert.Empty(t, audit.events)
}

func TestRecordFailedAttempt_FifthAttemptLocksFor15Minutes(t *testing.T) {
	store := &fakeStore{user: &models.User{ID: "user-1"}, failedLoginAttempts: 4}
	audit := &fakeAudit{}
	svc := New(store, audit, nil)

	require.NoError(t, svc.RecordFailedAttempt(context.Background(), "tenant-1", "user-1"))

	require.NotNil(t, store.lockoutUntil)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *store.lockoutUntil, 2*time.Second)
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.EventAccountLocked, audit.events[0].kind)
}

func TestRecordFailedAttempt_TenthAttemptLocksForOneHour(t *testing.T) {
	store := &fakeStore{user: &models.User{ID: "user-1"}, failedLoginAttempts: 9}
	svc := New(store, &fakeAudit{}, nil)

	require.NoError(t, svc.RecordFailedAttempt(context.Background(), "tenant-1", "user-1"))

	require.NotNil(t, store.lockoutUntil)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *store.lockoutUntil, 2*time.Second)
}

func TestRecordFailedAttempt_BeyondFifteenStaysAtTwentyFourHourCeiling(t *testing.T) {
	store := &fakeStore{user: &models.User{ID: "user-1"}, failedLoginAttempts: 20}
	svc := New(store, &fakeAudit{}, nil)

	require.NoError(t, svc.RecordFailedAttempt(context.Background(), "tenant-1", "user-1"))

	require.NotNil(t, store.lockoutUntil)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *store.lockoutUntil, 2*time.Second)
}

func TestIsLocked_TrueWhileWithinWindow(t *testing.T) {
	future := time.Now().Add(10 * time.Minute)
	store := &fakeStore{user: &models.User{ID: "user-1", LockoutUntil: &future}}
	svc := New(store, &fakeAudit{}, nil)

	locked, err := svc.IsLocked(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestIsLocked_SelfHealsPastDeadline(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	store := &fakeStore{user: &models.User{ID: "user-1", LockoutUntil: &past}}
	audit := &fakeAudit{}
	svc := New(store, audit, nil)

	locked, err := svc.IsLocked(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Nil(t, store.lockoutUntil)
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.EventAccountUnlocked, audit.events[0].kind)
	assert.Equal(t, "automatic", audit.events[0].details["reason"])
}

func TestResetFailedAttempts_ClearsCounterAndLockout(t *testing.T) {
	future := time.Now().Add(time.Hour)
	store := &fakeStore{user: &models.User{ID: "user-1"}, failedLoginAttempts: 7, lockoutUntil: &future}
	svc := New(store, &fakeAudit{}, nil)

	require.NoError(t, svc.ResetFailedAttempts(context.Background(), "user-1"))
	assert.Equal(t, 0, store.failedLoginAttempts)
	assert.Nil(t, store.lockoutUntil)
}

func TestUnlock_EmitsManualReason(t *testing.T) {
	future := time.Now().Add(time.Hour)
	store := &fakeStore{user: &models.User{ID: "user-1"}, failedLoginAttempts: 7, lockoutUntil: &future}
	audit := &fakeAudit{}
	svc := New(store, audit, nil)

	require.NoError(t, svc.Unlock(context.Background(), "tenant-1", "user-1"))
	assert.Nil(t, store.lockoutUntil)
	require.Len(t, audit.events, 1)
	assert.Equal(t, "manual", audit.events[0].details["reason"])
}
