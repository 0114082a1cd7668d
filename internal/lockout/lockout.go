// Package lockout implements progressive account lockout: per-user
// failed-login accounting with tiered lockout durations and safe
// auto-recovery.
//
// The read-modify-write of the failed-attempt counter runs under
// SELECT ... FOR UPDATE inside a database/sql transaction (the same
// row-locking idiom this codebase's quota-update paths use) so concurrent
// failed attempts against the same account cannot lose an increment.
package lockout

import (
	"context"
	"database/sql"
	"time"

	"github.com/streamspace/authcore/internal/db"
	"github.com/streamspace/authcore/internal/models"
)

// Tier is one progressive-lockout threshold.
type Tier struct {
	Attempts int
	Duration time.Duration
}

// DefaultTiers: 5 attempts -> 15m, 10 -> 1h, 15+ -> 24h.
var DefaultTiers = []Tier{
	{Attempts: 5, Duration: 15 * time.Minute},
	{Attempts: 10, Duration: time.Hour},
	{Attempts: 15, Duration: 24 * time.Hour},
}

// Store is the persistence surface LockoutService needs, implemented by
// internal/db.UserStore.
type Store interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	BeginTx(ctx context.Context) (*sql.Tx, error)
	GetForLockoutUpdate(ctx context.Context, tx *sql.Tx, userID string) (*db.LockoutRow, error)
	SetLockoutState(ctx context.Context, tx *sql.Tx, userID string, attempts int, lockoutUntil *time.Time, lastFailed *time.Time) error
}

// AuditJournal is the subset of internal/audit.Journal this service needs.
type AuditJournal interface {
	Log(kind models.EventKind, userID, tenantID, ip, userAgent string, details map[string]interface{})
}

// Service implements isLocked/recordFailedAttempt/resetFailedAttempts/unlock.
type Service struct {
	store Store
	audit AuditJournal
	tiers []Tier
}

// New constructs a Service. A nil tiers slice uses DefaultTiers.
func New(store Store, audit AuditJournal, tiers []Tier) *Service {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &Service{store: store, audit: audit, tiers: tiers}
}

// IsLocked reports whether userId is currently inside a lockout window. If
// the stored deadline has already passed, it self-heals: clears the
// deadline and emits ACCOUNT_UNLOCKED with reason "automatic".
func (s *Service) IsLocked(ctx context.Context, tenantID, userID string) (bool, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if u == nil || !u.IsLocked(time.Now()) {
		if u != nil && u.LockoutUntil != nil {
			// Deadline has passed: self-heal.
			if err := s.clearLockout(ctx, userID); err != nil {
				return false, err
			}
			s.audit.Log(models.EventAccountUnlocked, userID, tenantID, "", "", map[string]interface{}{
				"reason": "automatic",
			})
		}
		return false, nil
	}
	return true, nil
}

func (s *Service) clearLockout(ctx context.Context, userID string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.store.SetLockoutState(ctx, tx, userID, 0, nil, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordFailedAttempt increments the failed-login counter under a row lock
// and, when the new count crosses a tier boundary, sets a fresh
// lockout_until and emits ACCOUNT_LOCKED. Callers must not call this for an
// account already known to be locked: doing so would let an attacker extend
// the window indefinitely.
func (s *Service) RecordFailedAttempt(ctx context.Context, tenantID, userID string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row, err := s.store.GetForLockoutUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	newCount := row.FailedLoginAttempts + 1

	var lockoutUntil *time.Time
	if tier := s.matchedTier(newCount); tier != nil {
		until := now.Add(tier.Duration)
		lockoutUntil = &until
	} else {
		lockoutUntil = row.LockoutUntil
	}

	if err := s.store.SetLockoutState(ctx, tx, userID, newCount, lockoutUntil, &now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if lockoutUntil != nil && s.matchedTier(newCount) != nil {
		s.audit.Log(models.EventAccountLocked, userID, tenantID, "", "", map[string]interface{}{
			"failedAttempts":     newCount,
			"lockDurationMinutes": int(lockoutUntil.Sub(now).Minutes()),
		})
	}
	return nil
}

// matchedTier returns the tier whose threshold exactly equals count, or the
// highest tier if count exceeds every threshold (the 24h ceiling for 16+).
func (s *Service) matchedTier(count int) *Tier {
	highest := s.tiers[len(s.tiers)-1]
	for i := range s.tiers {
		if s.tiers[i].Attempts == count {
			return &s.tiers[i]
		}
	}
	if count > highest.Attempts {
		return &highest
	}
	return nil
}

// ResetFailedAttempts zeroes the counter and clears lockout state. Called on
// any successful authentication.
func (s *Service) ResetFailedAttempts(ctx context.Context, userID string) error {
	return s.clearLockout(ctx, userID)
}

// Unlock is the explicit admin action: clears counter and lockout_until and
// emits ACCOUNT_UNLOCKED with reason "manual".
func (s *Service) Unlock(ctx context.Context, tenantID, userID string) error {
	if err := s.clearLockout(ctx, userID); err != nil {
		return err
	}
	s.audit.Log(models.EventAccountUnlocked, userID, tenantID, "", "", map[string]interface{}{
		"reason": "manual",
	})
	return nil
}
