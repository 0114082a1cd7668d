// This file implements user account data access: tenant-scoped CRUD, password
// verification, and the row-locked failed-attempt counters that back
// internal/lockout.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/streamspace/authcore/internal/models"
)

// UserStore handles database operations for users.
type UserStore struct {
	db *sql.DB
}

// NewUserStore constructs a UserStore over an existing connection pool.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, tenant_id, email, name, role, active, password_hash,
	failed_login_attempts, lockout_until, last_failed_login, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.Active, &u.PasswordHash,
		&u.FailedLoginAttempts, &u.LockoutUntil, &u.LastFailedLogin, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user with an already-bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, tenantID, email, name, passwordHash string, role models.Role) (*models.User, error) {
	u := &models.User{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Email:        email,
		Name:         name,
		Role:         role,
		Active:       true,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, role, active, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.TenantID, u.Email, u.Name, u.Role, u.Active, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (s *UserStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetByEmail retrieves a user scoped to a tenant, the only lookup path that
// matters for login: (tenant_id, email) is the store's uniqueness invariant.
func (s *UserStore) GetByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// List returns a tenant's users, most recently created first.
func (s *UserStore) List(ctx context.Context, tenantID string, page, size int) ([]*models.User, error) {
	if size <= 0 {
		size = 25
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePassword replaces a user's stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	return err
}

// SetActive toggles account activation (admin action).
func (s *UserStore) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active = $1 WHERE id = $2`, active, userID)
	return err
}

// CheckPassword verifies a plaintext password against a user's stored bcrypt
// hash. Returns bcrypt's own error unchanged so callers can distinguish a
// hash-format problem from a genuine mismatch if ever needed; today both are
// folded into apperrors.InvalidCredentials by the caller.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// HashPassword bcrypt-hashes a plaintext password at the default cost.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// LockoutRow is the subset of user columns the lockout service reads and
// writes under row-level locking.
type LockoutRow struct {
	FailedLoginAttempts int
	LockoutUntil        *time.Time
}

// GetForLockoutUpdate reads a user's lockout counters with SELECT ... FOR
// UPDATE, taking a row lock for the lifetime of tx so a concurrent failed
// login on the same account cannot race the read-modify-write of the
// attempt counter.
func (s *UserStore) GetForLockoutUpdate(ctx context.Context, tx *sql.Tx, userID string) (*LockoutRow, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT failed_login_attempts, lockout_until
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID)

	r := &LockoutRow{}
	if err := row.Scan(&r.FailedLoginAttempts, &r.LockoutUntil); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLockoutState writes the updated attempt counter and lockout deadline
// inside the same transaction that took the row lock.
func (s *UserStore) SetLockoutState(ctx context.Context, tx *sql.Tx, userID string, attempts int, lockoutUntil *time.Time, lastFailed *time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = $1, lockout_until = $2, last_failed_login = $3
		WHERE id = $4
	`, attempts, lockoutUntil, lastFailed, userID)
	return err
}

// BeginTx exposes transaction creation so internal/lockout can bracket its
// read-modify-write without this package depending on that package.
func (s *UserStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
