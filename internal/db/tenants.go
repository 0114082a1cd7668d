package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamspace/authcore/internal/models"
)

// TenantStore handles database operations for tenants.
type TenantStore struct {
	db *sql.DB
}

// NewTenantStore constructs a TenantStore over an existing connection pool.
func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

const tenantColumns = `id, name, slug, active, created_at`

func scanTenant(row interface{ Scan(...interface{}) error }) (*models.Tenant, error) {
	t := &models.Tenant{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new tenant.
func (s *TenantStore) Create(ctx context.Context, name, slug string) (*models.Tenant, error) {
	t := &models.Tenant{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		Active:    true,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Slug, t.Active, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

// GetBySlug looks up a tenant by its unique slug.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetByID looks up a tenant by primary key.
func (s *TenantStore) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// SlugExists reports whether a tenant already claims slug, used to enforce
// the registration flow's TenantAlreadyExists check without fetching the
// full row.
func (s *TenantStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}
