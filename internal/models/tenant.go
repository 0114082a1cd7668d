// Package models defines the core data structures for the auth core.
//
// These models are used for:
//   - Database persistence (via database/sql + lib/pq, snake_case columns)
//   - JSON serialization (via json struct tags)
//   - API request validation (via binding tags)
package models

import "time"

// Tenant represents an isolated organizational unit. Every user belongs to
// exactly one tenant; all cross-tenant access is prevented by filtering every
// query through tenant_id.
//
// Tenants are created by the registration flow and are never deleted through
// this core's API — deactivation (Active=false) is the supported terminal
// state.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
