package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamspace/authcore/internal/models"
)

// AuditStore persists append-only security audit entries. No update or
// delete method exists on this store by design.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore constructs an AuditStore over an existing connection pool.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Insert appends a single audit entry. Failures here are the caller's
// (internal/audit's worker pool) problem to log and swallow; this method
// itself just reports the error.
func (s *AuditStore) Insert(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var detailsJSON []byte
	if e.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_kind, user_id, tenant_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, string(e.EventKind), e.UserID, e.TenantID, e.IP, e.UserAgent, nullableJSON(detailsJSON), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching filter, newest first, paginated.
func (s *AuditStore) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	page, size := filter.Page, filter.Size
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 25
	}

	query := `SELECT id, event_kind, user_id, tenant_id, ip_address, user_agent, details, created_at FROM audit_log WHERE 1=1`
	var args []interface{}
	argN := 0

	addArg := func(v interface{}) string {
		argN++
		args = append(args, v)
		return fmt.Sprintf("$%d", argN)
	}

	if filter.TenantID != "" {
		query += " AND tenant_id = " + addArg(filter.TenantID)
	}
	if filter.UserID != "" {
		query += " AND user_id = " + addArg(filter.UserID)
	}
	if filter.EventKind != "" {
		query += " AND event_kind = " + addArg(filter.EventKind)
	}
	if filter.Start != nil {
		query += " AND created_at >= " + addArg(*filter.Start)
	}
	if filter.End != nil {
		query += " AND created_at <= " + addArg(*filter.End)
	}

	query += " ORDER BY created_at DESC"
	query += " LIMIT " + addArg(size) + " OFFSET " + addArg((page-1)*size)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		var userID, tenantID, ip, userAgent sql.NullString
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.EventKind, &userID, &tenantID, &ip, &userAgent, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.UserID = nullableStringPtr(userID)
		e.TenantID = nullableStringPtr(tenantID)
		e.IP = nullableStringPtr(ip)
		e.UserAgent = nullableStringPtr(userAgent)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableStringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
