package models

import "time"

// EventKind is the closed enumeration of security-relevant audit events.
type EventKind string

const (
	EventLoginSuccess      EventKind = "LOGIN_SUCCESS"
	EventLoginFailed       EventKind = "LOGIN_FAILED"
	EventLogout            EventKind = "LOGOUT"
	EventPasswordChange    EventKind = "PASSWORD_CHANGE"
	EventTokenRefresh      EventKind = "TOKEN_REFRESH"
	EventAccountLocked     EventKind = "ACCOUNT_LOCKED"
	EventAccountUnlocked   EventKind = "ACCOUNT_UNLOCKED"
	EventUserCreated       EventKind = "USER_CREATED"
	EventUserUpdated       EventKind = "USER_UPDATED"
	EventUserDeleted       EventKind = "USER_DELETED"
	EventTenantCreated     EventKind = "TENANT_CREATED"
	EventPermissionDenied  EventKind = "PERMISSION_DENIED"
	EventSuspiciousActivity EventKind = "SUSPICIOUS_ACTIVITY"
)

// AuditEntry is an append-only record of a security-relevant event. No
// update or delete operation exists through the core's API; retention and
// archival are external concerns.
type AuditEntry struct {
	ID        string                 `json:"id" db:"id"`
	EventKind EventKind              `json:"eventType" db:"event_kind"`
	UserID    *string                `json:"userId,omitempty" db:"user_id"`
	TenantID  *string                `json:"tenantId,omitempty" db:"tenant_id"`
	IP        *string                `json:"ip,omitempty" db:"ip_address"`
	UserAgent *string                `json:"userAgent,omitempty" db:"user_agent"`
	Details   map[string]interface{} `json:"details,omitempty" db:"details"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

// AuditFilter narrows the admin audit-log query surface.
type AuditFilter struct {
	TenantID  string
	UserID    string
	EventKind string
	Start     *time.Time
	End       *time.Time
	Page      int
	Size      int
}
