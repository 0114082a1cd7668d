// Key naming for the two response-cache lanes the HTTP edge actually
// uses: the tenant admin audit-log listing and the tenant user listing.
// Both are scoped by tenant so one tenant's cache entries never leak into
// another's response.
package cache

import "fmt"

const (
	PrefixAuditLog = "auditlog"
	PrefixUserList = "userlist"
)

// AuditLogListKey scopes a cached audit-log page to its tenant.
func AuditLogListKey(tenantID string) string {
	return fmt.Sprintf("%s:tenant:%s", PrefixAuditLog, tenantID)
}

// UserListKey scopes a cached user-list page to its tenant.
func UserListKey(tenantID string) string {
	return fmt.Sprintf("%s:tenant:%s", PrefixUserList, tenantID)
}
