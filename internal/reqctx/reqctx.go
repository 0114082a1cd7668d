// Package reqctx carries the authenticated principal through a request.
//
// Gin's context is the thread-local this codebase uses for per-request
// state. Rather than stash userID/userRole under loose string keys, this
// package stores one typed Principal so handlers can't typo a key name or
// skip a type assertion.
package reqctx

import "github.com/gin-gonic/gin"

const principalKey = "principal"

// Principal is the authenticated caller, set by the bearer-auth middleware
// and read by handlers via FromContext.
type Principal struct {
	UserID   string
	TenantID string
	Email    string
	Role     string
}

// WithPrincipal stores p in the Gin context for downstream handlers.
func WithPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// FromContext retrieves the authenticated principal. ok is false if no
// auth middleware ran (the route is public or misconfigured).
func FromContext(c *gin.Context) (Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// IsAdmin reports whether the context's principal has the ADMIN role.
func IsAdmin(c *gin.Context) bool {
	p, ok := FromContext(c)
	return ok && p.Role == "ADMIN"
}
