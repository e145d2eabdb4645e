package auth

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the authenticated caller. Tenant is the caller's resolved
// company, empty while the session has not finished loading.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
	Tenant  string
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

const (
	RoleStaff  = "staff"
	RoleClient = "client"
	RoleAdmin  = "admin"
)

var roleLevels = map[string]int{
	RoleStaff: 1,
	RoleAdmin: 2,
}

// HasAtLeast reports whether any of the roles reaches the required staff
// hierarchy level. The client portal role sits outside the hierarchy and
// never satisfies a staff requirement.
func HasAtLeast(roles []string, required string) bool {
	requiredLevel := roleLevels[strings.ToLower(required)]
	if requiredLevel == 0 {
		return false
	}
	maxLevel := 0
	for _, role := range roles {
		level := roleLevels[strings.ToLower(strings.TrimSpace(role))]
		if level > maxLevel {
			maxLevel = level
		}
	}
	return maxLevel >= requiredLevel
}

func IsAdmin(roles []string) bool {
	return HasAtLeast(roles, RoleAdmin)
}

// AdminOverrideHeader carries the session-scoped override flag. It is
// honored only for callers whose identity resolves to admin; it is never
// persisted and every interaction starts with it off.
const AdminOverrideHeader = "X-Admin-Override"

func AdminOverrideRequested(r *http.Request, identity Identity) bool {
	raw := strings.ToLower(strings.TrimSpace(r.Header.Get(AdminOverrideHeader)))
	if raw != "true" && raw != "1" {
		return false
	}
	return IsAdmin(identity.Roles)
}
