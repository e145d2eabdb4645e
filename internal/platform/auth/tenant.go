package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKeyTenantID struct{}

// ErrTenantRequired indicates a missing tenant scope for a request.
var ErrTenantRequired = errors.New("tenant_id_required")

// TenantResolver extracts the caller's tenant for the request.
type TenantResolver func(r *http.Request, identity Identity) (string, error)

func ContextWithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKeyTenantID{}, strings.TrimSpace(tenantID))
}

func TenantIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(ctxKeyTenantID{}).(string)
	return strings.TrimSpace(value), ok
}

// TenantIDFromRequest checks the identity claim first, then headers and
// query parameters. The claim wins so a staff session can never act
// against another company by sending a forged header.
func TenantIDFromRequest(r *http.Request, identity Identity) string {
	if v := strings.TrimSpace(identity.Tenant); v != "" {
		return v
	}
	if r == nil {
		return ""
	}
	if v := strings.TrimSpace(r.Header.Get("X-Tenant-Id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("tenant_id")); v != "" {
		return v
	}
	return ""
}

// RequireTenantIDResolver enforces tenant scoping for requests except
// listed prefixes. A request without a resolvable tenant is reported as
// missing company context, distinct from a role denial, so the UI can
// tell "you can't" from "your session isn't ready".
func RequireTenantIDResolver(skipPrefixes []string) TenantResolver {
	return func(r *http.Request, identity Identity) (string, error) {
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return "", nil
			}
		}
		tenantID := TenantIDFromRequest(r, identity)
		if tenantID == "" {
			return "", ErrTenantRequired
		}
		return tenantID, nil
	}
}
