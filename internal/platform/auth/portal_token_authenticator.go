package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// PortalTokenAuthenticator accepts bearer portal tokens and falls back to the
// next authenticator for everything else. Verified tokens map to the client
// role scoped to the token's tenant.
type PortalTokenAuthenticator struct {
	Secret string
	Next   Authenticator
	Now    func() time.Time
}

func (a PortalTokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		token := strings.TrimSpace(authz[len("bearer "):])
		if strings.HasPrefix(token, portalTokenPrefix+".") {
			now := time.Now().UTC()
			if a.Now != nil {
				now = a.Now().UTC()
			}
			claims, err := VerifyPortalToken(a.Secret, token, now)
			if err != nil {
				// Not ErrUnauthenticated: the middleware reports token
				// failures with the invalid_token reason.
				return Identity{}, err
			}
			return Identity{
				Subject: PortalTokenSubject(claims),
				Email:   claims.Email,
				Roles:   []string{RoleClient},
				Tenant:  claims.TenantID,
			}, nil
		}
	}

	if a.Next == nil {
		return Identity{}, ErrUnauthenticated
	}
	return a.Next.Authenticate(ctx, r)
}
