package auth

import (
	"context"
	"net/http"
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// DevAuthenticator returns a fixed identity for local development.
type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	return &DevAuthenticator{
		identity: Identity{
			Subject: cfg.DevSubject,
			Email:   cfg.DevEmail,
			Roles:   cfg.DevRoles,
			Tenant:  cfg.DevTenant,
		},
	}
}

func (a *DevAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return a.identity, nil
}
