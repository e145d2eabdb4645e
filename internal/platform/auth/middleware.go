package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
)

type AuthorizeFunc func(r *http.Request, identity Identity) error

type DenyEvent struct {
	Time       time.Time
	Status     int
	Reason     string
	Error      string
	RequestID  string
	Method     string
	Path       string
	Subject    string
	Email      string
	Roles      []string
	Tenant     string
	RemoteAddr string
	UserAgent  string
}

type AuditFunc func(ctx context.Context, event DenyEvent) error

type Middleware struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	Authorize     AuthorizeFunc
	TenantResolve TenantResolver
	Audit         AuditFunc
	SkipPrefixes  []string
}

func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range m.SkipPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		identity, err := m.Authenticator.Authenticate(r.Context(), r)
		if err != nil {
			reason := "unauthenticated"
			body := map[string]any{
				"error":      "unauthorized",
				"reason":     reason,
				"request_id": r.Header.Get("X-Request-Id"),
			}
			if !errors.Is(err, ErrUnauthenticated) {
				// Credentials were presented but failed verification.
				// Surface the stable kind so portal clients can render
				// the catalog sentence.
				reason = "invalid_token"
				body["reason"] = reason
				body["kind"] = guard.KindInvalidToken
				body["detail"] = guard.Reason(guard.KindInvalidToken)
			}
			m.logDeny(r, http.StatusUnauthorized, reason, err)
			m.auditDeny(r, Identity{}, http.StatusUnauthorized, reason, err)
			writeAuthJSON(w, http.StatusUnauthorized, body)
			return
		}

		if m.Authorize != nil {
			if err := m.Authorize(r, identity); err != nil {
				m.logDeny(r, http.StatusForbidden, "forbidden", err, "subject", identity.Subject)
				m.auditDeny(r, identity, http.StatusForbidden, "forbidden", err)
				writeAuthJSON(w, http.StatusForbidden, map[string]any{
					"error":      "forbidden",
					"request_id": r.Header.Get("X-Request-Id"),
				})
				return
			}
		}

		if m.TenantResolve != nil {
			tenantID, err := m.TenantResolve(r, identity)
			if err != nil {
				m.logDeny(r, http.StatusBadRequest, "tenant_id_required", err, "subject", identity.Subject)
				m.auditDeny(r, identity, http.StatusBadRequest, "tenant_id_required", err)
				writeAuthJSON(w, http.StatusBadRequest, map[string]any{
					"error":      "tenant_id_required",
					"request_id": r.Header.Get("X-Request-Id"),
				})
				return
			}
			if strings.TrimSpace(tenantID) != "" {
				r = r.WithContext(ContextWithTenantID(r.Context(), tenantID))
			}
		}

		r = r.WithContext(ContextWithIdentity(r.Context(), identity))
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) auditDeny(r *http.Request, identity Identity, status int, reason string, err error) {
	if m.Audit == nil {
		return
	}
	auditErr := m.Audit(r.Context(), DenyEvent{
		Time:       time.Now().UTC(),
		Status:     status,
		Reason:     reason,
		Error:      err.Error(),
		RequestID:  r.Header.Get("X-Request-Id"),
		Method:     r.Method,
		Path:       r.URL.Path,
		Subject:    identity.Subject,
		Email:      identity.Email,
		Roles:      identity.Roles,
		Tenant:     identity.Tenant,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	if auditErr == nil || m.Logger == nil {
		return
	}
	m.Logger.Warn("audit deny failed", "request_id", r.Header.Get("X-Request-Id"), "error", auditErr.Error())
}

func (m Middleware) logDeny(r *http.Request, status int, reason string, err error, extra ...any) {
	if m.Logger == nil {
		return
	}
	fields := []any{
		"reason", reason,
		"status", status,
		"request_id", r.Header.Get("X-Request-Id"),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err.Error(),
	}
	fields = append(fields, extra...)
	if status >= 500 {
		m.Logger.Error("auth deny", fields...)
		return
	}
	m.Logger.Warn("auth deny", fields...)
}

// StaffAuthorizer requires at least the staff role; client sessions are
// rejected so portal tokens cannot reach the staff API.
func StaffAuthorizer() AuthorizeFunc {
	return func(r *http.Request, identity Identity) error {
		if HasAtLeast(identity.Roles, RoleStaff) {
			return nil
		}
		return ErrForbidden
	}
}

// ClientAuthorizer requires a client session with a resolved tenant.
func ClientAuthorizer() AuthorizeFunc {
	return func(r *http.Request, identity Identity) error {
		for _, role := range identity.Roles {
			if role == RoleClient {
				if strings.TrimSpace(identity.Tenant) == "" {
					return ErrForbidden
				}
				return nil
			}
		}
		return ErrForbidden
	}
}

func WithTimeout(timeout time.Duration, check func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return check(checkCtx)
	}
}
