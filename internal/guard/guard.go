// Package guard is the job lifecycle guard: a pure decision module that
// gates every mutating operation against a job. It combines the status
// ladder, a transition validator, a role and tenant aware permission
// matrix, and an auditable administrator override. It performs no I/O;
// callers supply current facts and act on the returned decision.
package guard

import "github.com/rugtrack-labs/rugtrack-go/internal/domain"

// CheckInput bundles everything one permission check needs. AdminOverride
// is the caller-held, session-scoped override flag; it is settable only
// by an administrator, starts off for each interaction, and is never
// persisted.
type CheckInput struct {
	Action        Action
	Role          Role
	Status        domain.LifecycleStatus
	RecordTenant  *domain.TenantID
	CallerTenant  *domain.TenantID
	AdminOverride bool
}

// Check is the single entry point call sites use before a mutating
// operation. Order matters: tenant isolation runs first and is never
// overridable; the permission matrix runs next; an active override then
// supersedes a matrix denial while preserving the original reason.
func Check(in CheckInput) ActionPermission {
	var warning string
	if in.Action.MutatesData() {
		tenant := ValidateTenantAccess(in.RecordTenant, in.CallerTenant)
		if !tenant.Valid {
			return ActionPermission{Kind: tenant.Kind, Reason: tenant.Reason}
		}
		warning = tenant.Warning
	}

	perm := CanPerformAction(in.Action, in.Role, in.Status)
	perm.Warning = warning
	if perm.Allowed {
		return perm
	}
	if in.AdminOverride && EffectiveRole(in.Role, true) == RoleAdmin {
		return ActionPermission{
			Allowed:         true,
			Kind:            perm.Kind,
			Reason:          perm.Reason,
			Warning:         warning,
			OverrideApplied: true,
		}
	}
	return perm
}
