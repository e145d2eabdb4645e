package guard

import "github.com/rugtrack-labs/rugtrack-go/internal/domain"

// ActionPermission is the matrix's verdict for one (action, role, status)
// question. Reason is populated on denial with the exact sentence shown
// to the user. Warning carries the legacy-tenant side channel when the
// composite Check allowed a record without a tenant id.
type ActionPermission struct {
	Allowed         bool
	Kind            string
	Reason          string
	Warning         string
	OverrideApplied bool
}

// statusRule evaluates the status dimension of a matrix entry. A nil rule
// means "always" for that (action, role) pair.
type statusRule func(domain.LifecycleStatus) (allowed bool, denyKind string)

func notLocked(status domain.LifecycleStatus) (bool, string) {
	if domain.IsStatusLocked(status) {
		return false, KindJobLocked
	}
	return true, ""
}

func paid(status domain.LifecycleStatus) (bool, string) {
	if !domain.IsPaid(status) {
		return false, KindJobNotPaid
	}
	return true, ""
}

func estimateSent(status domain.LifecycleStatus) (bool, string) {
	if !domain.IsEstimateSent(status) {
		return false, KindEstimateNotSent
	}
	return true, ""
}

func awaitingPayment(status domain.LifecycleStatus) (bool, string) {
	if status != domain.StatusClientApprovedUnpaid {
		return false, KindPaymentNotDue
	}
	return true, ""
}

// matrixEntry holds one action's row: which roles may ever perform it and
// under what status condition. Roles absent from the map never may; their
// denial kind is the entry's denyKind.
type matrixEntry struct {
	roles    map[Role]statusRule
	denyKind string
}

// permissionMatrix is the static (action, role) table. Conditional
// entries reuse the ladder predicates from the domain package rather than
// re-encoding raw status comparisons. A test asserts the table answers
// for the full action x role product.
var permissionMatrix = map[Action]matrixEntry{
	ActionEditJob: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionAddRug: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionEditRug: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionDeleteRug: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionUploadPhotos: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionAnalyzeRug: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionApproveEstimate: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionSendToClient: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	// client_approve and process_payment are actions the client portal
	// takes; staff and admin can never perform them directly. This is a
	// separation-of-duties control, not an oversight.
	ActionClientApprove: {
		roles:    map[Role]statusRule{RoleClient: estimateSent},
		denyKind: KindClientOnlyAction,
	},
	ActionProcessPayment: {
		roles:    map[Role]statusRule{RoleClient: awaitingPayment},
		denyKind: KindClientOnlyAction,
	},
	ActionMarkServiceComplete: {
		roles:    map[Role]statusRule{RoleStaff: paid, RoleAdmin: paid},
		denyKind: KindRoleNotPermitted,
	},
	ActionScheduleDelivery: {
		roles:    map[Role]statusRule{RoleStaff: paid, RoleAdmin: paid},
		denyKind: KindRoleNotPermitted,
	},
	ActionAdvanceStatus: {
		roles:    map[Role]statusRule{RoleStaff: nil, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionDeleteJob: {
		roles:    map[Role]statusRule{RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	ActionEditPricing: {
		roles:    map[Role]statusRule{RoleStaff: notLocked, RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
	// override_status activates the override for subsequent calls in the
	// same interaction; it is not a state-advancing action itself.
	ActionOverrideStatus: {
		roles:    map[Role]statusRule{RoleAdmin: nil},
		denyKind: KindRoleNotPermitted,
	},
}

// CanPerformAction decides whether role may perform action on a job in
// the given status. Pure function over its arguments.
func CanPerformAction(action Action, role Role, status domain.LifecycleStatus) ActionPermission {
	entry, ok := permissionMatrix[action]
	if !ok {
		return denyAction(KindRoleNotPermitted)
	}
	rule, ok := entry.roles[role]
	if !ok {
		return denyAction(entry.denyKind)
	}
	if rule == nil {
		return ActionPermission{Allowed: true}
	}
	allowed, denyKind := rule(status)
	if !allowed {
		return denyAction(denyKind)
	}
	return ActionPermission{Allowed: true}
}

func denyAction(kind string) ActionPermission {
	return ActionPermission{Kind: kind, Reason: Reason(kind)}
}
