package guard

import "strings"

// Role is the caller's resolved role for a single check.
type Role string

const (
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStaff:
		return RoleStaff, true
	case RoleClient:
		return RoleClient, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Roles enumerates every role, for exhaustiveness tests.
func Roles() []Role {
	return []Role{RoleStaff, RoleClient, RoleAdmin}
}

// EffectiveRole resolves the role a single check runs under. The
// adminOverride flag is session-scoped, settable only by an authenticated
// administrator, and never persisted to the job record; while it is set a
// staff caller acts as admin.
func EffectiveRole(stored Role, adminOverride bool) Role {
	if adminOverride && stored == RoleStaff {
		return RoleAdmin
	}
	return stored
}

// Action is a named operation a caller attempts against a job.
type Action string

const (
	ActionEditJob             Action = "edit_job"
	ActionAddRug              Action = "add_rug"
	ActionEditRug             Action = "edit_rug"
	ActionDeleteRug           Action = "delete_rug"
	ActionUploadPhotos        Action = "upload_photos"
	ActionAnalyzeRug          Action = "analyze_rug"
	ActionApproveEstimate     Action = "approve_estimate"
	ActionSendToClient        Action = "send_to_client"
	ActionClientApprove       Action = "client_approve"
	ActionProcessPayment      Action = "process_payment"
	ActionMarkServiceComplete Action = "mark_service_complete"
	ActionScheduleDelivery    Action = "schedule_delivery"
	ActionAdvanceStatus       Action = "advance_status"
	ActionDeleteJob           Action = "delete_job"
	ActionEditPricing         Action = "edit_pricing"
	ActionOverrideStatus      Action = "override_status"
)

// Actions enumerates every action, for exhaustiveness tests and for the
// UI affordance map.
func Actions() []Action {
	return []Action{
		ActionEditJob,
		ActionAddRug,
		ActionEditRug,
		ActionDeleteRug,
		ActionUploadPhotos,
		ActionAnalyzeRug,
		ActionApproveEstimate,
		ActionSendToClient,
		ActionClientApprove,
		ActionProcessPayment,
		ActionMarkServiceComplete,
		ActionScheduleDelivery,
		ActionAdvanceStatus,
		ActionDeleteJob,
		ActionEditPricing,
		ActionOverrideStatus,
	}
}

func ParseAction(value string) (Action, bool) {
	candidate := Action(strings.ToLower(strings.TrimSpace(value)))
	for _, action := range Actions() {
		if action == candidate {
			return action, true
		}
	}
	return "", false
}

// MutatesData reports whether the action touches persisted data and
// therefore requires a resolved caller tenant before any role or status
// rule is consulted. Every action in the catalog mutates data; the method
// exists so new read-only actions cannot silently skip the tenant check.
func (a Action) MutatesData() bool {
	_, known := ParseAction(string(a))
	return known
}
