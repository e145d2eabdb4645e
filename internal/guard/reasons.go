package guard

// Denial kinds. These codes and the sentences below are a stable
// contract: the UI and the tests match on them directly, so changing one
// is a breaking change for every consumer.
const (
	KindMissingCompanyContext        = "MISSING_COMPANY_CONTEXT"
	KindCrossTenantAccess            = "CROSS_TENANT_ACCESS"
	KindJobLocked                    = "JOB_LOCKED"
	KindInvalidToken                 = "INVALID_TOKEN"
	KindRoleNotPermitted             = "ROLE_NOT_PERMITTED"
	KindClientOnlyAction             = "CLIENT_ONLY_ACTION"
	KindEstimateNotSent              = "ESTIMATE_NOT_SENT"
	KindPaymentNotDue                = "PAYMENT_NOT_DUE"
	KindJobNotPaid                   = "JOB_NOT_PAID"
	KindUnknownStatus                = "UNKNOWN_STATUS"
	KindTerminalStatus               = "TERMINAL_STATUS"
	KindNonSequentialTransition      = "NON_SEQUENTIAL_TRANSITION"
	KindBackwardTransition           = "BACKWARD_TRANSITION"
	KindCancellationRequiresOverride = "CANCELLATION_REQUIRES_OVERRIDE"
	KindNoRugs                       = "NO_RUGS"
	KindRugsNotAnalyzed              = "RUGS_NOT_ANALYZED"
	KindEstimatesNotApproved         = "ESTIMATES_NOT_APPROVED"
	KindClientNotApproved            = "CLIENT_NOT_APPROVED"
	KindPaymentIncomplete            = "PAYMENT_INCOMPLETE"
	KindNoServicesSelected           = "NO_SERVICES_SELECTED"
	KindServicesIncomplete           = "SERVICES_INCOMPLETE"
)

// reasonSentences maps every kind to exactly one human-readable sentence
// suitable for direct display. No consumer should ever need to build its
// own message from a kind.
var reasonSentences = map[string]string{
	KindMissingCompanyContext:        "Your session is not linked to a company yet; wait for it to finish loading and try again.",
	KindCrossTenantAccess:            "This record belongs to a different company.",
	KindJobLocked:                    "This job is locked after payment; an administrator can override.",
	KindInvalidToken:                 "This link is invalid or has expired; ask the shop to send a new one.",
	KindRoleNotPermitted:             "Your role does not permit this action.",
	KindClientOnlyAction:             "Only the client may perform this step from the client portal.",
	KindEstimateNotSent:              "The estimate has not been sent to the client yet.",
	KindPaymentNotDue:                "Payment is not due until the client approves the estimate.",
	KindJobNotPaid:                   "The job must be paid before this step.",
	KindUnknownStatus:                "The job status is not recognized.",
	KindTerminalStatus:               "A cancelled job cannot change status.",
	KindNonSequentialTransition:      "The job can only advance one step at a time.",
	KindBackwardTransition:           "A job cannot move backward in its lifecycle.",
	KindCancellationRequiresOverride: "Cancelling a job requires an administrator override.",
	KindNoRugs:                       "Add at least one rug before starting inspection.",
	KindRugsNotAnalyzed:              "Every rug needs an analysis report before the estimate can be reviewed.",
	KindEstimatesNotApproved:         "Every analyzed rug needs an approved estimate before sending to the client.",
	KindClientNotApproved:            "The client has not approved the estimate yet.",
	KindPaymentIncomplete:            "A completed payment for the full authorized amount is required.",
	KindNoServicesSelected:           "Select at least one approved service before servicing can begin.",
	KindServicesIncomplete:           "Every approved service must be marked complete before the job can be closed.",
}

// WarningLegacyTenant is surfaced (as a warning, not a denial) when a
// record predates company assignment. See the tenant isolation check.
const WarningLegacyTenant = "record predates company assignment; allowing legacy access"

// Reason returns the display sentence for a kind, or the kind itself for
// an unknown code so a bad wire value is still visible rather than blank.
func Reason(kind string) string {
	if sentence, ok := reasonSentences[kind]; ok {
		return sentence
	}
	return kind
}

// Kinds enumerates every known denial kind, for exhaustiveness tests.
func Kinds() []string {
	out := make([]string, 0, len(reasonSentences))
	for kind := range reasonSentences {
		out = append(out, kind)
	}
	return out
}
