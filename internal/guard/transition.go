package guard

import "github.com/rugtrack-labs/rugtrack-go/internal/domain"

// TransitionContext carries the business facts needed to validate a
// specific transition. Callers build it fresh from live data on every
// call; the validator never fetches anything itself.
type TransitionContext struct {
	HasRugs           bool
	RugsAnalyzed      bool
	EstimatesApproved bool
	ClientApproved    bool
	PaymentCompleted  bool
	ServicesSelected  bool
	ServicesComplete  bool
}

// TransitionDecision is the validator's verdict. When OverrideApplied is
// true the call is allowed despite the original denial, and Kind/Reason
// still carry that denial so the caller can display what was bypassed.
type TransitionDecision struct {
	Allowed         bool
	Kind            string
	Reason          string
	OverrideApplied bool
}

type precondition struct {
	kind string
	met  func(TransitionContext) bool
}

// entryPreconditions lists what must hold before a job may enter each
// state. Keyed by target state; states absent from the table have no
// entry preconditions.
var entryPreconditions = map[domain.LifecycleStatus][]precondition{
	domain.StatusInspecting: {
		{KindNoRugs, func(c TransitionContext) bool { return c.HasRugs }},
	},
	domain.StatusEstimateReview: {
		{KindRugsNotAnalyzed, func(c TransitionContext) bool { return c.RugsAnalyzed }},
	},
	domain.StatusEstimateSent: {
		{KindEstimatesNotApproved, func(c TransitionContext) bool { return c.EstimatesApproved }},
	},
	domain.StatusClientApprovedUnpaid: {
		{KindClientNotApproved, func(c TransitionContext) bool { return c.ClientApproved }},
	},
	domain.StatusPaid: {
		{KindPaymentIncomplete, func(c TransitionContext) bool { return c.PaymentCompleted }},
	},
	domain.StatusInService: {
		{KindNoServicesSelected, func(c TransitionContext) bool { return c.ServicesSelected }},
	},
	domain.StatusCompleted: {
		{KindServicesIncomplete, func(c TransitionContext) bool { return c.ServicesComplete }},
	},
}

// ValidateTransition checks whether advancing from current to target is
// legal. Normal advancement is one rung at a time with the target's entry
// preconditions met. An active override can force a forward move or a
// cancellation of an unfinished job, but never a backward move, and the
// original denial is always preserved in the decision for the audit trail.
func ValidateTransition(current, target domain.LifecycleStatus, ctx TransitionContext, overrideActive bool) TransitionDecision {
	if !current.Valid() || !target.Valid() {
		return denyTransition(KindUnknownStatus)
	}
	if current == target {
		return TransitionDecision{Allowed: true}
	}
	if current == domain.StatusCancelled {
		return denyTransition(KindTerminalStatus)
	}
	if target == domain.StatusCancelled {
		if current == domain.StatusCompleted {
			// A finished job stays finished; cancellation is not a rollback.
			return denyTransition(KindBackwardTransition)
		}
		return applyOverride(denyTransition(KindCancellationRequiresOverride), overrideActive)
	}
	if domain.Precedes(target, current) || current == domain.StatusCompleted {
		// Backward moves are never legal, override or not.
		return denyTransition(KindBackwardTransition)
	}

	if next, ok := domain.NextStatus(current); !ok || target != next {
		return applyOverride(denyTransition(KindNonSequentialTransition), overrideActive)
	}
	for _, pre := range entryPreconditions[target] {
		if !pre.met(ctx) {
			return applyOverride(denyTransition(pre.kind), overrideActive)
		}
	}
	return TransitionDecision{Allowed: true}
}

func denyTransition(kind string) TransitionDecision {
	return TransitionDecision{Kind: kind, Reason: Reason(kind)}
}

func applyOverride(base TransitionDecision, overrideActive bool) TransitionDecision {
	if base.Allowed || !overrideActive {
		return base
	}
	return TransitionDecision{
		Allowed:         true,
		Kind:            base.Kind,
		Reason:          base.Reason,
		OverrideApplied: true,
	}
}
