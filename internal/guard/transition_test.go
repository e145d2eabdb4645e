package guard

import (
	"strings"
	"testing"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

func fullContext() TransitionContext {
	return TransitionContext{
		HasRugs:           true,
		RugsAnalyzed:      true,
		EstimatesApproved: true,
		ClientApproved:    true,
		PaymentCompleted:  true,
		ServicesSelected:  true,
		ServicesComplete:  true,
	}
}

func ladderStatuses() []domain.LifecycleStatus {
	return []domain.LifecycleStatus{
		domain.StatusNew,
		domain.StatusInspecting,
		domain.StatusEstimateReview,
		domain.StatusEstimateSent,
		domain.StatusClientApprovedUnpaid,
		domain.StatusPaid,
		domain.StatusInService,
		domain.StatusCompleted,
	}
}

func TestValidateTransitionMonotonicity(t *testing.T) {
	all := append(ladderStatuses(), domain.StatusCancelled)
	for _, current := range all {
		for _, target := range all {
			next, hasNext := domain.NextStatus(current)
			if target == current || (hasNext && target == next) {
				continue
			}
			decision := ValidateTransition(current, target, fullContext(), false)
			if decision.Allowed {
				t.Fatalf("transition %s -> %s should deny without override", current, target)
			}
			if decision.Reason == "" {
				t.Fatalf("transition %s -> %s denied without a reason", current, target)
			}
		}
	}
}

func TestValidateTransitionIdempotent(t *testing.T) {
	all := append(ladderStatuses(), domain.StatusCancelled)
	for _, status := range all {
		decision := ValidateTransition(status, status, TransitionContext{}, false)
		if !decision.Allowed {
			t.Fatalf("re-requesting current status %s should be a no-op allow: %s", status, decision.Reason)
		}
		if decision.OverrideApplied {
			t.Fatalf("no-op allow for %s should not mark override", status)
		}
	}
}

func TestValidateTransitionSequentialAdvance(t *testing.T) {
	statuses := ladderStatuses()
	for i := 0; i < len(statuses)-1; i++ {
		decision := ValidateTransition(statuses[i], statuses[i+1], fullContext(), false)
		if !decision.Allowed {
			t.Fatalf("advance %s -> %s with all preconditions met should allow: %s", statuses[i], statuses[i+1], decision.Reason)
		}
	}
}

func TestValidateTransitionPreconditionGating(t *testing.T) {
	cases := []struct {
		name    string
		current domain.LifecycleStatus
		target  domain.LifecycleStatus
		mutate  func(*TransitionContext)
		kind    string
	}{
		{"no rugs", domain.StatusNew, domain.StatusInspecting, func(c *TransitionContext) { c.HasRugs = false }, KindNoRugs},
		{"rugs not analyzed", domain.StatusInspecting, domain.StatusEstimateReview, func(c *TransitionContext) { c.RugsAnalyzed = false }, KindRugsNotAnalyzed},
		{"estimates not approved", domain.StatusEstimateReview, domain.StatusEstimateSent, func(c *TransitionContext) { c.EstimatesApproved = false }, KindEstimatesNotApproved},
		{"client not approved", domain.StatusEstimateSent, domain.StatusClientApprovedUnpaid, func(c *TransitionContext) { c.ClientApproved = false }, KindClientNotApproved},
		{"payment incomplete", domain.StatusClientApprovedUnpaid, domain.StatusPaid, func(c *TransitionContext) { c.PaymentCompleted = false }, KindPaymentIncomplete},
		{"no services selected", domain.StatusPaid, domain.StatusInService, func(c *TransitionContext) { c.ServicesSelected = false }, KindNoServicesSelected},
		{"services incomplete", domain.StatusInService, domain.StatusCompleted, func(c *TransitionContext) { c.ServicesComplete = false }, KindServicesIncomplete},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := fullContext()
			tc.mutate(&ctx)
			decision := ValidateTransition(tc.current, tc.target, ctx, false)
			if decision.Allowed {
				t.Fatalf("expected denial")
			}
			if decision.Kind != tc.kind {
				t.Fatalf("kind=%s, want %s", decision.Kind, tc.kind)
			}
			if decision.Reason != Reason(tc.kind) {
				t.Fatalf("reason=%q, want the %s sentence", decision.Reason, tc.kind)
			}
		})
	}
}

func TestValidateTransitionUnapprovedEstimatesScenario(t *testing.T) {
	ctx := TransitionContext{HasRugs: true, RugsAnalyzed: true, EstimatesApproved: false}
	decision := ValidateTransition(domain.StatusEstimateReview, domain.StatusEstimateSent, ctx, false)
	if decision.Allowed {
		t.Fatalf("expected denial")
	}
	if !strings.Contains(decision.Reason, "estimate") {
		t.Fatalf("reason %q should mention the unapproved estimates", decision.Reason)
	}
}

func TestValidateTransitionOverride(t *testing.T) {
	// Override forces a forward skip and preserves the original denial.
	decision := ValidateTransition(domain.StatusNew, domain.StatusEstimateReview, fullContext(), true)
	if !decision.Allowed || !decision.OverrideApplied {
		t.Fatalf("override should force the forward skip: %+v", decision)
	}
	if decision.Kind != KindNonSequentialTransition {
		t.Fatalf("override should carry the bypassed denial, got %s", decision.Kind)
	}

	// Override forces past an unmet precondition, same contract.
	ctx := fullContext()
	ctx.PaymentCompleted = false
	decision = ValidateTransition(domain.StatusClientApprovedUnpaid, domain.StatusPaid, ctx, true)
	if !decision.Allowed || !decision.OverrideApplied {
		t.Fatalf("override should force past the precondition: %+v", decision)
	}
	if decision.Kind != KindPaymentIncomplete {
		t.Fatalf("override should carry the bypassed precondition, got %s", decision.Kind)
	}

	// A clean advance under override is a plain allow, not an override.
	decision = ValidateTransition(domain.StatusNew, domain.StatusInspecting, fullContext(), true)
	if !decision.Allowed || decision.OverrideApplied {
		t.Fatalf("clean advance should not report an override: %+v", decision)
	}
}

func TestValidateTransitionOverrideTransparency(t *testing.T) {
	all := append(ladderStatuses(), domain.StatusCancelled)
	contexts := []TransitionContext{{}, fullContext()}
	for _, current := range all {
		for _, target := range all {
			for _, ctx := range contexts {
				withOverride := ValidateTransition(current, target, ctx, true)
				if !withOverride.OverrideApplied {
					continue
				}
				without := ValidateTransition(current, target, ctx, false)
				if without.Allowed || without.Reason == "" {
					t.Fatalf("override applied for %s -> %s but plain call did not deny with a reason", current, target)
				}
				if without.Reason != withOverride.Reason {
					t.Fatalf("override for %s -> %s changed the surfaced reason", current, target)
				}
			}
		}
	}
}

func TestValidateTransitionBackwardNeverAllowed(t *testing.T) {
	statuses := ladderStatuses()
	for i := 1; i < len(statuses); i++ {
		for j := 0; j < i; j++ {
			for _, override := range []bool{false, true} {
				decision := ValidateTransition(statuses[i], statuses[j], fullContext(), override)
				if decision.Allowed {
					t.Fatalf("backward %s -> %s allowed (override=%v)", statuses[i], statuses[j], override)
				}
			}
		}
	}
}

func TestValidateTransitionCancellation(t *testing.T) {
	decision := ValidateTransition(domain.StatusInspecting, domain.StatusCancelled, TransitionContext{}, false)
	if decision.Allowed {
		t.Fatalf("cancellation without override should deny")
	}
	if decision.Kind != KindCancellationRequiresOverride {
		t.Fatalf("kind=%s", decision.Kind)
	}

	decision = ValidateTransition(domain.StatusInspecting, domain.StatusCancelled, TransitionContext{}, true)
	if !decision.Allowed || !decision.OverrideApplied {
		t.Fatalf("cancellation with override should allow with the flag set: %+v", decision)
	}

	// Nothing leaves cancelled, override or not.
	for _, override := range []bool{false, true} {
		decision = ValidateTransition(domain.StatusCancelled, domain.StatusNew, fullContext(), override)
		if decision.Allowed {
			t.Fatalf("cancelled should be terminal (override=%v)", override)
		}
	}

	// A completed job cannot be cancelled either, even with an override.
	for _, override := range []bool{false, true} {
		decision = ValidateTransition(domain.StatusCompleted, domain.StatusCancelled, fullContext(), override)
		if decision.Allowed {
			t.Fatalf("completed should not be cancellable (override=%v): %+v", override, decision)
		}
		if decision.Kind != KindBackwardTransition {
			t.Fatalf("cancel from completed kind=%s", decision.Kind)
		}
	}
}
