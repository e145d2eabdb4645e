package domain

import "testing"

func TestNextStatusWalksTheLadder(t *testing.T) {
	steps := []struct {
		current LifecycleStatus
		next    LifecycleStatus
	}{
		{StatusNew, StatusInspecting},
		{StatusInspecting, StatusEstimateReview},
		{StatusEstimateReview, StatusEstimateSent},
		{StatusEstimateSent, StatusClientApprovedUnpaid},
		{StatusClientApprovedUnpaid, StatusPaid},
		{StatusPaid, StatusInService},
		{StatusInService, StatusCompleted},
	}
	for _, step := range steps {
		next, ok := NextStatus(step.current)
		if !ok {
			t.Fatalf("NextStatus(%s) should be defined", step.current)
		}
		if next != step.next {
			t.Fatalf("NextStatus(%s)=%s, want %s", step.current, next, step.next)
		}
	}
}

func TestNextStatusTerminalStates(t *testing.T) {
	for _, status := range []LifecycleStatus{StatusCompleted, StatusCancelled} {
		if _, ok := NextStatus(status); ok {
			t.Fatalf("NextStatus(%s) should be undefined", status)
		}
		if !IsTerminal(status) {
			t.Fatalf("IsTerminal(%s) should be true", status)
		}
	}
}

func TestLadderPredicates(t *testing.T) {
	cases := []struct {
		status   LifecycleStatus
		locked   bool
		sent     bool
		approved bool
		paid     bool
	}{
		{StatusNew, false, false, false, false},
		{StatusInspecting, false, false, false, false},
		{StatusEstimateReview, false, false, false, false},
		{StatusEstimateSent, false, true, false, false},
		{StatusClientApprovedUnpaid, false, true, true, false},
		{StatusPaid, true, true, true, true},
		{StatusInService, true, true, true, true},
		{StatusCompleted, true, true, true, true},
		{StatusCancelled, false, false, false, false},
	}
	for _, tc := range cases {
		if got := IsStatusLocked(tc.status); got != tc.locked {
			t.Fatalf("IsStatusLocked(%s)=%v, want %v", tc.status, got, tc.locked)
		}
		if got := IsEstimateSent(tc.status); got != tc.sent {
			t.Fatalf("IsEstimateSent(%s)=%v, want %v", tc.status, got, tc.sent)
		}
		if got := IsApproved(tc.status); got != tc.approved {
			t.Fatalf("IsApproved(%s)=%v, want %v", tc.status, got, tc.approved)
		}
		if got := IsPaid(tc.status); got != tc.paid {
			t.Fatalf("IsPaid(%s)=%v, want %v", tc.status, got, tc.paid)
		}
	}
}

func TestNormalizeLifecycleStatus(t *testing.T) {
	if got := NormalizeLifecycleStatus(" Estimate_Sent "); got != StatusEstimateSent {
		t.Fatalf("normalize: got %q", got)
	}
	if got := NormalizeLifecycleStatus("cancelled"); got != StatusCancelled {
		t.Fatalf("normalize cancelled: got %q", got)
	}
	if got := NormalizeLifecycleStatus("bogus"); got != "" {
		t.Fatalf("normalize bogus: got %q", got)
	}
}

func TestPrecedes(t *testing.T) {
	if !Precedes(StatusNew, StatusPaid) {
		t.Fatalf("new should precede paid")
	}
	if Precedes(StatusPaid, StatusNew) {
		t.Fatalf("paid should not precede new")
	}
	if Precedes(StatusCancelled, StatusNew) || Precedes(StatusNew, StatusCancelled) {
		t.Fatalf("cancelled should not participate in ladder ordering")
	}
}
