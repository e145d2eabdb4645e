package domain

import "strings"

// LifecycleStatus is the job lifecycle state. Jobs advance one rung at a
// time along the ladder; cancelled is a terminal side state reachable only
// through an administrator override, never by normal advancement.
type LifecycleStatus string

const (
	StatusNew                  LifecycleStatus = "new"
	StatusInspecting           LifecycleStatus = "inspecting"
	StatusEstimateReview       LifecycleStatus = "estimate_review"
	StatusEstimateSent         LifecycleStatus = "estimate_sent"
	StatusClientApprovedUnpaid LifecycleStatus = "client_approved_unpaid"
	StatusPaid                 LifecycleStatus = "paid"
	StatusInService            LifecycleStatus = "in_service"
	StatusCompleted            LifecycleStatus = "completed"
	StatusCancelled            LifecycleStatus = "cancelled"
)

// ladder is the authoritative ordering. Every "is this job past X"
// question anywhere in the codebase goes through the predicates below so
// the ordering has a single source of truth.
var ladder = []LifecycleStatus{
	StatusNew,
	StatusInspecting,
	StatusEstimateReview,
	StatusEstimateSent,
	StatusClientApprovedUnpaid,
	StatusPaid,
	StatusInService,
	StatusCompleted,
}

// NormalizeLifecycleStatus maps free-form status values to canonical ones.
func NormalizeLifecycleStatus(value string) LifecycleStatus {
	normalized := LifecycleStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == StatusCancelled {
		return StatusCancelled
	}
	for _, status := range ladder {
		if status == normalized {
			return status
		}
	}
	return ""
}

// Valid reports whether the status is a known lifecycle state.
func (s LifecycleStatus) Valid() bool {
	return NormalizeLifecycleStatus(string(s)) != ""
}

// ladderRank returns the ladder position of a status, or -1 for cancelled
// and unknown values, which never participate in ordering comparisons.
func ladderRank(status LifecycleStatus) int {
	for i, s := range ladder {
		if s == status {
			return i
		}
	}
	return -1
}

// NextStatus returns the immediate successor on the ladder. ok is false
// for completed and cancelled (both terminal) and for unknown values.
func NextStatus(current LifecycleStatus) (LifecycleStatus, bool) {
	rank := ladderRank(current)
	if rank < 0 || rank == len(ladder)-1 {
		return "", false
	}
	return ladder[rank+1], true
}

// IsTerminal reports whether no further advancement is possible.
func IsTerminal(status LifecycleStatus) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// IsStatusLocked reports whether the job is at or past paid, after which
// pricing can no longer be edited by non-admins.
func IsStatusLocked(status LifecycleStatus) bool {
	return atOrPast(status, StatusPaid)
}

// IsEstimateSent reports whether the estimate has gone out to the client.
func IsEstimateSent(status LifecycleStatus) bool {
	return atOrPast(status, StatusEstimateSent)
}

// IsApproved reports whether the client has approved the estimate.
func IsApproved(status LifecycleStatus) bool {
	return atOrPast(status, StatusClientApprovedUnpaid)
}

// IsPaid reports whether payment has been collected in full.
func IsPaid(status LifecycleStatus) bool {
	return atOrPast(status, StatusPaid)
}

func atOrPast(status, threshold LifecycleStatus) bool {
	rank := ladderRank(status)
	if rank < 0 {
		return false
	}
	return rank >= ladderRank(threshold)
}

// Precedes reports whether a sits strictly before b on the ladder.
// Cancelled and unknown statuses precede nothing.
func Precedes(a, b LifecycleStatus) bool {
	rankA := ladderRank(a)
	rankB := ladderRank(b)
	if rankA < 0 || rankB < 0 {
		return false
	}
	return rankA < rankB
}
