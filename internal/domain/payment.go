package domain

import (
	"errors"
	"strings"
	"time"
)

// PaymentEventStatus mirrors what the payment collaborator reports back.
type PaymentEventStatus string

const (
	PaymentPending   PaymentEventStatus = "pending"
	PaymentCompleted PaymentEventStatus = "completed"
	PaymentFailed    PaymentEventStatus = "failed"
)

// PaymentEvent records the outcome of an external checkout session. The
// checkout flow itself is out of scope; the portal only records what the
// provider reports.
type PaymentEvent struct {
	ID              string
	JobID           string
	Status          PaymentEventStatus
	AuthorizedCents int64
	CapturedCents   int64
	ProviderRef     string
	CreatedAt       time.Time
}

func (p PaymentEvent) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("payment event id is required")
	}
	if strings.TrimSpace(p.JobID) == "" {
		return errors.New("job id is required")
	}
	switch p.Status {
	case PaymentPending, PaymentCompleted, PaymentFailed:
	default:
		return errors.New("payment event status is invalid")
	}
	if p.AuthorizedCents < 0 || p.CapturedCents < 0 {
		return errors.New("payment amounts must be >= 0")
	}
	return nil
}

// CoversAuthorizedAmount reports whether the event captured the full
// authorized amount, the condition for entering paid. A zero-amount
// event never counts as payment.
func (p PaymentEvent) CoversAuthorizedAmount() bool {
	return p.Status == PaymentCompleted && p.AuthorizedCents > 0 && p.CapturedCents >= p.AuthorizedCents
}
