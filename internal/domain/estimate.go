package domain

import (
	"errors"
	"strings"
	"time"
)

// Estimate is the priced proposal for a single rug, derived from its
// analysis report and the tenant's service catalog. Staff approve it
// before it may be sent to the client.
type Estimate struct {
	ID         string
	JobID      string
	RugID      string
	Lines      []EstimateLine
	Approved   bool
	ApprovedBy string
	ApprovedAt *time.Time
	CreatedAt  time.Time
}

// EstimateLine is one service on an estimate. Declined lines stay on the
// record so the client-facing view can show what was ruled out.
type EstimateLine struct {
	ServiceCode string
	ServiceName string
	PriceCents  int64
	Declined    bool
}

func (e Estimate) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("estimate id is required")
	}
	if strings.TrimSpace(e.JobID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(e.RugID) == "" {
		return errors.New("rug id is required")
	}
	if len(e.Lines) == 0 {
		return errors.New("estimate needs at least one line")
	}
	for _, line := range e.Lines {
		if strings.TrimSpace(line.ServiceCode) == "" {
			return errors.New("estimate line service code is required")
		}
		if line.PriceCents < 0 {
			return errors.New("estimate line price must be >= 0")
		}
	}
	return nil
}

// TotalCents sums the non-declined lines.
func (e Estimate) TotalCents() int64 {
	var total int64
	for _, line := range e.Lines {
		if line.Declined {
			continue
		}
		total += line.PriceCents
	}
	return total
}
