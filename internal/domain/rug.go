package domain

import (
	"errors"
	"strings"
	"time"
)

// Rug is one item within a job.
type Rug struct {
	ID          string
	JobID       string
	Description string
	WidthFt     float64
	LengthFt    float64
	Fiber       string
	AnalysisID  string
	CreatedAt   time.Time
	Metadata    Metadata
}

func (r Rug) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rug id is required")
	}
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("job id is required")
	}
	if r.WidthFt < 0 || r.LengthFt < 0 {
		return errors.New("rug dimensions must be >= 0")
	}
	return nil
}

// Analyzed reports whether the external analysis collaborator has
// produced a report for this rug.
func (r Rug) Analyzed() bool {
	return strings.TrimSpace(r.AnalysisID) != ""
}

// AnalysisReport records the external analysis service's proposal for a
// rug. The invocation and parsing of the analysis itself live outside
// this system; only the result is stored.
type AnalysisReport struct {
	ID               string
	RugID            string
	ProposedServices []ProposedService
	Confidence       float64
	CreatedAt        time.Time
	Raw              Metadata
}

// ProposedService is a single service the analysis suggests for a rug.
type ProposedService struct {
	Code       string
	Name       string
	PriceCents int64
}

func (a AnalysisReport) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("analysis id is required")
	}
	if strings.TrimSpace(a.RugID) == "" {
		return errors.New("rug id is required")
	}
	if len(a.ProposedServices) == 0 {
		return errors.New("at least one proposed service is required")
	}
	return nil
}
