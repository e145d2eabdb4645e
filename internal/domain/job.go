package domain

import (
	"errors"
	"strings"
	"time"
)

// Job is a single intake-to-delivery engagement for a client's rugs.
// TenantID is a pointer: records predating the multi-tenant migration
// have none, and the guard treats those as legacy-allowed with a warning.
type Job struct {
	ID           string
	TenantID     *TenantID
	ClientName   string
	ClientEmail  string
	Status       LifecycleStatus
	TotalCents   int64
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
	DeliveryDate *time.Time
	Metadata     Metadata
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(j.ClientName) == "" {
		return errors.New("client name is required")
	}
	if !j.Status.Valid() {
		return errors.New("job status is invalid")
	}
	if j.TotalCents < 0 {
		return errors.New("job total must be >= 0")
	}
	return nil
}
