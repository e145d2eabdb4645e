package domain

import (
	"errors"
	"strings"
	"time"
)

// TenantID identifies the owning company. Jobs created before the
// multi-tenant migration carry no tenant id; a nil *TenantID models that.
type TenantID string

func (t TenantID) String() string { return string(t) }

// Tenant is a rug-cleaning business whose staff and jobs are isolated
// from every other tenant's data.
type Tenant struct {
	ID        TenantID
	Name      string
	CreatedAt time.Time
	Metadata  Metadata
}

func (t Tenant) Validate() error {
	if strings.TrimSpace(string(t.ID)) == "" {
		return errors.New("tenant id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tenant name is required")
	}
	return nil
}
