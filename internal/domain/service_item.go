package domain

import (
	"errors"
	"strings"
	"time"
)

// ServiceItem is one approved service scheduled against a rug. Items the
// client declined stay on the job but are excluded from completion
// accounting.
type ServiceItem struct {
	ID          string
	JobID       string
	RugID       string
	ServiceCode string
	PriceCents  int64
	Declined    bool
	Completed   bool
	CompletedAt *time.Time
	CompletedBy string
}

func (s ServiceItem) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("service item id is required")
	}
	if strings.TrimSpace(s.JobID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(s.ServiceCode) == "" {
		return errors.New("service code is required")
	}
	if s.PriceCents < 0 {
		return errors.New("service price must be >= 0")
	}
	return nil
}

// Photo is a rug photo stored in the object store.
type Photo struct {
	ID          string
	JobID       string
	RugID       string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	UploadedBy  string
	CreatedAt   time.Time
}

func (p Photo) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("photo id is required")
	}
	if strings.TrimSpace(p.JobID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(p.ObjectKey) == "" {
		return errors.New("object key is required")
	}
	return nil
}
