package repo

import (
	"context"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

type JobFilter struct {
	TenantID   string
	Status     domain.LifecycleStatus
	ClientName string
	Limit      int
}

type RugFilter struct {
	JobID string
	Limit int
}

type PhotoFilter struct {
	JobID string
	RugID string
	Limit int
}

type AuditEventFilter struct {
	TenantID     string
	ResourceType string
	ResourceID   string
	Since        time.Time
	Limit        int
}

// TenantRepository manages cleaning companies.
type TenantRepository interface {
	Create(ctx context.Context, tenant domain.Tenant) error
	Get(ctx context.Context, id domain.TenantID) (domain.Tenant, error)
	List(ctx context.Context, limit int) ([]domain.Tenant, error)
}

// JobRepository manages jobs. Jobs are fetched by id alone; tenant ownership
// is checked by the caller before the record leaves the service, since
// cross-tenant and legacy records need distinct outcomes.
type JobRepository interface {
	CreateJob(ctx context.Context, job domain.Job) error
	GetJob(ctx context.Context, id string) (domain.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)
	UpdateJob(ctx context.Context, job domain.Job) error
	// UpdateJobStatus writes the status only when the stored status still
	// equals from. ErrConflict means a concurrent writer won.
	UpdateJobStatus(ctx context.Context, id string, from, to domain.LifecycleStatus, updatedAt time.Time) error
	DeleteJob(ctx context.Context, id string) error
}

// RugRepository manages rugs and their analysis reports.
type RugRepository interface {
	CreateRug(ctx context.Context, rug domain.Rug) error
	GetRug(ctx context.Context, jobID, id string) (domain.Rug, error)
	ListRugs(ctx context.Context, filter RugFilter) ([]domain.Rug, error)
	UpdateRug(ctx context.Context, rug domain.Rug) error
	DeleteRug(ctx context.Context, jobID, id string) error

	CreateAnalysisReport(ctx context.Context, report domain.AnalysisReport) error
	GetAnalysisReport(ctx context.Context, id string) (domain.AnalysisReport, error)
}

// EstimateRepository manages estimates and their lines.
type EstimateRepository interface {
	CreateEstimate(ctx context.Context, estimate domain.Estimate) error
	GetEstimate(ctx context.Context, jobID, id string) (domain.Estimate, error)
	ListEstimates(ctx context.Context, jobID string) ([]domain.Estimate, error)
	UpdateEstimate(ctx context.Context, estimate domain.Estimate) error
}

// PaymentRepository appends payment events; events are never rewritten.
type PaymentRepository interface {
	AppendPaymentEvent(ctx context.Context, event domain.PaymentEvent) error
	ListPaymentEvents(ctx context.Context, jobID string) ([]domain.PaymentEvent, error)
	CompletedTotalCents(ctx context.Context, jobID string) (int64, error)
}

// ServiceItemRepository manages the services selected for a job.
type ServiceItemRepository interface {
	CreateServiceItem(ctx context.Context, item domain.ServiceItem) error
	ListServiceItems(ctx context.Context, jobID string) ([]domain.ServiceItem, error)
	UpdateServiceItem(ctx context.Context, item domain.ServiceItem) error
	DeleteServiceItem(ctx context.Context, jobID, id string) error
}

// PhotoRepository manages photo records; bytes live in the object store.
type PhotoRepository interface {
	CreatePhoto(ctx context.Context, photo domain.Photo) error
	GetPhoto(ctx context.Context, jobID, id string) (domain.Photo, error)
	ListPhotos(ctx context.Context, filter PhotoFilter) ([]domain.Photo, error)
	DeletePhoto(ctx context.Context, jobID, id string) error
}

// AuditEventReader lists recorded audit events for export.
type AuditEventReader interface {
	ListAuditEvents(ctx context.Context, filter AuditEventFilter) ([]domain.AuditEvent, error)
}
