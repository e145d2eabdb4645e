package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

type fakeJobRepo struct {
	jobs map[string]domain.Job
}

func newFakeJobRepo(jobs ...domain.Job) *fakeJobRepo {
	out := &fakeJobRepo{jobs: map[string]domain.Job{}}
	for _, job := range jobs {
		out.jobs[job.ID] = job
	}
	return out
}

func (f *fakeJobRepo) CreateJob(ctx context.Context, job domain.Job) error {
	if _, ok := f.jobs[job.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, repo.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) ListJobs(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range f.jobs {
		if filter.TenantID != "" {
			if job.TenantID == nil || job.TenantID.String() != filter.TenantID {
				continue
			}
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeJobRepo) UpdateJob(ctx context.Context, job domain.Job) error {
	if _, ok := f.jobs[job.ID]; !ok {
		return repo.ErrNotFound
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) UpdateJobStatus(ctx context.Context, id string, from, to domain.LifecycleStatus, updatedAt time.Time) error {
	job, ok := f.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if job.Status != from {
		return repo.ErrConflict
	}
	job.Status = to
	job.UpdatedAt = updatedAt
	f.jobs[id] = job
	return nil
}

func (f *fakeJobRepo) DeleteJob(ctx context.Context, id string) error {
	if _, ok := f.jobs[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.jobs, id)
	return nil
}

type fakeRugRepo struct {
	rugs    map[string]domain.Rug
	reports map[string]domain.AnalysisReport
}

func newFakeRugRepo(rugs ...domain.Rug) *fakeRugRepo {
	out := &fakeRugRepo{rugs: map[string]domain.Rug{}, reports: map[string]domain.AnalysisReport{}}
	for _, rug := range rugs {
		out.rugs[rug.ID] = rug
	}
	return out
}

func (f *fakeRugRepo) CreateRug(ctx context.Context, rug domain.Rug) error {
	if _, ok := f.rugs[rug.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.rugs[rug.ID] = rug
	return nil
}

func (f *fakeRugRepo) GetRug(ctx context.Context, jobID, id string) (domain.Rug, error) {
	rug, ok := f.rugs[id]
	if !ok || rug.JobID != jobID {
		return domain.Rug{}, repo.ErrNotFound
	}
	return rug, nil
}

func (f *fakeRugRepo) ListRugs(ctx context.Context, filter repo.RugFilter) ([]domain.Rug, error) {
	var out []domain.Rug
	for _, rug := range f.rugs {
		if rug.JobID == filter.JobID {
			out = append(out, rug)
		}
	}
	return out, nil
}

func (f *fakeRugRepo) UpdateRug(ctx context.Context, rug domain.Rug) error {
	if _, ok := f.rugs[rug.ID]; !ok {
		return repo.ErrNotFound
	}
	f.rugs[rug.ID] = rug
	return nil
}

func (f *fakeRugRepo) DeleteRug(ctx context.Context, jobID, id string) error {
	rug, ok := f.rugs[id]
	if !ok || rug.JobID != jobID {
		return repo.ErrNotFound
	}
	delete(f.rugs, id)
	return nil
}

func (f *fakeRugRepo) CreateAnalysisReport(ctx context.Context, report domain.AnalysisReport) error {
	if _, ok := f.reports[report.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.reports[report.ID] = report
	return nil
}

func (f *fakeRugRepo) GetAnalysisReport(ctx context.Context, id string) (domain.AnalysisReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return domain.AnalysisReport{}, repo.ErrNotFound
	}
	return report, nil
}

type fakeEstimateRepo struct {
	estimates map[string]domain.Estimate
}

func newFakeEstimateRepo(estimates ...domain.Estimate) *fakeEstimateRepo {
	out := &fakeEstimateRepo{estimates: map[string]domain.Estimate{}}
	for _, estimate := range estimates {
		out.estimates[estimate.ID] = estimate
	}
	return out
}

func (f *fakeEstimateRepo) CreateEstimate(ctx context.Context, estimate domain.Estimate) error {
	if _, ok := f.estimates[estimate.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.estimates[estimate.ID] = estimate
	return nil
}

func (f *fakeEstimateRepo) GetEstimate(ctx context.Context, jobID, id string) (domain.Estimate, error) {
	estimate, ok := f.estimates[id]
	if !ok || estimate.JobID != jobID {
		return domain.Estimate{}, repo.ErrNotFound
	}
	return estimate, nil
}

func (f *fakeEstimateRepo) ListEstimates(ctx context.Context, jobID string) ([]domain.Estimate, error) {
	var out []domain.Estimate
	for _, estimate := range f.estimates {
		if estimate.JobID == jobID {
			out = append(out, estimate)
		}
	}
	return out, nil
}

func (f *fakeEstimateRepo) UpdateEstimate(ctx context.Context, estimate domain.Estimate) error {
	if _, ok := f.estimates[estimate.ID]; !ok {
		return repo.ErrNotFound
	}
	f.estimates[estimate.ID] = estimate
	return nil
}

type fakePaymentRepo struct {
	events []domain.PaymentEvent
}

func (f *fakePaymentRepo) AppendPaymentEvent(ctx context.Context, event domain.PaymentEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakePaymentRepo) ListPaymentEvents(ctx context.Context, jobID string) ([]domain.PaymentEvent, error) {
	var out []domain.PaymentEvent
	for _, event := range f.events {
		if event.JobID == jobID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) CompletedTotalCents(ctx context.Context, jobID string) (int64, error) {
	var total int64
	for _, event := range f.events {
		if event.JobID == jobID && event.Status == domain.PaymentCompleted {
			total += event.CapturedCents
		}
	}
	return total, nil
}

type fakeItemRepo struct {
	items map[string]domain.ServiceItem
}

func newFakeItemRepo(items ...domain.ServiceItem) *fakeItemRepo {
	out := &fakeItemRepo{items: map[string]domain.ServiceItem{}}
	for _, item := range items {
		out.items[item.ID] = item
	}
	return out
}

func (f *fakeItemRepo) CreateServiceItem(ctx context.Context, item domain.ServiceItem) error {
	if _, ok := f.items[item.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemRepo) ListServiceItems(ctx context.Context, jobID string) ([]domain.ServiceItem, error) {
	var out []domain.ServiceItem
	for _, item := range f.items {
		if item.JobID == jobID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeItemRepo) UpdateServiceItem(ctx context.Context, item domain.ServiceItem) error {
	if _, ok := f.items[item.ID]; !ok {
		return repo.ErrNotFound
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeItemRepo) DeleteServiceItem(ctx context.Context, jobID, id string) error {
	item, ok := f.items[id]
	if !ok || item.JobID != jobID {
		return repo.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakePhotoRepo struct {
	photos map[string]domain.Photo
}

func newFakePhotoRepo() *fakePhotoRepo {
	return &fakePhotoRepo{photos: map[string]domain.Photo{}}
}

func (f *fakePhotoRepo) CreatePhoto(ctx context.Context, photo domain.Photo) error {
	if _, ok := f.photos[photo.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.photos[photo.ID] = photo
	return nil
}

func (f *fakePhotoRepo) GetPhoto(ctx context.Context, jobID, id string) (domain.Photo, error) {
	photo, ok := f.photos[id]
	if !ok || photo.JobID != jobID {
		return domain.Photo{}, repo.ErrNotFound
	}
	return photo, nil
}

func (f *fakePhotoRepo) ListPhotos(ctx context.Context, filter repo.PhotoFilter) ([]domain.Photo, error) {
	var out []domain.Photo
	for _, photo := range f.photos {
		if photo.JobID != filter.JobID {
			continue
		}
		if filter.RugID != "" && photo.RugID != filter.RugID {
			continue
		}
		out = append(out, photo)
	}
	return out, nil
}

func (f *fakePhotoRepo) DeletePhoto(ctx context.Context, jobID, id string) error {
	photo, ok := f.photos[id]
	if !ok || photo.JobID != jobID {
		return repo.ErrNotFound
	}
	delete(f.photos, id)
	return nil
}

type fakeAuditor struct {
	events []domain.AuditEvent
}

func (f *fakeAuditor) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

func (f *fakeAuditor) actions() []string {
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.Action)
	}
	return out
}

type serviceFixture struct {
	service  *Service
	jobs     *fakeJobRepo
	rugs     *fakeRugRepo
	ests     *fakeEstimateRepo
	payments *fakePaymentRepo
	items    *fakeItemRepo
	photos   *fakePhotoRepo
	audit    *fakeAuditor
}

func newServiceFixture(jobs ...domain.Job) *serviceFixture {
	f := &serviceFixture{
		jobs:     newFakeJobRepo(jobs...),
		rugs:     newFakeRugRepo(),
		ests:     newFakeEstimateRepo(),
		payments: &fakePaymentRepo{},
		items:    newFakeItemRepo(),
		photos:   newFakePhotoRepo(),
		audit:    &fakeAuditor{},
	}
	f.service = New(f.jobs, f.rugs, f.ests, f.payments, f.items, f.photos, f.audit)
	ids := 0
	f.service.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	f.service.now = func() time.Time {
		return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	}
	return f
}
