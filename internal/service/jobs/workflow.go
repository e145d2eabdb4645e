package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

func (s *Service) AddRug(ctx context.Context, caller Caller, rug domain.Rug) (domain.Rug, error) {
	current, err := s.guardedJob(ctx, caller, rug.JobID, guard.ActionAddRug)
	if err != nil {
		return domain.Rug{}, err
	}
	if strings.TrimSpace(rug.ID) == "" {
		rug.ID = s.newID()
	}
	rug.CreatedAt = s.now().UTC()
	if err := s.rugs.CreateRug(ctx, rug); err != nil {
		return domain.Rug{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "rug.added", domain.Metadata{"rug_id": rug.ID})
	return rug, nil
}

func (s *Service) UpdateRug(ctx context.Context, caller Caller, rug domain.Rug) (domain.Rug, error) {
	current, err := s.guardedJob(ctx, caller, rug.JobID, guard.ActionEditRug)
	if err != nil {
		return domain.Rug{}, err
	}
	stored, err := s.rugs.GetRug(ctx, rug.JobID, rug.ID)
	if err != nil {
		return domain.Rug{}, err
	}
	rug.AnalysisID = stored.AnalysisID
	rug.CreatedAt = stored.CreatedAt
	if err := s.rugs.UpdateRug(ctx, rug); err != nil {
		return domain.Rug{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "rug.updated", domain.Metadata{"rug_id": rug.ID})
	return rug, nil
}

func (s *Service) DeleteRug(ctx context.Context, caller Caller, jobID, rugID string) error {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionDeleteRug)
	if err != nil {
		return err
	}
	if err := s.rugs.DeleteRug(ctx, jobID, rugID); err != nil {
		return err
	}
	s.appendAudit(ctx, caller, current.Job, "rug.deleted", domain.Metadata{"rug_id": rugID})
	return nil
}

func (s *Service) ListRugs(ctx context.Context, caller Caller, jobID string) ([]domain.Rug, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return nil, err
	}
	return s.rugs.ListRugs(ctx, repo.RugFilter{JobID: jobID, Limit: 500})
}

// AttachAnalysis stores the external collaborator's report and marks the
// rug analyzed. The analysis itself runs outside this system.
func (s *Service) AttachAnalysis(ctx context.Context, caller Caller, jobID string, report domain.AnalysisReport) (domain.AnalysisReport, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionAnalyzeRug)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	rug, err := s.rugs.GetRug(ctx, jobID, report.RugID)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	if strings.TrimSpace(report.ID) == "" {
		report.ID = s.newID()
	}
	report.CreatedAt = s.now().UTC()
	if err := s.rugs.CreateAnalysisReport(ctx, report); err != nil {
		return domain.AnalysisReport{}, err
	}
	rug.AnalysisID = report.ID
	if err := s.rugs.UpdateRug(ctx, rug); err != nil {
		return domain.AnalysisReport{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "rug.analyzed", domain.Metadata{
		"rug_id":      rug.ID,
		"analysis_id": report.ID,
	})
	return report, nil
}

// GetAnalysis returns the stored analysis report for a rug.
func (s *Service) GetAnalysis(ctx context.Context, caller Caller, jobID, rugID string) (domain.AnalysisReport, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return domain.AnalysisReport{}, err
	}
	rug, err := s.rugs.GetRug(ctx, jobID, rugID)
	if err != nil {
		return domain.AnalysisReport{}, err
	}
	if !rug.Analyzed() {
		return domain.AnalysisReport{}, repo.ErrNotFound
	}
	return s.rugs.GetAnalysisReport(ctx, rug.AnalysisID)
}

// CreateEstimate builds a priced estimate for a rug from its analysis
// report. Pricing work is guarded the same way as later price edits.
func (s *Service) CreateEstimate(ctx context.Context, caller Caller, jobID, rugID string, lines []domain.EstimateLine) (domain.Estimate, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionEditPricing)
	if err != nil {
		return domain.Estimate{}, err
	}
	rug, err := s.rugs.GetRug(ctx, jobID, rugID)
	if err != nil {
		return domain.Estimate{}, err
	}
	if !rug.Analyzed() {
		return domain.Estimate{}, &DeniedError{Permission: guard.ActionPermission{
			Kind:   guard.KindRugsNotAnalyzed,
			Reason: guard.Reason(guard.KindRugsNotAnalyzed),
		}}
	}
	estimate := domain.Estimate{
		ID:        s.newID(),
		JobID:     jobID,
		RugID:     rugID,
		Lines:     lines,
		CreatedAt: s.now().UTC(),
	}
	if err := s.estimates.CreateEstimate(ctx, estimate); err != nil {
		return domain.Estimate{}, err
	}
	if err := s.recomputeJobTotal(ctx, current.Job); err != nil {
		return domain.Estimate{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "estimate.created", domain.Metadata{
		"estimate_id": estimate.ID,
		"rug_id":      rugID,
		"total_cents": estimate.TotalCents(),
	})
	return estimate, nil
}

func (s *Service) ApproveEstimate(ctx context.Context, caller Caller, jobID, estimateID string) (domain.Estimate, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionApproveEstimate)
	if err != nil {
		return domain.Estimate{}, err
	}
	estimate, err := s.estimates.GetEstimate(ctx, jobID, estimateID)
	if err != nil {
		return domain.Estimate{}, err
	}
	if estimate.Approved {
		return estimate, nil
	}
	approvedAt := s.now().UTC()
	estimate.Approved = true
	estimate.ApprovedBy = caller.Audit.Actor
	estimate.ApprovedAt = &approvedAt
	if err := s.estimates.UpdateEstimate(ctx, estimate); err != nil {
		return domain.Estimate{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "estimate.approved", domain.Metadata{
		"estimate_id": estimateID,
	})
	return estimate, nil
}

// UpdatePricing replaces an estimate's lines and recomputes the job total.
// Once the job is paid the matrix denies this for staff; an admin override
// is surfaced in the audit trail by guardedJob.
func (s *Service) UpdatePricing(ctx context.Context, caller Caller, jobID, estimateID string, lines []domain.EstimateLine) (domain.Estimate, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionEditPricing)
	if err != nil {
		return domain.Estimate{}, err
	}
	estimate, err := s.estimates.GetEstimate(ctx, jobID, estimateID)
	if err != nil {
		return domain.Estimate{}, err
	}
	estimate.Lines = lines
	// Repricing invalidates any earlier staff approval.
	estimate.Approved = false
	estimate.ApprovedBy = ""
	estimate.ApprovedAt = nil
	if err := s.estimates.UpdateEstimate(ctx, estimate); err != nil {
		return domain.Estimate{}, err
	}
	if err := s.recomputeJobTotal(ctx, current.Job); err != nil {
		return domain.Estimate{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "estimate.repriced", domain.Metadata{
		"estimate_id": estimateID,
		"total_cents": estimate.TotalCents(),
	})
	return estimate, nil
}

func (s *Service) ListEstimates(ctx context.Context, caller Caller, jobID string) ([]domain.Estimate, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return nil, err
	}
	return s.estimates.ListEstimates(ctx, jobID)
}

// SendToClient advances the job to estimate_sent. The caller issues the
// portal link once this returns; the guard has already confirmed every
// analyzed rug carries an approved estimate.
func (s *Service) SendToClient(ctx context.Context, caller Caller, jobID string) (Result, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionSendToClient)
	if err != nil {
		return Result{}, err
	}
	if current.Job.Status == domain.StatusEstimateSent {
		return current, nil
	}
	return s.applyTransition(ctx, caller, current.Job, domain.StatusEstimateSent, current.Warning)
}

// ClientApprove records the client's approval, materializes the accepted
// services as work items, and advances the job.
func (s *Service) ClientApprove(ctx context.Context, caller Caller, jobID string, declinedCodes []string) (Result, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionClientApprove)
	if err != nil {
		return Result{}, err
	}
	job := current.Job

	declined := make(map[string]bool, len(declinedCodes))
	for _, code := range declinedCodes {
		declined[strings.ToLower(strings.TrimSpace(code))] = true
	}

	estimates, err := s.estimates.ListEstimates(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	for _, estimate := range estimates {
		if !estimate.Approved {
			continue
		}
		for _, line := range estimate.Lines {
			if line.Declined {
				continue
			}
			item := domain.ServiceItem{
				ID:          s.newID(),
				JobID:       jobID,
				RugID:       estimate.RugID,
				ServiceCode: line.ServiceCode,
				PriceCents:  line.PriceCents,
				Declined:    declined[strings.ToLower(strings.TrimSpace(line.ServiceCode))],
			}
			if err := s.items.CreateServiceItem(ctx, item); err != nil {
				return Result{}, err
			}
		}
	}

	if job.Metadata == nil {
		job.Metadata = domain.Metadata{}
	}
	job.Metadata[metadataKeyClientApproved] = s.now().UTC().Format(time.RFC3339)
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return Result{}, err
	}
	s.appendAudit(ctx, caller, job, "client.approved", domain.Metadata{
		"declined_codes": declinedCodes,
	})

	return s.applyTransition(ctx, caller, job, domain.StatusClientApprovedUnpaid, current.Warning)
}

// RecordPayment stores what the payment provider reported and advances
// the job once the full authorized amount is captured.
func (s *Service) RecordPayment(ctx context.Context, caller Caller, event domain.PaymentEvent) (Result, error) {
	current, err := s.guardedJob(ctx, caller, event.JobID, guard.ActionProcessPayment)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(event.ID) == "" {
		event.ID = s.newID()
	}
	event.CreatedAt = s.now().UTC()
	if err := s.payments.AppendPaymentEvent(ctx, event); err != nil {
		return Result{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "payment.recorded", domain.Metadata{
		"payment_event_id":  event.ID,
		"status":            string(event.Status),
		"captured_cents":    event.CapturedCents,
		"covers_authorized": event.CoversAuthorizedAmount(),
	})
	// Partial captures accumulate; advance once the completed total
	// covers the job.
	covered, err := s.paymentCovered(ctx, current.Job)
	if err != nil {
		return Result{}, err
	}
	if !covered {
		return current, nil
	}
	return s.applyTransition(ctx, caller, current.Job, domain.StatusPaid, current.Warning)
}

func (s *Service) ListPayments(ctx context.Context, caller Caller, jobID string) ([]domain.PaymentEvent, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return nil, err
	}
	return s.payments.ListPaymentEvents(ctx, jobID)
}

func (s *Service) MarkServiceComplete(ctx context.Context, caller Caller, jobID, itemID string) (domain.ServiceItem, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionMarkServiceComplete)
	if err != nil {
		return domain.ServiceItem{}, err
	}
	items, err := s.items.ListServiceItems(ctx, jobID)
	if err != nil {
		return domain.ServiceItem{}, err
	}
	var found *domain.ServiceItem
	for i := range items {
		if items[i].ID == itemID {
			found = &items[i]
			break
		}
	}
	if found == nil {
		return domain.ServiceItem{}, repo.ErrNotFound
	}
	if found.Completed {
		return *found, nil
	}
	completedAt := s.now().UTC()
	found.Completed = true
	found.CompletedAt = &completedAt
	found.CompletedBy = caller.Audit.Actor
	if err := s.items.UpdateServiceItem(ctx, *found); err != nil {
		return domain.ServiceItem{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "service.completed", domain.Metadata{
		"item_id":      itemID,
		"service_code": found.ServiceCode,
	})
	return *found, nil
}

// RemoveServiceItem drops a selected service from the job's scope and
// recomputes the total. Scope changes are priced work, so the pricing
// guard applies and the job locks after payment.
func (s *Service) RemoveServiceItem(ctx context.Context, caller Caller, jobID, itemID string) error {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionEditPricing)
	if err != nil {
		return err
	}
	if err := s.items.DeleteServiceItem(ctx, jobID, itemID); err != nil {
		return err
	}
	s.appendAudit(ctx, caller, current.Job, "service.removed", domain.Metadata{
		"item_id": itemID,
	})
	return nil
}

func (s *Service) ListServiceItems(ctx context.Context, caller Caller, jobID string) ([]domain.ServiceItem, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return nil, err
	}
	return s.items.ListServiceItems(ctx, jobID)
}

func (s *Service) ScheduleDelivery(ctx context.Context, caller Caller, jobID string, deliveryDate time.Time) (Result, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionScheduleDelivery)
	if err != nil {
		return Result{}, err
	}
	job := current.Job
	delivery := deliveryDate.UTC()
	job.DeliveryDate = &delivery
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return Result{}, err
	}
	s.appendAudit(ctx, caller, job, "delivery.scheduled", domain.Metadata{
		"delivery_date": delivery.Format(time.RFC3339),
	})
	return Result{Job: job, Warning: current.Warning}, nil
}

// AttachPhoto records an uploaded photo against a job. The bytes are
// already in the object store by the time this runs.
func (s *Service) AttachPhoto(ctx context.Context, caller Caller, photo domain.Photo) (domain.Photo, error) {
	current, err := s.guardedJob(ctx, caller, photo.JobID, guard.ActionUploadPhotos)
	if err != nil {
		return domain.Photo{}, err
	}
	if strings.TrimSpace(photo.ID) == "" {
		photo.ID = s.newID()
	}
	photo.UploadedBy = caller.Audit.Actor
	photo.CreatedAt = s.now().UTC()
	if err := s.photos.CreatePhoto(ctx, photo); err != nil {
		return domain.Photo{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "photo.attached", domain.Metadata{
		"photo_id": photo.ID,
		"rug_id":   photo.RugID,
	})
	return photo, nil
}

// RemovePhoto deletes a photo record and returns it so the caller can
// drop the stored object as well.
func (s *Service) RemovePhoto(ctx context.Context, caller Caller, jobID, photoID string) (domain.Photo, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionUploadPhotos)
	if err != nil {
		return domain.Photo{}, err
	}
	photo, err := s.photos.GetPhoto(ctx, jobID, photoID)
	if err != nil {
		return domain.Photo{}, err
	}
	if err := s.photos.DeletePhoto(ctx, jobID, photoID); err != nil {
		return domain.Photo{}, err
	}
	s.appendAudit(ctx, caller, current.Job, "photo.deleted", domain.Metadata{
		"photo_id": photoID,
		"rug_id":   photo.RugID,
	})
	return photo, nil
}

func (s *Service) ListPhotos(ctx context.Context, caller Caller, jobID, rugID string) ([]domain.Photo, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return nil, err
	}
	return s.photos.ListPhotos(ctx, repo.PhotoFilter{JobID: jobID, RugID: rugID, Limit: 500})
}

// recomputeJobTotal resolves the job total from the non-declined lines of
// every estimate on the job.
func (s *Service) recomputeJobTotal(ctx context.Context, job domain.Job) error {
	estimates, err := s.estimates.ListEstimates(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load estimates: %w", err)
	}
	var total int64
	for _, estimate := range estimates {
		total += estimate.TotalCents()
	}
	job.TotalCents = total
	job.UpdatedAt = s.now().UTC()
	return s.jobs.UpdateJob(ctx, job)
}
