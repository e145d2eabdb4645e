// Package jobs orchestrates the job lifecycle: every mutation passes the
// permission check for its action, and every status change passes the
// transition validator before the compare-and-swap write.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

// metadataKeyClientApproved marks the moment the client approved the
// estimate; the paid precondition reads it back.
const metadataKeyClientApproved = "client_approved_at"

// Auditor appends an audit event and returns its id.
type Auditor interface {
	Append(ctx context.Context, event domain.AuditEvent) (int64, error)
}

type Service struct {
	jobs      repo.JobRepository
	rugs      repo.RugRepository
	estimates repo.EstimateRepository
	payments  repo.PaymentRepository
	items     repo.ServiceItemRepository
	photos    repo.PhotoRepository
	audit     Auditor
	now       func() time.Time
	newID     func() string
}

// AuditInfo carries request attribution into audit events.
type AuditInfo struct {
	Actor     string
	RequestID string
	UserAgent string
	IP        net.IP
}

// Caller is the authenticated principal a guarded operation runs as.
type Caller struct {
	Role          guard.Role
	TenantID      *domain.TenantID
	AdminOverride bool
	Audit         AuditInfo
}

func New(
	jobRepo repo.JobRepository,
	rugRepo repo.RugRepository,
	estimateRepo repo.EstimateRepository,
	paymentRepo repo.PaymentRepository,
	itemRepo repo.ServiceItemRepository,
	photoRepo repo.PhotoRepository,
	audit Auditor,
) *Service {
	if jobRepo == nil || rugRepo == nil || estimateRepo == nil || paymentRepo == nil || itemRepo == nil || photoRepo == nil {
		return nil
	}
	return &Service{
		jobs:      jobRepo,
		rugs:      rugRepo,
		estimates: estimateRepo,
		payments:  paymentRepo,
		items:     itemRepo,
		photos:    photoRepo,
		audit:     audit,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// DeniedError reports a guard denial. The permission carries the stable
// kind and the human sentence the surface should show unchanged.
type DeniedError struct {
	Permission guard.ActionPermission
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Permission.Kind, e.Permission.Reason)
}

// TransitionDeniedError reports a rejected status change.
type TransitionDeniedError struct {
	Decision guard.TransitionDecision
}

func (e *TransitionDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Decision.Kind, e.Decision.Reason)
}

// Result pairs a job with the warnings accrued while checking it.
type Result struct {
	Job      domain.Job
	Warning  string
	Override bool
}

// authorize runs the full permission check for an action against a job and
// converts denials to DeniedError.
func (s *Service) authorize(job domain.Job, action guard.Action, caller Caller) (guard.ActionPermission, error) {
	perm := guard.Check(guard.CheckInput{
		Action:        action,
		Role:          caller.Role,
		Status:        job.Status,
		RecordTenant:  job.TenantID,
		CallerTenant:  caller.TenantID,
		AdminOverride: caller.AdminOverride,
	})
	if !perm.Allowed {
		return perm, &DeniedError{Permission: perm}
	}
	return perm, nil
}

// Permissions evaluates every known action against a job so the UI can
// grey out what the caller cannot do. The map never omits an action.
func (s *Service) Permissions(job domain.Job, caller Caller) map[guard.Action]guard.ActionPermission {
	out := make(map[guard.Action]guard.ActionPermission, len(guard.Actions()))
	for _, action := range guard.Actions() {
		out[action] = guard.Check(guard.CheckInput{
			Action:        action,
			Role:          caller.Role,
			Status:        job.Status,
			RecordTenant:  job.TenantID,
			CallerTenant:  caller.TenantID,
			AdminOverride: caller.AdminOverride,
		})
	}
	return out
}

func (s *Service) CreateJob(ctx context.Context, caller Caller, job domain.Job) (domain.Job, error) {
	if caller.Role != guard.RoleStaff && caller.Role != guard.RoleAdmin {
		return domain.Job{}, &DeniedError{Permission: guard.ActionPermission{
			Kind:   guard.KindRoleNotPermitted,
			Reason: guard.Reason(guard.KindRoleNotPermitted),
		}}
	}
	if caller.TenantID == nil || strings.TrimSpace(caller.TenantID.String()) == "" {
		return domain.Job{}, &DeniedError{Permission: guard.ActionPermission{
			Kind:   guard.KindMissingCompanyContext,
			Reason: guard.Reason(guard.KindMissingCompanyContext),
		}}
	}

	now := s.now().UTC()
	if strings.TrimSpace(job.ID) == "" {
		job.ID = s.newID()
	}
	job.TenantID = caller.TenantID
	job.Status = domain.StatusNew
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Metadata == nil {
		job.Metadata = domain.Metadata{}
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return domain.Job{}, err
	}
	s.appendAudit(ctx, caller, job, "job.created", domain.Metadata{
		"client_name": job.ClientName,
	})
	return job, nil
}

// GetJob fetches a job and enforces tenant isolation before the record
// leaves the service. Legacy records come back with a warning.
func (s *Service) GetJob(ctx context.Context, caller Caller, jobID string) (Result, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	tenantDecision := guard.ValidateTenantAccess(job.TenantID, caller.TenantID)
	if !tenantDecision.Valid {
		return Result{}, &DeniedError{Permission: guard.ActionPermission{
			Kind:   tenantDecision.Kind,
			Reason: tenantDecision.Reason,
		}}
	}
	return Result{Job: job, Warning: tenantDecision.Warning}, nil
}

func (s *Service) ListJobs(ctx context.Context, caller Caller, filter repo.JobFilter) ([]domain.Job, error) {
	if caller.TenantID == nil || strings.TrimSpace(caller.TenantID.String()) == "" {
		return nil, &DeniedError{Permission: guard.ActionPermission{
			Kind:   guard.KindMissingCompanyContext,
			Reason: guard.Reason(guard.KindMissingCompanyContext),
		}}
	}
	filter.TenantID = caller.TenantID.String()
	return s.jobs.ListJobs(ctx, filter)
}

func (s *Service) UpdateJob(ctx context.Context, caller Caller, job domain.Job) (Result, error) {
	current, err := s.guardedJob(ctx, caller, job.ID, guard.ActionEditJob)
	if err != nil {
		return Result{}, err
	}
	job.TenantID = current.Job.TenantID
	job.Status = current.Job.Status
	job.CreatedAt = current.Job.CreatedAt
	job.CreatedBy = current.Job.CreatedBy
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return Result{}, err
	}
	s.appendAudit(ctx, caller, job, "job.updated", nil)
	return Result{Job: job, Warning: current.Warning}, nil
}

// AdvanceStatus moves a job one rung up the ladder. The target is always
// the next status; skipping rungs is only reachable through OverrideStatus.
func (s *Service) AdvanceStatus(ctx context.Context, caller Caller, jobID string) (Result, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionAdvanceStatus)
	if err != nil {
		return Result{}, err
	}
	job := current.Job

	target, ok := domain.NextStatus(job.Status)
	if !ok {
		decision := guard.TransitionDecision{
			Kind:   guard.KindTerminalStatus,
			Reason: guard.Reason(guard.KindTerminalStatus),
		}
		if job.Status == domain.StatusCompleted {
			decision.Kind = guard.KindBackwardTransition
			decision.Reason = guard.Reason(guard.KindBackwardTransition)
		}
		return Result{}, &TransitionDeniedError{Decision: decision}
	}
	return s.applyTransition(ctx, caller, job, target, current.Warning)
}

// OverrideStatus forces the job to an arbitrary status. Only admins reach
// this; the transition validator still runs so the audit trail records
// what the override actually bypassed.
func (s *Service) OverrideStatus(ctx context.Context, caller Caller, jobID string, target domain.LifecycleStatus) (Result, error) {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionOverrideStatus)
	if err != nil {
		return Result{}, err
	}
	return s.applyTransition(ctx, caller, current.Job, target, current.Warning)
}

// CancelJob is a convenience for overriding into cancelled.
func (s *Service) CancelJob(ctx context.Context, caller Caller, jobID string) (Result, error) {
	return s.OverrideStatus(ctx, caller, jobID, domain.StatusCancelled)
}

func (s *Service) applyTransition(ctx context.Context, caller Caller, job domain.Job, target domain.LifecycleStatus, warning string) (Result, error) {
	transitionCtx, err := s.buildTransitionContext(ctx, job)
	if err != nil {
		return Result{}, err
	}
	overrideActive := caller.AdminOverride && guard.EffectiveRole(caller.Role, true) == guard.RoleAdmin
	decision := guard.ValidateTransition(job.Status, target, transitionCtx, overrideActive)
	if !decision.Allowed {
		return Result{}, &TransitionDeniedError{Decision: decision}
	}
	if target == job.Status {
		return Result{Job: job, Warning: warning}, nil
	}

	updatedAt := s.now().UTC()
	if err := s.jobs.UpdateJobStatus(ctx, job.ID, job.Status, target, updatedAt); err != nil {
		return Result{}, err
	}
	from := job.Status
	job.Status = target
	job.UpdatedAt = updatedAt

	action := "job.advanced"
	if decision.OverrideApplied {
		action = "job.overridden"
	}
	payload := domain.Metadata{
		"from": string(from),
		"to":   string(target),
	}
	if decision.OverrideApplied {
		payload["override_kind"] = decision.Kind
		payload["override_reason"] = decision.Reason
	}
	s.appendAudit(ctx, caller, job, action, payload)
	return Result{Job: job, Warning: warning, Override: decision.OverrideApplied}, nil
}

// buildTransitionContext derives every precondition flag fresh from
// storage. Nothing here is cached; a stale flag would let a transition
// through that the data no longer supports.
func (s *Service) buildTransitionContext(ctx context.Context, job domain.Job) (guard.TransitionContext, error) {
	var out guard.TransitionContext

	rugs, err := s.rugs.ListRugs(ctx, repo.RugFilter{JobID: job.ID, Limit: 500})
	if err != nil {
		return out, fmt.Errorf("load rugs: %w", err)
	}
	out.HasRugs = len(rugs) > 0
	out.RugsAnalyzed = out.HasRugs
	for _, rug := range rugs {
		if !rug.Analyzed() {
			out.RugsAnalyzed = false
			break
		}
	}

	estimates, err := s.estimates.ListEstimates(ctx, job.ID)
	if err != nil {
		return out, fmt.Errorf("load estimates: %w", err)
	}
	approvedByRug := make(map[string]bool, len(estimates))
	for _, estimate := range estimates {
		if estimate.Approved {
			approvedByRug[estimate.RugID] = true
		}
	}
	out.EstimatesApproved = out.RugsAnalyzed && len(estimates) > 0
	for _, rug := range rugs {
		if rug.Analyzed() && !approvedByRug[rug.ID] {
			out.EstimatesApproved = false
			break
		}
	}

	if job.Metadata != nil {
		if v, ok := job.Metadata[metadataKeyClientApproved].(string); ok && strings.TrimSpace(v) != "" {
			out.ClientApproved = true
		}
	}

	covered, err := s.paymentCovered(ctx, job)
	if err != nil {
		return out, fmt.Errorf("load payments: %w", err)
	}
	out.PaymentCompleted = covered

	items, err := s.items.ListServiceItems(ctx, job.ID)
	if err != nil {
		return out, fmt.Errorf("load service items: %w", err)
	}
	var active, done int
	for _, item := range items {
		if item.Declined {
			continue
		}
		active++
		if item.Completed {
			done++
		}
	}
	out.ServicesSelected = active > 0
	out.ServicesComplete = active > 0 && active == done

	return out, nil
}

// paymentCovered reports whether the captured total across completed
// payment events covers the job total. A zero captured total never
// counts, so a job with no priced work cannot slip into paid.
func (s *Service) paymentCovered(ctx context.Context, job domain.Job) (bool, error) {
	captured, err := s.payments.CompletedTotalCents(ctx, job.ID)
	if err != nil {
		return false, err
	}
	return captured > 0 && captured >= job.TotalCents, nil
}

func (s *Service) DeleteJob(ctx context.Context, caller Caller, jobID string) error {
	current, err := s.guardedJob(ctx, caller, jobID, guard.ActionDeleteJob)
	if err != nil {
		return err
	}
	if err := s.jobs.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.appendAudit(ctx, caller, current.Job, "job.deleted", nil)
	return nil
}

// guardedJob loads a job and runs the full permission check for an action.
func (s *Service) guardedJob(ctx context.Context, caller Caller, jobID string, action guard.Action) (Result, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	perm, err := s.authorize(job, action, caller)
	if err != nil {
		return Result{}, err
	}
	if perm.OverrideApplied {
		s.appendAudit(ctx, caller, job, "guard.override", domain.Metadata{
			"action":          string(action),
			"override_kind":   perm.Kind,
			"override_reason": perm.Reason,
		})
	}
	return Result{Job: job, Warning: perm.Warning, Override: perm.OverrideApplied}, nil
}

func (s *Service) appendAudit(ctx context.Context, caller Caller, job domain.Job, action string, payload domain.Metadata) {
	if s.audit == nil {
		return
	}
	actor := strings.TrimSpace(caller.Audit.Actor)
	if actor == "" {
		actor = "system"
	}
	tenantID := ""
	if job.TenantID != nil {
		tenantID = job.TenantID.String()
	}
	if payload == nil {
		payload = domain.Metadata{}
	}
	_, _ = s.audit.Append(ctx, domain.AuditEvent{
		OccurredAt:   s.now().UTC(),
		TenantID:     tenantID,
		Actor:        actor,
		Action:       action,
		ResourceType: "job",
		ResourceID:   job.ID,
		RequestID:    caller.Audit.RequestID,
		IP:           caller.Audit.IP,
		UserAgent:    caller.Audit.UserAgent,
		Payload:      payload,
	})
}

// errStatusChanged keeps the CAS conflict distinguishable for callers.
var errStatusChanged = errors.New("job status changed concurrently")

// IsConflict reports whether err is the CAS conflict from a concurrent
// status writer.
func IsConflict(err error) bool {
	return errors.Is(err, repo.ErrConflict) || errors.Is(err, errStatusChanged)
}
