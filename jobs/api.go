package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rugtrack-labs/rugtrack-go/internal/catalog"
	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auth"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
	jobsvc "github.com/rugtrack-labs/rugtrack-go/internal/service/jobs"
	photosvc "github.com/rugtrack-labs/rugtrack-go/internal/service/photos"
)

// warningHeader carries non-blocking guard warnings, e.g. legacy records
// without a company assignment.
const warningHeader = "X-Rugtrack-Warning"

type jobsAPI struct {
	logger            *slog.Logger
	svc               *jobsvc.Service
	photos            *photosvc.Service
	tenants           repo.TenantRepository
	auditEvents       repo.AuditEventReader
	catalog           catalog.Spec
	portalSecret      string
	portalTTL         time.Duration
	photoUploadMaxMiB int64
	now               func() time.Time
}

func newJobsAPI(
	logger *slog.Logger,
	svc *jobsvc.Service,
	photos *photosvc.Service,
	tenants repo.TenantRepository,
	auditEvents repo.AuditEventReader,
	spec catalog.Spec,
	portalSecret string,
	portalTTL time.Duration,
	photoUploadMaxMiB int64,
) *jobsAPI {
	if portalTTL <= 0 {
		portalTTL = 72 * time.Hour
	}
	if photoUploadMaxMiB <= 0 {
		photoUploadMaxMiB = 32
	}
	return &jobsAPI{
		logger:            logger,
		svc:               svc,
		photos:            photos,
		tenants:           tenants,
		auditEvents:       auditEvents,
		catalog:           spec,
		portalSecret:      portalSecret,
		portalTTL:         portalTTL,
		photoUploadMaxMiB: photoUploadMaxMiB,
		now:               time.Now,
	}
}

func (api *jobsAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/catalog", api.handleGetCatalog)

	mux.HandleFunc("POST /v1/jobs", api.handleCreateJob)
	mux.HandleFunc("GET /v1/jobs", api.handleListJobs)
	mux.HandleFunc("GET /v1/jobs/{job_id}", api.handleGetJob)
	mux.HandleFunc("PATCH /v1/jobs/{job_id}", api.handleUpdateJob)
	mux.HandleFunc("DELETE /v1/jobs/{job_id}", api.handleDeleteJob)

	mux.HandleFunc("GET /v1/jobs/{job_id}/permissions", api.handlePermissions)
	mux.HandleFunc("POST /v1/jobs/{job_id}/advance", api.handleAdvance)
	mux.HandleFunc("POST /v1/jobs/{job_id}/override", api.handleOverride)
	mux.HandleFunc("POST /v1/jobs/{job_id}/cancel", api.handleCancel)

	mux.HandleFunc("GET /v1/jobs/{job_id}/rugs", api.handleListRugs)
	mux.HandleFunc("POST /v1/jobs/{job_id}/rugs", api.handleAddRug)
	mux.HandleFunc("PATCH /v1/jobs/{job_id}/rugs/{rug_id}", api.handleUpdateRug)
	mux.HandleFunc("DELETE /v1/jobs/{job_id}/rugs/{rug_id}", api.handleDeleteRug)
	mux.HandleFunc("POST /v1/jobs/{job_id}/rugs/{rug_id}/analysis", api.handleAttachAnalysis)
	mux.HandleFunc("GET /v1/jobs/{job_id}/rugs/{rug_id}/analysis", api.handleGetAnalysis)

	mux.HandleFunc("GET /v1/jobs/{job_id}/estimates", api.handleListEstimates)
	mux.HandleFunc("POST /v1/jobs/{job_id}/rugs/{rug_id}/estimates", api.handleCreateEstimate)
	mux.HandleFunc("POST /v1/jobs/{job_id}/estimates/{estimate_id}/approve", api.handleApproveEstimate)
	mux.HandleFunc("PUT /v1/jobs/{job_id}/estimates/{estimate_id}/pricing", api.handleUpdatePricing)
	mux.HandleFunc("POST /v1/jobs/{job_id}/send", api.handleSendToClient)

	mux.HandleFunc("GET /v1/jobs/{job_id}/payments", api.handleListPayments)

	mux.HandleFunc("GET /v1/jobs/{job_id}/services", api.handleListServices)
	mux.HandleFunc("POST /v1/jobs/{job_id}/services/{item_id}/complete", api.handleCompleteService)
	mux.HandleFunc("DELETE /v1/jobs/{job_id}/services/{item_id}", api.handleRemoveService)
	mux.HandleFunc("POST /v1/jobs/{job_id}/delivery", api.handleScheduleDelivery)

	mux.HandleFunc("GET /v1/jobs/{job_id}/photos", api.handleListPhotos)
	mux.HandleFunc("POST /v1/jobs/{job_id}/photos", api.handleUploadPhoto)
	mux.HandleFunc("DELETE /v1/jobs/{job_id}/photos/{photo_id}", api.handleDeletePhoto)

	mux.HandleFunc("GET /v1/audit/export", api.handleAuditExport)

	mux.HandleFunc("POST /v1/tenants", api.handleCreateTenant)
	mux.HandleFunc("GET /v1/tenants", api.handleListTenants)
	mux.HandleFunc("GET /v1/tenants/{tenant_id}", api.handleGetTenant)
}

// caller builds the guard principal for the request from the
// authenticated identity. Role precedence: admin wins over staff; a
// session with neither is rejected by the middleware before this runs.
func (api *jobsAPI) caller(r *http.Request) (jobsvc.Caller, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return jobsvc.Caller{}, false
	}
	role := guard.RoleStaff
	if auth.IsAdmin(identity.Roles) {
		role = guard.RoleAdmin
	}
	caller := jobsvc.Caller{
		Role:          role,
		AdminOverride: auth.AdminOverrideRequested(r, identity),
		Audit: jobsvc.AuditInfo{
			Actor:     identity.Subject,
			RequestID: r.Header.Get("X-Request-Id"),
			UserAgent: r.UserAgent(),
			IP:        requestIP(r.RemoteAddr),
		},
	}
	if tenantID, ok := auth.TenantIDFromContext(r.Context()); ok && tenantID != "" {
		tid := domain.TenantID(tenantID)
		caller.TenantID = &tid
	}
	return caller, true
}

type jobResponse struct {
	JobID        string          `json:"job_id"`
	TenantID     string          `json:"tenant_id,omitempty"`
	ClientName   string          `json:"client_name"`
	ClientEmail  string          `json:"client_email,omitempty"`
	Status       string          `json:"status"`
	TotalCents   int64           `json:"total_cents"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CreatedBy    string          `json:"created_by,omitempty"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
}

func jobFromDomain(job domain.Job) jobResponse {
	metadata, _ := json.Marshal(job.Metadata)
	tenantID := ""
	if job.TenantID != nil {
		tenantID = job.TenantID.String()
	}
	return jobResponse{
		JobID:        job.ID,
		TenantID:     tenantID,
		ClientName:   job.ClientName,
		ClientEmail:  job.ClientEmail,
		Status:       string(job.Status),
		TotalCents:   job.TotalCents,
		Notes:        job.Notes,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CreatedBy:    job.CreatedBy,
		DeliveryDate: job.DeliveryDate,
		Metadata:     metadata,
	}
}

type createJobRequest struct {
	ClientName  string         `json:"client_name"`
	ClientEmail string         `json:"client_email,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (api *jobsAPI) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, api.catalog)
}

func (api *jobsAPI) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.ClientName) == "" {
		api.writeError(w, r, http.StatusBadRequest, "client_name_required")
		return
	}
	job, err := api.svc.CreateJob(r.Context(), caller, domain.Job{
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		Notes:       req.Notes,
		CreatedBy:   caller.Audit.Actor,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, jobFromDomain(job))
}

func (api *jobsAPI) handleListJobs(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	filter := repo.JobFilter{
		Status:     domain.NormalizeLifecycleStatus(r.URL.Query().Get("status")),
		ClientName: r.URL.Query().Get("client_name"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}
	jobs, err := api.svc.ListJobs(r.Context(), caller, filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobFromDomain(job))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (api *jobsAPI) handleGetJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := api.svc.GetJob(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.setWarning(w, result.Warning)
	api.writeJSON(w, http.StatusOK, jobFromDomain(result.Job))
}

func (api *jobsAPI) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	current, err := api.svc.GetJob(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	job := current.Job
	if strings.TrimSpace(req.ClientName) != "" {
		job.ClientName = strings.TrimSpace(req.ClientName)
	}
	if strings.TrimSpace(req.ClientEmail) != "" {
		job.ClientEmail = strings.TrimSpace(req.ClientEmail)
	}
	if req.Notes != "" {
		job.Notes = req.Notes
	}
	if req.Metadata != nil {
		job.Metadata = req.Metadata
	}
	result, err := api.svc.UpdateJob(r.Context(), caller, job)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.setWarning(w, result.Warning)
	api.writeJSON(w, http.StatusOK, jobFromDomain(result.Job))
}

func (api *jobsAPI) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := api.svc.DeleteJob(r.Context(), caller, r.PathValue("job_id")); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *jobsAPI) handlePermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := api.svc.GetJob(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	perms := api.svc.Permissions(result.Job, caller)
	out := make(map[string]any, len(perms))
	for action, perm := range perms {
		entry := map[string]any{"allowed": perm.Allowed}
		if !perm.Allowed {
			entry["kind"] = perm.Kind
			entry["reason"] = perm.Reason
		}
		if perm.OverrideApplied {
			entry["override_applied"] = true
		}
		out[string(action)] = entry
	}
	api.setWarning(w, result.Warning)
	api.writeJSON(w, http.StatusOK, map[string]any{
		"job_id":      result.Job.ID,
		"status":      string(result.Job.Status),
		"permissions": out,
	})
}

func (api *jobsAPI) writeTransitionResult(w http.ResponseWriter, result jobsvc.Result) {
	api.setWarning(w, result.Warning)
	api.writeJSON(w, http.StatusOK, map[string]any{
		"job":              jobFromDomain(result.Job),
		"override_applied": result.Override,
	})
}

func (api *jobsAPI) handleAdvance(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := api.svc.AdvanceStatus(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeTransitionResult(w, result)
}

type overrideRequest struct {
	TargetStatus string `json:"target_status"`
}

func (api *jobsAPI) handleOverride(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	target := domain.NormalizeLifecycleStatus(req.TargetStatus)
	if !target.Valid() {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}
	result, err := api.svc.OverrideStatus(r.Context(), caller, r.PathValue("job_id"), target)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeTransitionResult(w, result)
}

func (api *jobsAPI) handleCancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := api.svc.CancelJob(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeTransitionResult(w, result)
}

type rugRequest struct {
	Description string         `json:"description,omitempty"`
	WidthFt     float64        `json:"width_ft,omitempty"`
	LengthFt    float64        `json:"length_ft,omitempty"`
	Fiber       string         `json:"fiber,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type rugResponse struct {
	RugID       string    `json:"rug_id"`
	JobID       string    `json:"job_id"`
	Description string    `json:"description,omitempty"`
	WidthFt     float64   `json:"width_ft,omitempty"`
	LengthFt    float64   `json:"length_ft,omitempty"`
	Fiber       string    `json:"fiber,omitempty"`
	AnalysisID  string    `json:"analysis_id,omitempty"`
	Analyzed    bool      `json:"analyzed"`
	CreatedAt   time.Time `json:"created_at"`
}

func rugFromDomain(rug domain.Rug) rugResponse {
	return rugResponse{
		RugID:       rug.ID,
		JobID:       rug.JobID,
		Description: rug.Description,
		WidthFt:     rug.WidthFt,
		LengthFt:    rug.LengthFt,
		Fiber:       rug.Fiber,
		AnalysisID:  rug.AnalysisID,
		Analyzed:    rug.Analyzed(),
		CreatedAt:   rug.CreatedAt,
	}
}

func (api *jobsAPI) handleListRugs(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	rugs, err := api.svc.ListRugs(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]rugResponse, 0, len(rugs))
	for _, rug := range rugs {
		out = append(out, rugFromDomain(rug))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"rugs": out})
}

func (api *jobsAPI) handleAddRug(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req rugRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	rug, err := api.svc.AddRug(r.Context(), caller, domain.Rug{
		JobID:       r.PathValue("job_id"),
		Description: req.Description,
		WidthFt:     req.WidthFt,
		LengthFt:    req.LengthFt,
		Fiber:       req.Fiber,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, rugFromDomain(rug))
}

func (api *jobsAPI) handleUpdateRug(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req rugRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	rug, err := api.svc.UpdateRug(r.Context(), caller, domain.Rug{
		ID:          r.PathValue("rug_id"),
		JobID:       r.PathValue("job_id"),
		Description: req.Description,
		WidthFt:     req.WidthFt,
		LengthFt:    req.LengthFt,
		Fiber:       req.Fiber,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, rugFromDomain(rug))
}

func (api *jobsAPI) handleDeleteRug(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := api.svc.DeleteRug(r.Context(), caller, r.PathValue("job_id"), r.PathValue("rug_id")); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type analysisRequest struct {
	ProposedServices []proposedService `json:"proposed_services"`
	Confidence       float64           `json:"confidence,omitempty"`
	Raw              map[string]any    `json:"raw,omitempty"`
}

type proposedService struct {
	Code       string `json:"code"`
	Name       string `json:"name,omitempty"`
	PriceCents int64  `json:"price_cents"`
}

func (api *jobsAPI) handleAttachAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req analysisRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	services := make([]domain.ProposedService, 0, len(req.ProposedServices))
	for _, svc := range req.ProposedServices {
		entry, ok := api.catalog.Lookup(svc.Code)
		name := svc.Name
		if ok && name == "" {
			name = entry.Name
		}
		services = append(services, domain.ProposedService{
			Code:       svc.Code,
			Name:       name,
			PriceCents: svc.PriceCents,
		})
	}
	report, err := api.svc.AttachAnalysis(r.Context(), caller, r.PathValue("job_id"), domain.AnalysisReport{
		RugID:            r.PathValue("rug_id"),
		ProposedServices: services,
		Confidence:       req.Confidence,
		Raw:              req.Raw,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, map[string]any{
		"analysis_id": report.ID,
		"rug_id":      report.RugID,
	})
}

func (api *jobsAPI) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	report, err := api.svc.GetAnalysis(r.Context(), caller, r.PathValue("job_id"), r.PathValue("rug_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	services := make([]proposedService, 0, len(report.ProposedServices))
	for _, svc := range report.ProposedServices {
		services = append(services, proposedService{
			Code:       svc.Code,
			Name:       svc.Name,
			PriceCents: svc.PriceCents,
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"analysis_id":       report.ID,
		"rug_id":            report.RugID,
		"proposed_services": services,
		"confidence":        report.Confidence,
		"created_at":        report.CreatedAt,
	})
}

type estimateLineRequest struct {
	ServiceCode string `json:"service_code"`
	ServiceName string `json:"service_name,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Declined    bool   `json:"declined,omitempty"`
}

type estimateResponse struct {
	EstimateID string                `json:"estimate_id"`
	JobID      string                `json:"job_id"`
	RugID      string                `json:"rug_id"`
	Lines      []estimateLineRequest `json:"lines"`
	Approved   bool                  `json:"approved"`
	ApprovedBy string                `json:"approved_by,omitempty"`
	ApprovedAt *time.Time            `json:"approved_at,omitempty"`
	TotalCents int64                 `json:"total_cents"`
	CreatedAt  time.Time             `json:"created_at"`
}

func estimateFromDomain(estimate domain.Estimate) estimateResponse {
	lines := make([]estimateLineRequest, 0, len(estimate.Lines))
	for _, line := range estimate.Lines {
		lines = append(lines, estimateLineRequest{
			ServiceCode: line.ServiceCode,
			ServiceName: line.ServiceName,
			PriceCents:  line.PriceCents,
			Declined:    line.Declined,
		})
	}
	return estimateResponse{
		EstimateID: estimate.ID,
		JobID:      estimate.JobID,
		RugID:      estimate.RugID,
		Lines:      lines,
		Approved:   estimate.Approved,
		ApprovedBy: estimate.ApprovedBy,
		ApprovedAt: estimate.ApprovedAt,
		TotalCents: estimate.TotalCents(),
		CreatedAt:  estimate.CreatedAt,
	}
}

func linesFromRequest(lines []estimateLineRequest, spec catalog.Spec) []domain.EstimateLine {
	out := make([]domain.EstimateLine, 0, len(lines))
	for _, line := range lines {
		name := line.ServiceName
		if name == "" {
			if entry, ok := spec.Lookup(line.ServiceCode); ok {
				name = entry.Name
			}
		}
		out = append(out, domain.EstimateLine{
			ServiceCode: line.ServiceCode,
			ServiceName: name,
			PriceCents:  line.PriceCents,
			Declined:    line.Declined,
		})
	}
	return out
}

func (api *jobsAPI) handleListEstimates(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	estimates, err := api.svc.ListEstimates(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]estimateResponse, 0, len(estimates))
	for _, estimate := range estimates {
		out = append(out, estimateFromDomain(estimate))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"estimates": out})
}

type estimateRequest struct {
	Lines []estimateLineRequest `json:"lines"`
}

func (api *jobsAPI) handleCreateEstimate(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req estimateRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Lines) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "lines_required")
		return
	}
	estimate, err := api.svc.CreateEstimate(r.Context(), caller, r.PathValue("job_id"), r.PathValue("rug_id"), linesFromRequest(req.Lines, api.catalog))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, estimateFromDomain(estimate))
}

func (api *jobsAPI) handleApproveEstimate(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	estimate, err := api.svc.ApproveEstimate(r.Context(), caller, r.PathValue("job_id"), r.PathValue("estimate_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, estimateFromDomain(estimate))
}

func (api *jobsAPI) handleUpdatePricing(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req estimateRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Lines) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "lines_required")
		return
	}
	estimate, err := api.svc.UpdatePricing(r.Context(), caller, r.PathValue("job_id"), r.PathValue("estimate_id"), linesFromRequest(req.Lines, api.catalog))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, estimateFromDomain(estimate))
}

// handleSendToClient advances the job and mints the portal link the
// client uses to view and approve the estimate.
func (api *jobsAPI) handleSendToClient(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := api.svc.SendToClient(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	tenantID := ""
	if result.Job.TenantID != nil {
		tenantID = result.Job.TenantID.String()
	}
	now := api.now().UTC()
	token, err := auth.GeneratePortalToken(api.portalSecret, auth.PortalTokenClaims{
		TenantID:      tenantID,
		JobID:         result.Job.ID,
		Email:         result.Job.ClientEmail,
		ExpiresAtUnix: now.Add(api.portalTTL).Unix(),
	}, now)
	if err != nil {
		api.logger.Error("portal token mint failed", "error", err, "job_id", result.Job.ID)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.setWarning(w, result.Warning)
	api.writeJSON(w, http.StatusOK, map[string]any{
		"job":          jobFromDomain(result.Job),
		"portal_token": token,
		"expires_at":   now.Add(api.portalTTL),
	})
}

type serviceItemResponse struct {
	ItemID      string     `json:"item_id"`
	RugID       string     `json:"rug_id,omitempty"`
	ServiceCode string     `json:"service_code"`
	PriceCents  int64      `json:"price_cents"`
	Declined    bool       `json:"declined"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

func itemFromDomain(item domain.ServiceItem) serviceItemResponse {
	return serviceItemResponse{
		ItemID:      item.ID,
		RugID:       item.RugID,
		ServiceCode: item.ServiceCode,
		PriceCents:  item.PriceCents,
		Declined:    item.Declined,
		Completed:   item.Completed,
		CompletedAt: item.CompletedAt,
		CompletedBy: item.CompletedBy,
	}
}

func (api *jobsAPI) handleListServices(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	items, err := api.svc.ListServiceItems(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]serviceItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemFromDomain(item))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

func (api *jobsAPI) handleCompleteService(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	item, err := api.svc.MarkServiceComplete(r.Context(), caller, r.PathValue("job_id"), r.PathValue("item_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, itemFromDomain(item))
}

func (api *jobsAPI) handleRemoveService(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := api.svc.RemoveServiceItem(r.Context(), caller, r.PathValue("job_id"), r.PathValue("item_id")); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deliveryRequest struct {
	DeliveryDate time.Time `json:"delivery_date"`
}

func (api *jobsAPI) handleScheduleDelivery(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req deliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.DeliveryDate.IsZero() {
		api.writeError(w, r, http.StatusBadRequest, "delivery_date_required")
		return
	}
	result, err := api.svc.ScheduleDelivery(r.Context(), caller, r.PathValue("job_id"), req.DeliveryDate)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.setWarning(w, result.Warning)
	api.writeJSON(w, http.StatusOK, jobFromDomain(result.Job))
}

func (api *jobsAPI) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	photos, err := api.svc.ListPhotos(r.Context(), caller, r.PathValue("job_id"), r.URL.Query().Get("rug_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(photos))
	for _, photo := range photos {
		entry := map[string]any{
			"photo_id":     photo.ID,
			"rug_id":       photo.RugID,
			"content_type": photo.ContentType,
			"size_bytes":   photo.SizeBytes,
			"created_at":   photo.CreatedAt,
		}
		if api.photos != nil {
			if url, err := api.photos.PresignDownload(r.Context(), photo); err == nil {
				entry["download_url"] = url
			}
		}
		out = append(out, entry)
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"photos": out})
}

func (api *jobsAPI) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if api.photos == nil {
		api.writeError(w, r, http.StatusServiceUnavailable, "photo_storage_unavailable")
		return
	}
	maxBytes := api.photoUploadMaxMiB << 20
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer func() { _ = body.Close() }()

	photo, err := api.photos.Upload(r.Context(), r.PathValue("job_id"), r.URL.Query().Get("rug_id"), body, r.ContentLength, r.Header.Get("Content-Type"))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.writeError(w, r, http.StatusRequestEntityTooLarge, "photo_too_large")
			return
		}
		api.logger.Error("photo upload failed", "error", err, "job_id", r.PathValue("job_id"))
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	attached, err := api.svc.AttachPhoto(r.Context(), caller, photo)
	if err != nil {
		// The record failed the guard; drop the orphaned bytes.
		_ = api.photos.Remove(r.Context(), photo)
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, map[string]any{
		"photo_id":   attached.ID,
		"object_key": attached.ObjectKey,
	})
}

func (api *jobsAPI) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	photo, err := api.svc.RemovePhoto(r.Context(), caller, r.PathValue("job_id"), r.PathValue("photo_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if api.photos != nil {
		if err := api.photos.Remove(r.Context(), photo); err != nil {
			// The record is gone; the orphaned object is only logged.
			api.logger.Error("photo object removal failed", "error", err, "object_key", photo.ObjectKey)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *jobsAPI) handleListPayments(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	events, err := api.svc.ListPayments(r.Context(), caller, r.PathValue("job_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, event := range events {
		out = append(out, map[string]any{
			"payment_event_id": event.ID,
			"status":           string(event.Status),
			"authorized_cents": event.AuthorizedCents,
			"captured_cents":   event.CapturedCents,
			"provider_ref":     event.ProviderRef,
			"created_at":       event.CreatedAt,
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

// handleAuditExport streams the tenant's audit trail as NDJSON. Admin
// sessions only.
func (api *jobsAPI) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.requireAdmin(w, r)
	if !ok {
		return
	}
	if caller.TenantID == nil {
		api.writeError(w, r, http.StatusBadRequest, "tenant_id_required")
		return
	}
	filter := repo.AuditEventFilter{
		TenantID:     caller.TenantID.String(),
		ResourceType: r.URL.Query().Get("resource_type"),
		ResourceID:   r.URL.Query().Get("resource_id"),
		Limit:        500,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_since")
			return
		}
		filter.Since = parsed
	}
	events, err := api.auditEvents.ListAuditEvents(r.Context(), filter)
	if err != nil {
		api.logger.Error("audit export failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	for _, event := range events {
		payload, _ := json.Marshal(event.Payload)
		_ = enc.Encode(map[string]any{
			"event_id":         event.EventID,
			"occurred_at":      event.OccurredAt.UTC().Format(time.RFC3339Nano),
			"tenant_id":        event.TenantID,
			"actor":            event.Actor,
			"action":           event.Action,
			"resource_type":    event.ResourceType,
			"resource_id":      event.ResourceID,
			"request_id":       event.RequestID,
			"payload":          json.RawMessage(payload),
			"integrity_sha256": event.IntegritySHA256,
		})
	}
}

type tenantRequest struct {
	TenantID string         `json:"tenant_id,omitempty"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type tenantResponse struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Tenant management is a platform operation, not something shop staff
// ever touch. Admin sessions only.
func (api *jobsAPI) requireAdmin(w http.ResponseWriter, r *http.Request) (jobsvc.Caller, bool) {
	caller, ok := api.caller(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return jobsvc.Caller{}, false
	}
	if caller.Role != guard.RoleAdmin {
		api.writeError(w, r, http.StatusForbidden, "forbidden")
		return jobsvc.Caller{}, false
	}
	return caller, true
}

func (api *jobsAPI) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.requireAdmin(w, r); !ok {
		return
	}
	var req tenantRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = uuid.NewString()
	}
	tenant := domain.Tenant{
		ID:        domain.TenantID(tenantID),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: api.now().UTC(),
		Metadata:  req.Metadata,
	}
	if err := api.tenants.Create(r.Context(), tenant); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, tenantResponse{
		TenantID:  tenant.ID.String(),
		Name:      tenant.Name,
		CreatedAt: tenant.CreatedAt,
	})
}

func (api *jobsAPI) handleListTenants(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.requireAdmin(w, r); !ok {
		return
	}
	tenants, err := api.tenants.List(r.Context(), 100)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]tenantResponse, 0, len(tenants))
	for _, tenant := range tenants {
		out = append(out, tenantResponse{
			TenantID:  tenant.ID.String(),
			Name:      tenant.Name,
			CreatedAt: tenant.CreatedAt,
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

func (api *jobsAPI) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.requireAdmin(w, r); !ok {
		return
	}
	tenant, err := api.tenants.Get(r.Context(), domain.TenantID(r.PathValue("tenant_id")))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, tenantResponse{
		TenantID:  tenant.ID.String(),
		Name:      tenant.Name,
		CreatedAt: tenant.CreatedAt,
	})
}

// writeServiceError maps service errors to HTTP statuses. Guard denials
// surface their kind and sentence unchanged so every surface shows the
// same words for the same refusal.
func (api *jobsAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *jobsvc.DeniedError
	if errors.As(err, &denied) {
		status := http.StatusForbidden
		switch denied.Permission.Kind {
		case guard.KindMissingCompanyContext:
			status = http.StatusBadRequest
		case guard.KindCrossTenantAccess:
			// Cross-tenant reads look like the record does not exist.
			status = http.StatusNotFound
		}
		api.writeJSON(w, status, map[string]any{
			"error":      "denied",
			"kind":       denied.Permission.Kind,
			"reason":     denied.Permission.Reason,
			"request_id": r.Header.Get("X-Request-Id"),
		})
		return
	}
	var transition *jobsvc.TransitionDeniedError
	if errors.As(err, &transition) {
		api.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "transition_denied",
			"kind":       transition.Decision.Kind,
			"reason":     transition.Decision.Reason,
			"request_id": r.Header.Get("X-Request-Id"),
		})
		return
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		api.writeError(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, repo.ErrAlreadyExists):
		api.writeError(w, r, http.StatusConflict, "already_exists")
	default:
		api.logger.Error("request failed", "error", err, "path", r.URL.Path)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func (api *jobsAPI) setWarning(w http.ResponseWriter, warning string) {
	if warning != "" {
		w.Header().Set(warningHeader, warning)
	}
}

func (api *jobsAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *jobsAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return net.ParseIP(remoteAddr)
	}
	return net.ParseIP(host)
}
