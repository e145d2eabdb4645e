package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auth"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
	jobsvc "github.com/rugtrack-labs/rugtrack-go/internal/service/jobs"
)

// portalAPI serves the client-facing estimate view. Every session is
// bound to exactly one job by its portal token; the job id never comes
// from the request.
type portalAPI struct {
	logger *slog.Logger
	svc    *jobsvc.Service
}

func newPortalAPI(logger *slog.Logger, svc *jobsvc.Service) *portalAPI {
	return &portalAPI{logger: logger, svc: svc}
}

func (api *portalAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /portal/job", api.handleGetJob)
	mux.HandleFunc("POST /portal/approve", api.handleApprove)
	mux.HandleFunc("POST /portal/payment", api.handlePayment)
}

// session resolves the token-bound job and builds the guard caller. The
// portal never elevates: callers are always client-role with no
// override, whatever headers the request carries.
func (api *portalAPI) session(r *http.Request) (string, jobsvc.Caller, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", jobsvc.Caller{}, false
	}
	jobID, email, ok := auth.ParsePortalTokenSubject(identity.Subject)
	if !ok {
		return "", jobsvc.Caller{}, false
	}
	actor := "client:" + jobID
	if email != "" {
		actor = "client:" + email
	}
	caller := jobsvc.Caller{
		Role: guard.RoleClient,
		Audit: jobsvc.AuditInfo{
			Actor:     actor,
			RequestID: r.Header.Get("X-Request-Id"),
			UserAgent: r.UserAgent(),
			IP:        portalRequestIP(r.RemoteAddr),
		},
	}
	if tenantID, ok := auth.TenantIDFromContext(r.Context()); ok && tenantID != "" {
		tid := domain.TenantID(tenantID)
		caller.TenantID = &tid
	}
	return jobID, caller, true
}

type portalEstimateLine struct {
	ServiceCode string `json:"service_code"`
	ServiceName string `json:"service_name,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Declined    bool   `json:"declined"`
}

type portalEstimate struct {
	RugID      string               `json:"rug_id"`
	Lines      []portalEstimateLine `json:"lines"`
	TotalCents int64                `json:"total_cents"`
}

type portalJobView struct {
	JobID        string           `json:"job_id"`
	ClientName   string           `json:"client_name"`
	Status       string           `json:"status"`
	TotalCents   int64            `json:"total_cents"`
	DeliveryDate *time.Time       `json:"delivery_date,omitempty"`
	Estimates    []portalEstimate `json:"estimates"`
}

func (api *portalAPI) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, caller, ok := api.session(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := api.svc.GetJob(r.Context(), caller, jobID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	estimates, err := api.svc.ListEstimates(r.Context(), caller, jobID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	view := portalJobView{
		JobID:        result.Job.ID,
		ClientName:   result.Job.ClientName,
		Status:       string(result.Job.Status),
		TotalCents:   result.Job.TotalCents,
		DeliveryDate: result.Job.DeliveryDate,
		Estimates:    make([]portalEstimate, 0, len(estimates)),
	}
	for _, estimate := range estimates {
		if !estimate.Approved {
			// Drafts stay internal until staff has signed off.
			continue
		}
		lines := make([]portalEstimateLine, 0, len(estimate.Lines))
		for _, line := range estimate.Lines {
			lines = append(lines, portalEstimateLine{
				ServiceCode: line.ServiceCode,
				ServiceName: line.ServiceName,
				PriceCents:  line.PriceCents,
				Declined:    line.Declined,
			})
		}
		view.Estimates = append(view.Estimates, portalEstimate{
			RugID:      estimate.RugID,
			Lines:      lines,
			TotalCents: estimate.TotalCents(),
		})
	}
	api.writeJSON(w, http.StatusOK, view)
}

type approveRequest struct {
	DeclinedCodes []string `json:"declined_codes,omitempty"`
}

func (api *portalAPI) handleApprove(w http.ResponseWriter, r *http.Request) {
	jobID, caller, ok := api.session(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req approveRequest
	if err := portalDecodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	result, err := api.svc.ClientApprove(r.Context(), caller, jobID, req.DeclinedCodes)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"job_id": result.Job.ID,
		"status": string(result.Job.Status),
	})
}

type paymentRequest struct {
	Status          string `json:"status"`
	AuthorizedCents int64  `json:"authorized_cents"`
	CapturedCents   int64  `json:"captured_cents"`
	ProviderRef     string `json:"provider_ref,omitempty"`
}

func (api *portalAPI) handlePayment(w http.ResponseWriter, r *http.Request) {
	jobID, caller, ok := api.session(r)
	if !ok {
		api.writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req paymentRequest
	if err := portalDecodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	status := domain.PaymentEventStatus(req.Status)
	switch status {
	case domain.PaymentPending, domain.PaymentCompleted, domain.PaymentFailed:
	default:
		api.writeError(w, r, http.StatusBadRequest, "invalid_payment_status")
		return
	}
	result, err := api.svc.RecordPayment(r.Context(), caller, domain.PaymentEvent{
		JobID:           jobID,
		Status:          status,
		AuthorizedCents: req.AuthorizedCents,
		CapturedCents:   req.CapturedCents,
		ProviderRef:     req.ProviderRef,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"job_id": result.Job.ID,
		"status": string(result.Job.Status),
	})
}

func (api *portalAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *jobsvc.DeniedError
	if errors.As(err, &denied) {
		status := http.StatusForbidden
		if denied.Permission.Kind == guard.KindCrossTenantAccess {
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
	default:
		api.logger.Error("request failed", "error", err, "path", r.URL.Path)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func (api *portalAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *portalAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func portalDecodeJSON(r *http.Request, dst any) error {
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

func portalRequestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return net.ParseIP(remoteAddr)
	}
	return net.ParseIP(host)
}
