package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auth"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
	jobsvc "github.com/rugtrack-labs/rugtrack-go/internal/service/jobs"
)

func testAPI() *jobsAPI {
	return &jobsAPI{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestDecodeJSON_RejectsExtraValue(t *testing.T) {
	req := httptest.NewRequest("POST", "http://example.test/", strings.NewReader("{\"client_name\":\"a\"} {\"client_name\":\"b\"}"))
	var dst createJobRequest
	if err := decodeJSON(req, &dst); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodeJSON_DisallowUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "http://example.test/", strings.NewReader("{\"client_name\":\"a\",\"extra\":1}"))
	var dst createJobRequest
	if err := decodeJSON(req, &dst); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRequestIP(t *testing.T) {
	if got := requestIP("10.1.2.3:4567"); got == nil || got.String() != "10.1.2.3" {
		t.Fatalf("requestIP(host:port)=%v, want 10.1.2.3", got)
	}
	if got := requestIP("10.1.2.3"); got == nil || got.String() != "10.1.2.3" {
		t.Fatalf("requestIP(host)=%v, want 10.1.2.3", got)
	}
}

func TestWriteServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "denied",
			err:        &jobsvc.DeniedError{Permission: guard.ActionPermission{Kind: guard.KindRoleNotPermitted, Reason: guard.Reason(guard.KindRoleNotPermitted)}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "cross tenant reads as not found",
			err:        &jobsvc.DeniedError{Permission: guard.ActionPermission{Kind: guard.KindCrossTenantAccess, Reason: guard.Reason(guard.KindCrossTenantAccess)}},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing company context",
			err:        &jobsvc.DeniedError{Permission: guard.ActionPermission{Kind: guard.KindMissingCompanyContext, Reason: guard.Reason(guard.KindMissingCompanyContext)}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "transition denied",
			err:        &jobsvc.TransitionDeniedError{Decision: guard.TransitionDecision{Kind: guard.KindBackwardTransition, Reason: guard.Reason(guard.KindBackwardTransition)}},
			wantStatus: http.StatusConflict,
		},
		{name: "not found", err: repo.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "conflict", err: repo.ErrConflict, wantStatus: http.StatusConflict},
		{name: "already exists", err: repo.ErrAlreadyExists, wantStatus: http.StatusConflict},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}
	api := testAPI()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "http://example.test/v1/jobs/j1", nil)
			api.writeServiceError(rec, req, tc.err)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestWriteServiceError_DeniedBodyCarriesReason(t *testing.T) {
	api := testAPI()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "http://example.test/v1/jobs/j1/advance", nil)
	api.writeServiceError(rec, req, &jobsvc.DeniedError{Permission: guard.ActionPermission{
		Kind:   guard.KindJobLocked,
		Reason: guard.Reason(guard.KindJobLocked),
	}})
	body := rec.Body.String()
	if !strings.Contains(body, guard.KindJobLocked) {
		t.Fatalf("body missing kind: %s", body)
	}
	if !strings.Contains(body, "locked after payment") {
		t.Fatalf("body missing reason sentence: %s", body)
	}
}

func TestCaller_RolesAndOverride(t *testing.T) {
	api := testAPI()

	req := httptest.NewRequest("POST", "http://example.test/v1/jobs/j1/cancel", nil)
	req.Header.Set(auth.AdminOverrideHeader, "true")
	identity := auth.Identity{Subject: "user-1", Roles: []string{auth.RoleAdmin}}
	ctx := auth.ContextWithIdentity(req.Context(), identity)
	ctx = auth.ContextWithTenantID(ctx, "tenant-a")
	req = req.WithContext(ctx)

	caller, ok := api.caller(req)
	if !ok {
		t.Fatalf("caller() not ok")
	}
	if caller.Role != guard.RoleAdmin {
		t.Fatalf("role=%v, want admin", caller.Role)
	}
	if !caller.AdminOverride {
		t.Fatalf("admin with override header should carry the override flag")
	}
	if caller.TenantID == nil || caller.TenantID.String() != "tenant-a" {
		t.Fatalf("tenant=%v, want tenant-a", caller.TenantID)
	}
}

func TestCaller_StaffCannotCarryOverride(t *testing.T) {
	api := testAPI()

	req := httptest.NewRequest("POST", "http://example.test/v1/jobs/j1/cancel", nil)
	req.Header.Set(auth.AdminOverrideHeader, "true")
	identity := auth.Identity{Subject: "user-2", Roles: []string{auth.RoleStaff}}
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))

	caller, ok := api.caller(req)
	if !ok {
		t.Fatalf("caller() not ok")
	}
	if caller.Role != guard.RoleStaff {
		t.Fatalf("role=%v, want staff", caller.Role)
	}
	if caller.AdminOverride {
		t.Fatalf("staff must not carry the override flag even with the header set")
	}
}

func TestDefaultCatalog_Valid(t *testing.T) {
	spec := defaultCatalog()
	if err := spec.Validate(); err != nil {
		t.Fatalf("defaultCatalog().Validate() err=%v", err)
	}
	if _, ok := spec.Lookup("wash"); !ok {
		t.Fatalf("catalog lookup should be case-insensitive")
	}
}
