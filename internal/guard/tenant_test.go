package guard

import (
	"testing"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

func tenantID(value string) *domain.TenantID {
	id := domain.TenantID(value)
	return &id
}

func TestValidateTenantAccess(t *testing.T) {
	cases := []struct {
		name    string
		record  *domain.TenantID
		caller  *domain.TenantID
		valid   bool
		kind    string
		warning string
	}{
		{"same tenant", tenantID("t1"), tenantID("t1"), true, "", ""},
		{"cross tenant", tenantID("t1"), tenantID("t2"), false, KindCrossTenantAccess, ""},
		{"no caller tenant", tenantID("t1"), nil, false, KindMissingCompanyContext, ""},
		{"empty caller tenant", tenantID("t1"), tenantID(""), false, KindMissingCompanyContext, ""},
		{"legacy record", nil, tenantID("t2"), true, "", WarningLegacyTenant},
		{"empty record tenant", tenantID(""), tenantID("t2"), true, "", WarningLegacyTenant},
		{"both missing", nil, nil, false, KindMissingCompanyContext, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := ValidateTenantAccess(tc.record, tc.caller)
			if decision.Valid != tc.valid {
				t.Fatalf("valid=%v, want %v", decision.Valid, tc.valid)
			}
			if decision.Kind != tc.kind {
				t.Fatalf("kind=%q, want %q", decision.Kind, tc.kind)
			}
			if tc.kind != "" && decision.Reason != Reason(tc.kind) {
				t.Fatalf("reason=%q does not match kind %s", decision.Reason, tc.kind)
			}
			if decision.Warning != tc.warning {
				t.Fatalf("warning=%q, want %q", decision.Warning, tc.warning)
			}
		})
	}
}
