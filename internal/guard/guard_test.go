package guard

import (
	"testing"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

func TestCheckTenantRunsFirst(t *testing.T) {
	// Cross-tenant access denies regardless of role, status, or override.
	for _, role := range Roles() {
		for _, override := range []bool{false, true} {
			perm := Check(CheckInput{
				Action:        ActionEditJob,
				Role:          role,
				Status:        domain.StatusNew,
				RecordTenant:  tenantID("t1"),
				CallerTenant:  tenantID("t2"),
				AdminOverride: override,
			})
			if perm.Allowed {
				t.Fatalf("cross-tenant edit allowed for %s (override=%v)", role, override)
			}
			if perm.Kind != KindCrossTenantAccess {
				t.Fatalf("kind=%s, want CROSS_TENANT_ACCESS", perm.Kind)
			}
		}
	}
}

func TestCheckMissingCompanyContext(t *testing.T) {
	perm := Check(CheckInput{
		Action:       ActionAddRug,
		Role:         RoleStaff,
		Status:       domain.StatusNew,
		RecordTenant: tenantID("t1"),
		CallerTenant: nil,
	})
	if perm.Allowed || perm.Kind != KindMissingCompanyContext {
		t.Fatalf("missing caller tenant should deny distinctly, got %+v", perm)
	}
}

func TestCheckLegacyRecordAllowsWithWarning(t *testing.T) {
	perm := Check(CheckInput{
		Action:       ActionEditJob,
		Role:         RoleStaff,
		Status:       domain.StatusNew,
		RecordTenant: nil,
		CallerTenant: tenantID("t1"),
	})
	if !perm.Allowed {
		t.Fatalf("legacy record should allow: %s", perm.Reason)
	}
	if perm.Warning != WarningLegacyTenant {
		t.Fatalf("legacy allow should carry the warning, got %q", perm.Warning)
	}
}

func TestCheckLockedPricingOverride(t *testing.T) {
	in := CheckInput{
		Action:       ActionEditPricing,
		Role:         RoleStaff,
		Status:       domain.StatusPaid,
		RecordTenant: tenantID("t1"),
		CallerTenant: tenantID("t1"),
	}
	perm := Check(in)
	if perm.Allowed || perm.Kind != KindJobLocked {
		t.Fatalf("locked pricing edit should deny with JOB_LOCKED, got %+v", perm)
	}

	in.AdminOverride = true
	perm = Check(in)
	if !perm.Allowed || !perm.OverrideApplied {
		t.Fatalf("override should allow with the flag set, got %+v", perm)
	}
	if perm.Kind != KindJobLocked || perm.Reason != Reason(KindJobLocked) {
		t.Fatalf("override should preserve the bypassed denial, got %+v", perm)
	}
}

func TestCheckOverrideTransparency(t *testing.T) {
	for _, action := range Actions() {
		for _, role := range Roles() {
			for _, status := range allStatuses() {
				in := CheckInput{
					Action:        action,
					Role:          role,
					Status:        status,
					RecordTenant:  tenantID("t1"),
					CallerTenant:  tenantID("t1"),
					AdminOverride: true,
				}
				withOverride := Check(in)
				if !withOverride.OverrideApplied {
					continue
				}
				in.AdminOverride = false
				plain := Check(in)
				if plain.Allowed || plain.Reason == "" {
					t.Fatalf("override applied for (%s, %s, %s) but plain call did not deny with a reason", action, role, status)
				}
			}
		}
	}
}

func TestCheckClientOverrideDoesNotElevate(t *testing.T) {
	perm := Check(CheckInput{
		Action:        ActionEditJob,
		Role:          RoleClient,
		Status:        domain.StatusNew,
		RecordTenant:  tenantID("t1"),
		CallerTenant:  tenantID("t1"),
		AdminOverride: true,
	})
	if perm.Allowed {
		t.Fatalf("a client session must not gain staff actions from the override flag")
	}
}
