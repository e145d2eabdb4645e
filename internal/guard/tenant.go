package guard

import (
	"strings"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

// TenantDecision is the result of the tenant isolation check.
type TenantDecision struct {
	Valid   bool
	Kind    string
	Reason  string
	Warning string
}

// ValidateTenantAccess confirms a record's owning tenant matches the
// caller's tenant. A caller without a resolved tenant is always denied
// (the session has not finished loading, a recoverable condition). A
// record without a tenant predates the multi-tenant migration and is
// allowed with a warning; do not tighten this without migrating the
// ungated legacy rows first.
func ValidateTenantAccess(recordTenant, callerTenant *domain.TenantID) TenantDecision {
	if callerTenant == nil || strings.TrimSpace(callerTenant.String()) == "" {
		return TenantDecision{
			Kind:   KindMissingCompanyContext,
			Reason: Reason(KindMissingCompanyContext),
		}
	}
	if recordTenant == nil || strings.TrimSpace(recordTenant.String()) == "" {
		return TenantDecision{
			Valid:   true,
			Warning: WarningLegacyTenant,
		}
	}
	if *recordTenant != *callerTenant {
		return TenantDecision{
			Kind:   KindCrossTenantAccess,
			Reason: Reason(KindCrossTenantAccess),
		}
	}
	return TenantDecision{Valid: true}
}
