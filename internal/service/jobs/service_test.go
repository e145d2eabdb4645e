package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/guard"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

func tenantPtr(id string) *domain.TenantID {
	t := domain.TenantID(id)
	return &t
}

func staffCaller(tenant string) Caller {
	return Caller{
		Role:     guard.RoleStaff,
		TenantID: tenantPtr(tenant),
		Audit:    AuditInfo{Actor: "staff@shop.test", RequestID: "req-1"},
	}
}

func adminCaller(tenant string, override bool) Caller {
	return Caller{
		Role:          guard.RoleAdmin,
		TenantID:      tenantPtr(tenant),
		AdminOverride: override,
		Audit:         AuditInfo{Actor: "admin@shop.test", RequestID: "req-2"},
	}
}

func clientCaller(tenant string) Caller {
	return Caller{
		Role:     guard.RoleClient,
		TenantID: tenantPtr(tenant),
		Audit:    AuditInfo{Actor: "portal:job-1", RequestID: "req-3"},
	}
}

func TestFullLifecycleWalk(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	staff := staffCaller("tenant-1")
	client := clientCaller("tenant-1")

	created, err := f.service.CreateJob(ctx, staff, domain.Job{ClientName: "Ada"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if created.Status != domain.StatusNew {
		t.Fatalf("status=%s, want %s", created.Status, domain.StatusNew)
	}

	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err == nil {
		t.Fatalf("advance without rugs should be denied")
	}

	rug, err := f.service.AddRug(ctx, staff, domain.Rug{JobID: created.ID, Description: "Heriz 9x12"})
	if err != nil {
		t.Fatalf("AddRug: %v", err)
	}
	result, err := f.service.AdvanceStatus(ctx, staff, created.ID)
	if err != nil {
		t.Fatalf("advance to inspecting: %v", err)
	}
	if result.Job.Status != domain.StatusInspecting {
		t.Fatalf("status=%s, want %s", result.Job.Status, domain.StatusInspecting)
	}

	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err == nil {
		t.Fatalf("advance without analysis should be denied")
	}
	if _, err := f.service.AttachAnalysis(ctx, staff, created.ID, domain.AnalysisReport{
		RugID:            rug.ID,
		ProposedServices: []domain.ProposedService{{Code: "wash", Name: "Hand wash", PriceCents: 25000}},
	}); err != nil {
		t.Fatalf("AttachAnalysis: %v", err)
	}
	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err != nil {
		t.Fatalf("advance to estimate_review: %v", err)
	}

	estimate, err := f.service.CreateEstimate(ctx, staff, created.ID, rug.ID, []domain.EstimateLine{
		{ServiceCode: "wash", ServiceName: "Hand wash", PriceCents: 25000},
	})
	if err != nil {
		t.Fatalf("CreateEstimate: %v", err)
	}
	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err == nil {
		t.Fatalf("advance without approved estimate should be denied")
	}
	if _, err := f.service.ApproveEstimate(ctx, staff, created.ID, estimate.ID); err != nil {
		t.Fatalf("ApproveEstimate: %v", err)
	}
	if _, err := f.service.SendToClient(ctx, staff, created.ID); err != nil {
		t.Fatalf("SendToClient: %v", err)
	}

	approved, err := f.service.ClientApprove(ctx, client, created.ID, nil)
	if err != nil {
		t.Fatalf("ClientApprove: %v", err)
	}
	if approved.Job.Status != domain.StatusClientApprovedUnpaid {
		t.Fatalf("status=%s, want %s", approved.Job.Status, domain.StatusClientApprovedUnpaid)
	}
	items, err := f.service.ListServiceItems(ctx, staff, created.ID)
	if err != nil {
		t.Fatalf("ListServiceItems: %v", err)
	}
	if len(items) != 1 || items[0].ServiceCode != "wash" {
		t.Fatalf("items=%v, want one wash item", items)
	}

	paid, err := f.service.RecordPayment(ctx, client, domain.PaymentEvent{
		JobID:           created.ID,
		Status:          domain.PaymentCompleted,
		AuthorizedCents: 25000,
		CapturedCents:   25000,
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if paid.Job.Status != domain.StatusPaid {
		t.Fatalf("status=%s, want %s", paid.Job.Status, domain.StatusPaid)
	}

	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err != nil {
		t.Fatalf("advance to in_service: %v", err)
	}
	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err == nil {
		t.Fatalf("advance with open service items should be denied")
	}
	if _, err := f.service.MarkServiceComplete(ctx, staff, created.ID, items[0].ID); err != nil {
		t.Fatalf("MarkServiceComplete: %v", err)
	}
	done, err := f.service.AdvanceStatus(ctx, staff, created.ID)
	if err != nil {
		t.Fatalf("advance to completed: %v", err)
	}
	if done.Job.Status != domain.StatusCompleted {
		t.Fatalf("status=%s, want %s", done.Job.Status, domain.StatusCompleted)
	}

	if _, err := f.service.AdvanceStatus(ctx, staff, created.ID); err == nil {
		t.Fatalf("advance past completed should be denied")
	}
}

func TestCrossTenantDenied(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusNew}
	f := newServiceFixture(job)

	_, err := f.service.GetJob(ctx, staffCaller("tenant-2"), "job-1")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err=%v, want DeniedError", err)
	}
	if denied.Permission.Kind != guard.KindCrossTenantAccess {
		t.Fatalf("Kind=%s, want %s", denied.Permission.Kind, guard.KindCrossTenantAccess)
	}

	if _, err := f.service.UpdateJob(ctx, staffCaller("tenant-2"), job); err == nil {
		t.Fatalf("cross-tenant update should be denied")
	}
}

func TestLegacyJobWarns(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-legacy", ClientName: "Old Client", Status: domain.StatusNew}
	f := newServiceFixture(job)

	result, err := f.service.GetJob(ctx, staffCaller("tenant-1"), "job-legacy")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if result.Warning != guard.WarningLegacyTenant {
		t.Fatalf("Warning=%q, want %q", result.Warning, guard.WarningLegacyTenant)
	}
}

func TestPricingEditLockedAfterPayment(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusPaid}
	f := newServiceFixture(job)
	estimate := domain.Estimate{
		ID: "est-1", JobID: "job-1", RugID: "rug-1",
		Lines: []domain.EstimateLine{{ServiceCode: "wash", PriceCents: 25000}},
	}
	if err := f.ests.CreateEstimate(ctx, estimate); err != nil {
		t.Fatalf("seed estimate: %v", err)
	}

	_, err := f.service.UpdatePricing(ctx, staffCaller("tenant-1"), "job-1", "est-1", estimate.Lines)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err=%v, want DeniedError", err)
	}
	if denied.Permission.Kind != guard.KindJobLocked {
		t.Fatalf("Kind=%s, want %s", denied.Permission.Kind, guard.KindJobLocked)
	}

	// The same staff caller with the override flag set goes through, and
	// the bypass lands in the audit trail. Admins edit pricing outright
	// and would not trip the override path.
	elevated := staffCaller("tenant-1")
	elevated.AdminOverride = true
	if _, err := f.service.UpdatePricing(ctx, elevated, "job-1", "est-1", estimate.Lines); err != nil {
		t.Fatalf("override UpdatePricing: %v", err)
	}
	var sawOverride bool
	for _, action := range f.audit.actions() {
		if action == "guard.override" {
			sawOverride = true
		}
	}
	if !sawOverride {
		t.Fatalf("audit actions=%v, want guard.override entry", f.audit.actions())
	}
}

func TestCancelRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusInspecting}
	f := newServiceFixture(job)

	if _, err := f.service.CancelJob(ctx, staffCaller("tenant-1"), "job-1"); err == nil {
		t.Fatalf("staff cancel should be denied")
	}

	result, err := f.service.CancelJob(ctx, adminCaller("tenant-1", true), "job-1")
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if result.Job.Status != domain.StatusCancelled {
		t.Fatalf("status=%s, want %s", result.Job.Status, domain.StatusCancelled)
	}
	if !result.Override {
		t.Fatalf("cancellation should report the override")
	}

	// Cancelled is absolutely terminal, override included.
	if _, err := f.service.OverrideStatus(ctx, adminCaller("tenant-1", true), "job-1", domain.StatusNew); err == nil {
		t.Fatalf("override out of cancelled should be denied")
	}
}

func TestOverrideStatusSkipsForward(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusNew}
	f := newServiceFixture(job)

	result, err := f.service.OverrideStatus(ctx, adminCaller("tenant-1", true), "job-1", domain.StatusEstimateReview)
	if err != nil {
		t.Fatalf("OverrideStatus: %v", err)
	}
	if result.Job.Status != domain.StatusEstimateReview {
		t.Fatalf("status=%s, want %s", result.Job.Status, domain.StatusEstimateReview)
	}
	if !result.Override {
		t.Fatalf("forward skip should report the override")
	}

	// Backward stays closed even to the override.
	if _, err := f.service.OverrideStatus(ctx, adminCaller("tenant-1", true), "job-1", domain.StatusNew); err == nil {
		t.Fatalf("backward override should be denied")
	}
}

func TestConcurrentStatusWriteConflicts(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusNew}
	f := newServiceFixture(job)
	if err := f.rugs.CreateRug(ctx, domain.Rug{ID: "rug-1", JobID: "job-1"}); err != nil {
		t.Fatalf("seed rug: %v", err)
	}

	// Another writer moves the job between the guard check and the write.
	stored := f.jobs.jobs["job-1"]
	stored.Status = domain.StatusInspecting
	f.jobs.jobs["job-1"] = stored
	err := f.jobs.UpdateJobStatus(ctx, "job-1", domain.StatusNew, domain.StatusInspecting, f.service.now())
	if !IsConflict(err) {
		t.Fatalf("err=%v, want CAS conflict", err)
	}
}

func TestClientCannotUseStaffActions(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusInspecting}
	f := newServiceFixture(job)

	client := clientCaller("tenant-1")
	client.AdminOverride = true // header forged by a client session

	_, err := f.service.AddRug(ctx, client, domain.Rug{JobID: "job-1"})
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err=%v, want DeniedError", err)
	}
	if denied.Permission.OverrideApplied {
		t.Fatalf("client override must not apply")
	}
}

func TestDeleteJobAdminOnly(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusNew}
	f := newServiceFixture(job)

	if err := f.service.DeleteJob(ctx, staffCaller("tenant-1"), "job-1"); err == nil {
		t.Fatalf("staff delete should be denied")
	}
	if err := f.service.DeleteJob(ctx, adminCaller("tenant-1", false), "job-1"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := f.jobs.GetJob(ctx, "job-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("job should be gone, got %v", err)
	}
}

func TestPartialPaymentsAccumulate(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{
		ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada",
		Status: domain.StatusClientApprovedUnpaid, TotalCents: 25000,
	}
	f := newServiceFixture(job)
	client := clientCaller("tenant-1")

	first, err := f.service.RecordPayment(ctx, client, domain.PaymentEvent{
		JobID: "job-1", Status: domain.PaymentCompleted,
		AuthorizedCents: 10000, CapturedCents: 10000,
	})
	if err != nil {
		t.Fatalf("first RecordPayment: %v", err)
	}
	if first.Job.Status != domain.StatusClientApprovedUnpaid {
		t.Fatalf("status=%s, partial capture must not advance", first.Job.Status)
	}

	second, err := f.service.RecordPayment(ctx, client, domain.PaymentEvent{
		JobID: "job-1", Status: domain.PaymentCompleted,
		AuthorizedCents: 15000, CapturedCents: 15000,
	})
	if err != nil {
		t.Fatalf("second RecordPayment: %v", err)
	}
	if second.Job.Status != domain.StatusPaid {
		t.Fatalf("status=%s, want %s once captures cover the total", second.Job.Status, domain.StatusPaid)
	}
}

func TestZeroAmountPaymentDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{
		ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada",
		Status: domain.StatusClientApprovedUnpaid,
	}
	f := newServiceFixture(job)

	result, err := f.service.RecordPayment(ctx, clientCaller("tenant-1"), domain.PaymentEvent{
		JobID: "job-1", Status: domain.PaymentCompleted,
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if result.Job.Status != domain.StatusClientApprovedUnpaid {
		t.Fatalf("status=%s, a zero-amount event must not count as payment", result.Job.Status)
	}
}

func TestRemoveServiceItemLockedAfterPayment(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusClientApprovedUnpaid}
	f := newServiceFixture(job)
	item := domain.ServiceItem{ID: "item-1", JobID: "job-1", ServiceCode: "wash", PriceCents: 25000}
	if err := f.items.CreateServiceItem(ctx, item); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	if err := f.service.RemoveServiceItem(ctx, staffCaller("tenant-1"), "job-1", "item-1"); err != nil {
		t.Fatalf("RemoveServiceItem: %v", err)
	}
	items, err := f.items.ListServiceItems(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListServiceItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items=%v, want none after removal", items)
	}
	var sawRemoval bool
	for _, action := range f.audit.actions() {
		if action == "service.removed" {
			sawRemoval = true
		}
	}
	if !sawRemoval {
		t.Fatalf("audit actions=%v, want service.removed entry", f.audit.actions())
	}

	// After payment the same call hits the pricing lock.
	locked := domain.Job{ID: "job-2", TenantID: tenantPtr("tenant-1"), ClientName: "Bea", Status: domain.StatusPaid}
	f2 := newServiceFixture(locked)
	err = f2.service.RemoveServiceItem(ctx, staffCaller("tenant-1"), "job-2", "item-x")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err=%v, want DeniedError", err)
	}
	if denied.Permission.Kind != guard.KindJobLocked {
		t.Fatalf("Kind=%s, want %s", denied.Permission.Kind, guard.KindJobLocked)
	}
}

func TestGetAnalysisReturnsStoredReport(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusInspecting}
	f := newServiceFixture(job)
	staff := staffCaller("tenant-1")

	rug, err := f.service.AddRug(ctx, staff, domain.Rug{JobID: "job-1", Description: "Kerman 8x10"})
	if err != nil {
		t.Fatalf("AddRug: %v", err)
	}

	if _, err := f.service.GetAnalysis(ctx, staff, "job-1", rug.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want not found before analysis", err)
	}

	attached, err := f.service.AttachAnalysis(ctx, staff, "job-1", domain.AnalysisReport{
		RugID:            rug.ID,
		ProposedServices: []domain.ProposedService{{Code: "wash", Name: "Hand wash", PriceCents: 25000}},
	})
	if err != nil {
		t.Fatalf("AttachAnalysis: %v", err)
	}
	report, err := f.service.GetAnalysis(ctx, staff, "job-1", rug.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if report.ID != attached.ID || len(report.ProposedServices) != 1 {
		t.Fatalf("report=%+v, want the attached report back", report)
	}
}

func TestRemovePhotoDropsRecord(t *testing.T) {
	ctx := context.Background()
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusInspecting}
	f := newServiceFixture(job)
	photo := domain.Photo{ID: "photo-1", JobID: "job-1", ObjectKey: "job-1/photo-1.jpg", ContentType: "image/jpeg"}
	if err := f.photos.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("seed photo: %v", err)
	}

	removed, err := f.service.RemovePhoto(ctx, staffCaller("tenant-1"), "job-1", "photo-1")
	if err != nil {
		t.Fatalf("RemovePhoto: %v", err)
	}
	if removed.ObjectKey != photo.ObjectKey {
		t.Fatalf("ObjectKey=%q, want %q for object cleanup", removed.ObjectKey, photo.ObjectKey)
	}
	if _, err := f.photos.GetPhoto(ctx, "job-1", "photo-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("photo record should be gone, got %v", err)
	}
	var sawDeletion bool
	for _, action := range f.audit.actions() {
		if action == "photo.deleted" {
			sawDeletion = true
		}
	}
	if !sawDeletion {
		t.Fatalf("audit actions=%v, want photo.deleted entry", f.audit.actions())
	}
}

func TestPermissionsMapCoversAllActions(t *testing.T) {
	job := domain.Job{ID: "job-1", TenantID: tenantPtr("tenant-1"), ClientName: "Ada", Status: domain.StatusEstimateSent}
	f := newServiceFixture(job)

	perms := f.service.Permissions(job, clientCaller("tenant-1"))
	if len(perms) != len(guard.Actions()) {
		t.Fatalf("permissions=%d, want %d", len(perms), len(guard.Actions()))
	}
	if !perms[guard.ActionClientApprove].Allowed {
		t.Fatalf("client_approve should be allowed at estimate_sent")
	}
	if perms[guard.ActionEditPricing].Allowed {
		t.Fatalf("edit_pricing must not be allowed for a client")
	}
}
