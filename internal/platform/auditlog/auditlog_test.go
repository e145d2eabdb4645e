package auditlog

import (
	"net"
	"testing"
	"time"
)

func TestComputeIntegritySHA256_Deterministic(t *testing.T) {
	occurredAt := time.Unix(1770000000, 0).UTC()
	event := Event{
		OccurredAt:   occurredAt,
		TenantID:     "tenant-1",
		Actor:        "alice",
		Action:       "job.override",
		ResourceType: "job",
		ResourceID:   "job-42",
		RequestID:    "req-123",
		IP:           net.ParseIP("192.0.2.1"),
		UserAgent:    "test-agent",
	}
	payloadJSON := []byte(`{"action":"edit_pricing","kind":"JOB_LOCKED"}`)

	a, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}
}

func TestComputeIntegritySHA256_ChangesOnPayload(t *testing.T) {
	occurredAt := time.Unix(1770000000, 0).UTC()
	event := Event{
		OccurredAt:   occurredAt,
		Actor:        "alice",
		Action:       "job.advance",
		ResourceType: "job",
		ResourceID:   "job-42",
	}

	a, err := ComputeIntegritySHA256(event, []byte(`{"from":"new"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, []byte(`{"from":"paid"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}
}

func TestComputeIntegritySHA256_ChangesOnTenant(t *testing.T) {
	occurredAt := time.Unix(1770000000, 0).UTC()
	base := Event{
		OccurredAt:   occurredAt,
		TenantID:     "tenant-1",
		Actor:        "alice",
		Action:       "job.advance",
		ResourceType: "job",
		ResourceID:   "job-42",
	}
	other := base
	other.TenantID = "tenant-2"

	a, err := ComputeIntegritySHA256(base, []byte(`{}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(other, []byte(`{}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}
}
