package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	if db == nil {
		return nil
	}
	return &PaymentStore{db: db}
}

func (s *PaymentStore) AppendPaymentEvent(ctx context.Context, event domain.PaymentEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("payment store not initialized")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO payment_events (
			event_id,
			job_id,
			status,
			authorized_cents,
			captured_cents,
			provider_ref,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		strings.TrimSpace(event.ID),
		strings.TrimSpace(event.JobID),
		string(event.Status),
		event.AuthorizedCents,
		event.CapturedCents,
		nullIfEmpty(event.ProviderRef),
		normalizeTime(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *PaymentStore) ListPaymentEvents(ctx context.Context, jobID string) ([]domain.PaymentEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("payment store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT event_id, job_id, status, authorized_cents, captured_cents, provider_ref, created_at
		 FROM payment_events
		 WHERE job_id = $1
		 ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentEvent
	for rows.Next() {
		var event domain.PaymentEvent
		var status string
		var providerRef sql.NullString
		if err := rows.Scan(&event.ID, &event.JobID, &status, &event.AuthorizedCents,
			&event.CapturedCents, &providerRef, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Status = domain.PaymentEventStatus(status)
		if providerRef.Valid {
			event.ProviderRef = providerRef.String
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// CompletedTotalCents sums captures from completed events for a job.
func (s *PaymentStore) CompletedTotalCents(ctx context.Context, jobID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("payment store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return 0, fmt.Errorf("job id is required")
	}
	var total int64
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(captured_cents), 0)
		 FROM payment_events
		 WHERE job_id = $1 AND status = $2`,
		jobID,
		string(domain.PaymentCompleted),
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}
