package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

type ServiceItemStore struct {
	db DB
}

func NewServiceItemStore(db DB) *ServiceItemStore {
	if db == nil {
		return nil
	}
	return &ServiceItemStore{db: db}
}

func (s *ServiceItemStore) CreateServiceItem(ctx context.Context, item domain.ServiceItem) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("service item store not initialized")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	var completedAt sql.NullTime
	if item.CompletedAt != nil {
		completedAt = sql.NullTime{Time: item.CompletedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO service_items (
			item_id,
			job_id,
			rug_id,
			service_code,
			price_cents,
			declined,
			completed,
			completed_at,
			completed_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		strings.TrimSpace(item.ID),
		strings.TrimSpace(item.JobID),
		nullIfEmpty(item.RugID),
		strings.TrimSpace(item.ServiceCode),
		item.PriceCents,
		item.Declined,
		item.Completed,
		completedAt,
		nullIfEmpty(item.CompletedBy),
	)
	if err != nil {
		return fmt.Errorf("insert service item: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *ServiceItemStore) ListServiceItems(ctx context.Context, jobID string) ([]domain.ServiceItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("service item store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT item_id, job_id, rug_id, service_code, price_cents, declined, completed, completed_at, completed_by
		 FROM service_items
		 WHERE job_id = $1
		 ORDER BY item_id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list service items: %w", err)
	}
	defer rows.Close()

	var out []domain.ServiceItem
	for rows.Next() {
		var item domain.ServiceItem
		var rugID sql.NullString
		var completedAt sql.NullTime
		var completedBy sql.NullString
		if err := rows.Scan(&item.ID, &item.JobID, &rugID, &item.ServiceCode, &item.PriceCents,
			&item.Declined, &item.Completed, &completedAt, &completedBy); err != nil {
			return nil, err
		}
		if rugID.Valid {
			item.RugID = rugID.String
		}
		if completedAt.Valid {
			completed := completedAt.Time.UTC()
			item.CompletedAt = &completed
		}
		if completedBy.Valid {
			item.CompletedBy = completedBy.String
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *ServiceItemStore) UpdateServiceItem(ctx context.Context, item domain.ServiceItem) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("service item store not initialized")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	var completedAt sql.NullTime
	if item.CompletedAt != nil {
		completedAt = sql.NullTime{Time: item.CompletedAt.UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE service_items SET
			rug_id = $3,
			service_code = $4,
			price_cents = $5,
			declined = $6,
			completed = $7,
			completed_at = $8,
			completed_by = $9
		 WHERE job_id = $1 AND item_id = $2`,
		strings.TrimSpace(item.JobID),
		strings.TrimSpace(item.ID),
		nullIfEmpty(item.RugID),
		strings.TrimSpace(item.ServiceCode),
		item.PriceCents,
		item.Declined,
		item.Completed,
		completedAt,
		nullIfEmpty(item.CompletedBy),
	)
	if err != nil {
		return fmt.Errorf("update service item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service item: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *ServiceItemStore) DeleteServiceItem(ctx context.Context, jobID, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("service item store not initialized")
	}
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM service_items WHERE job_id = $1 AND item_id = $2`,
		strings.TrimSpace(jobID),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("delete service item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete service item: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
