package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

type EstimateStore struct {
	db DB
}

func NewEstimateStore(db DB) *EstimateStore {
	if db == nil {
		return nil
	}
	return &EstimateStore{db: db}
}

func (s *EstimateStore) CreateEstimate(ctx context.Context, estimate domain.Estimate) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("estimate store not initialized")
	}
	if err := estimate.Validate(); err != nil {
		return err
	}
	linesJSON, err := json.Marshal(estimate.Lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}
	var approvedAt sql.NullTime
	if estimate.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: estimate.ApprovedAt.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO estimates (
			estimate_id,
			job_id,
			rug_id,
			lines,
			approved,
			approved_by,
			approved_at,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		strings.TrimSpace(estimate.ID),
		strings.TrimSpace(estimate.JobID),
		strings.TrimSpace(estimate.RugID),
		linesJSON,
		estimate.Approved,
		nullIfEmpty(estimate.ApprovedBy),
		approvedAt,
		normalizeTime(estimate.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert estimate: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *EstimateStore) GetEstimate(ctx context.Context, jobID, id string) (domain.Estimate, error) {
	if s == nil || s.db == nil {
		return domain.Estimate{}, fmt.Errorf("estimate store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	id = strings.TrimSpace(id)
	if jobID == "" || id == "" {
		return domain.Estimate{}, fmt.Errorf("job id and estimate id are required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT estimate_id, job_id, rug_id, lines, approved, approved_by, approved_at, created_at
		 FROM estimates
		 WHERE job_id = $1 AND estimate_id = $2`,
		jobID,
		id,
	)
	return scanEstimate(row)
}

func (s *EstimateStore) ListEstimates(ctx context.Context, jobID string) ([]domain.Estimate, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("estimate store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT estimate_id, job_id, rug_id, lines, approved, approved_by, approved_at, created_at
		 FROM estimates
		 WHERE job_id = $1
		 ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list estimates: %w", err)
	}
	defer rows.Close()

	var out []domain.Estimate
	for rows.Next() {
		estimate, err := scanEstimate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, estimate)
	}
	return out, rows.Err()
}

func (s *EstimateStore) UpdateEstimate(ctx context.Context, estimate domain.Estimate) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("estimate store not initialized")
	}
	if err := estimate.Validate(); err != nil {
		return err
	}
	linesJSON, err := json.Marshal(estimate.Lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}
	var approvedAt sql.NullTime
	if estimate.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: estimate.ApprovedAt.UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE estimates SET
			lines = $3,
			approved = $4,
			approved_by = $5,
			approved_at = $6
		 WHERE job_id = $1 AND estimate_id = $2`,
		strings.TrimSpace(estimate.JobID),
		strings.TrimSpace(estimate.ID),
		linesJSON,
		estimate.Approved,
		nullIfEmpty(estimate.ApprovedBy),
		approvedAt,
	)
	if err != nil {
		return fmt.Errorf("update estimate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update estimate: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanEstimate(row rowScanner) (domain.Estimate, error) {
	var estimate domain.Estimate
	var linesJSON []byte
	var approvedBy sql.NullString
	var approvedAt sql.NullTime
	if err := row.Scan(&estimate.ID, &estimate.JobID, &estimate.RugID, &linesJSON,
		&estimate.Approved, &approvedBy, &approvedAt, &estimate.CreatedAt); err != nil {
		return domain.Estimate{}, handleNotFound(err)
	}
	if err := json.Unmarshal(linesJSON, &estimate.Lines); err != nil {
		return domain.Estimate{}, fmt.Errorf("decode lines: %w", err)
	}
	if approvedBy.Valid {
		estimate.ApprovedBy = approvedBy.String
	}
	if approvedAt.Valid {
		approved := approvedAt.Time.UTC()
		estimate.ApprovedAt = &approved
	}
	return estimate, nil
}
