package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

type JobStore struct {
	db DB
}

func NewJobStore(db DB) *JobStore {
	if db == nil {
		return nil
	}
	return &JobStore{db: db}
}

func (s *JobStore) CreateJob(ctx context.Context, job domain.Job) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("job store not initialized")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(job.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := normalizeTime(job.CreatedAt)
	updatedAt := normalizeTime(job.UpdatedAt)
	var tenantID sql.NullString
	if job.TenantID != nil && strings.TrimSpace(job.TenantID.String()) != "" {
		tenantID = sql.NullString{String: strings.TrimSpace(job.TenantID.String()), Valid: true}
	}
	var deliveryDate sql.NullTime
	if job.DeliveryDate != nil {
		deliveryDate = sql.NullTime{Time: job.DeliveryDate.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			job_id,
			tenant_id,
			client_name,
			client_email,
			status,
			total_cents,
			notes,
			created_at,
			updated_at,
			created_by,
			delivery_date,
			metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		strings.TrimSpace(job.ID),
		tenantID,
		strings.TrimSpace(job.ClientName),
		nullIfEmpty(job.ClientEmail),
		string(job.Status),
		job.TotalCents,
		nullIfEmpty(job.Notes),
		createdAt,
		updatedAt,
		nullIfEmpty(job.CreatedBy),
		deliveryDate,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (domain.Job, error) {
	if s == nil || s.db == nil {
		return domain.Job{}, fmt.Errorf("job store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Job{}, fmt.Errorf("job id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, tenant_id, client_name, client_email, status, total_cents, notes,
			created_at, updated_at, created_by, delivery_date, metadata
		 FROM jobs
		 WHERE job_id = $1`,
		id,
	)
	return scanJob(row)
}

func (s *JobStore) ListJobs(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("job store not initialized")
	}

	query := `SELECT job_id, tenant_id, client_name, client_email, status, total_cents, notes,
		created_at, updated_at, created_by, delivery_date, metadata
	 FROM jobs`
	var conds []string
	var args []any
	if strings.TrimSpace(filter.TenantID) != "" {
		args = append(args, strings.TrimSpace(filter.TenantID))
		conds = append(conds, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if strings.TrimSpace(filter.ClientName) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.ClientName)+"%")
		conds = append(conds, fmt.Sprintf("client_name ILIKE $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *JobStore) UpdateJob(ctx context.Context, job domain.Job) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("job store not initialized")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(job.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var deliveryDate sql.NullTime
	if job.DeliveryDate != nil {
		deliveryDate = sql.NullTime{Time: job.DeliveryDate.UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET
			client_name = $2,
			client_email = $3,
			total_cents = $4,
			notes = $5,
			updated_at = $6,
			delivery_date = $7,
			metadata = $8
		 WHERE job_id = $1`,
		strings.TrimSpace(job.ID),
		strings.TrimSpace(job.ClientName),
		nullIfEmpty(job.ClientEmail),
		job.TotalCents,
		nullIfEmpty(job.Notes),
		normalizeTime(job.UpdatedAt),
		deliveryDate,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// UpdateJobStatus is a compare-and-swap on the status column. A zero row
// count means the stored status no longer matches from.
func (s *JobStore) UpdateJobStatus(ctx context.Context, id string, from, to domain.LifecycleStatus, updatedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("job store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	if !to.Valid() {
		return fmt.Errorf("target status is invalid")
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = $3, updated_at = $4
		 WHERE job_id = $1 AND status = $2`,
		id,
		string(from),
		string(to),
		normalizeTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if affected == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (s *JobStore) DeleteJob(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("job store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var job domain.Job
	var tenantID sql.NullString
	var clientEmail sql.NullString
	var notes sql.NullString
	var createdBy sql.NullString
	var deliveryDate sql.NullTime
	var status string
	var metadataJSON []byte

	if err := row.Scan(&job.ID, &tenantID, &job.ClientName, &clientEmail, &status, &job.TotalCents, &notes,
		&job.CreatedAt, &job.UpdatedAt, &createdBy, &deliveryDate, &metadataJSON); err != nil {
		return domain.Job{}, handleNotFound(err)
	}
	if tenantID.Valid {
		tid := domain.TenantID(tenantID.String)
		job.TenantID = &tid
	}
	if clientEmail.Valid {
		job.ClientEmail = clientEmail.String
	}
	if notes.Valid {
		job.Notes = notes.String
	}
	if createdBy.Valid {
		job.CreatedBy = createdBy.String
	}
	if deliveryDate.Valid {
		delivery := deliveryDate.Time.UTC()
		job.DeliveryDate = &delivery
	}
	job.Status = domain.NormalizeLifecycleStatus(status)
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Job{}, fmt.Errorf("decode metadata: %w", err)
	}
	job.Metadata = metadata
	return job, nil
}
