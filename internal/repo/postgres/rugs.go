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

type RugStore struct {
	db DB
}

func NewRugStore(db DB) *RugStore {
	if db == nil {
		return nil
	}
	return &RugStore{db: db}
}

func (s *RugStore) CreateRug(ctx context.Context, rug domain.Rug) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("rug store not initialized")
	}
	if err := rug.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(rug.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO rugs (
			rug_id,
			job_id,
			description,
			width_ft,
			length_ft,
			fiber,
			analysis_id,
			created_at,
			metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		strings.TrimSpace(rug.ID),
		strings.TrimSpace(rug.JobID),
		nullIfEmpty(rug.Description),
		rug.WidthFt,
		rug.LengthFt,
		nullIfEmpty(rug.Fiber),
		nullIfEmpty(rug.AnalysisID),
		normalizeTime(rug.CreatedAt),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert rug: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *RugStore) GetRug(ctx context.Context, jobID, id string) (domain.Rug, error) {
	if s == nil || s.db == nil {
		return domain.Rug{}, fmt.Errorf("rug store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	id = strings.TrimSpace(id)
	if jobID == "" || id == "" {
		return domain.Rug{}, fmt.Errorf("job id and rug id are required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT rug_id, job_id, description, width_ft, length_ft, fiber, analysis_id, created_at, metadata
		 FROM rugs
		 WHERE job_id = $1 AND rug_id = $2`,
		jobID,
		id,
	)
	return scanRug(row)
}

func (s *RugStore) ListRugs(ctx context.Context, filter repo.RugFilter) ([]domain.Rug, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("rug store not initialized")
	}
	jobID := strings.TrimSpace(filter.JobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT rug_id, job_id, description, width_ft, length_ft, fiber, analysis_id, created_at, metadata
		 FROM rugs
		 WHERE job_id = $1
		 ORDER BY created_at
		 LIMIT $2`,
		jobID,
		limitOrDefault(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list rugs: %w", err)
	}
	defer rows.Close()

	var out []domain.Rug
	for rows.Next() {
		rug, err := scanRug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rug)
	}
	return out, rows.Err()
}

func (s *RugStore) UpdateRug(ctx context.Context, rug domain.Rug) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("rug store not initialized")
	}
	if err := rug.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(rug.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE rugs SET
			description = $3,
			width_ft = $4,
			length_ft = $5,
			fiber = $6,
			analysis_id = $7,
			metadata = $8
		 WHERE job_id = $1 AND rug_id = $2`,
		strings.TrimSpace(rug.JobID),
		strings.TrimSpace(rug.ID),
		nullIfEmpty(rug.Description),
		rug.WidthFt,
		rug.LengthFt,
		nullIfEmpty(rug.Fiber),
		nullIfEmpty(rug.AnalysisID),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("update rug: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rug: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *RugStore) DeleteRug(ctx context.Context, jobID, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("rug store not initialized")
	}
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM rugs WHERE job_id = $1 AND rug_id = $2`,
		strings.TrimSpace(jobID),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("delete rug: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rug: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *RugStore) CreateAnalysisReport(ctx context.Context, report domain.AnalysisReport) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("rug store not initialized")
	}
	if err := report.Validate(); err != nil {
		return err
	}
	servicesJSON, err := json.Marshal(report.ProposedServices)
	if err != nil {
		return fmt.Errorf("encode proposed services: %w", err)
	}
	rawJSON, err := encodeMetadata(report.Raw)
	if err != nil {
		return fmt.Errorf("encode raw: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO analysis_reports (
			analysis_id,
			rug_id,
			proposed_services,
			confidence,
			created_at,
			raw
		) VALUES ($1,$2,$3,$4,$5,$6)`,
		strings.TrimSpace(report.ID),
		strings.TrimSpace(report.RugID),
		servicesJSON,
		report.Confidence,
		normalizeTime(report.CreatedAt),
		rawJSON,
	)
	if err != nil {
		return fmt.Errorf("insert analysis report: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *RugStore) GetAnalysisReport(ctx context.Context, id string) (domain.AnalysisReport, error) {
	if s == nil || s.db == nil {
		return domain.AnalysisReport{}, fmt.Errorf("rug store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.AnalysisReport{}, fmt.Errorf("analysis id is required")
	}
	var report domain.AnalysisReport
	var servicesJSON []byte
	var rawJSON []byte
	row := s.db.QueryRowContext(
		ctx,
		`SELECT analysis_id, rug_id, proposed_services, confidence, created_at, raw
		 FROM analysis_reports
		 WHERE analysis_id = $1`,
		id,
	)
	if err := row.Scan(&report.ID, &report.RugID, &servicesJSON, &report.Confidence, &report.CreatedAt, &rawJSON); err != nil {
		return domain.AnalysisReport{}, handleNotFound(err)
	}
	if err := json.Unmarshal(servicesJSON, &report.ProposedServices); err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("decode proposed services: %w", err)
	}
	raw, err := decodeMetadata(rawJSON)
	if err != nil {
		return domain.AnalysisReport{}, fmt.Errorf("decode raw: %w", err)
	}
	report.Raw = raw
	return report, nil
}

func scanRug(row rowScanner) (domain.Rug, error) {
	var rug domain.Rug
	var description sql.NullString
	var fiber sql.NullString
	var analysisID sql.NullString
	var metadataJSON []byte
	if err := row.Scan(&rug.ID, &rug.JobID, &description, &rug.WidthFt, &rug.LengthFt, &fiber,
		&analysisID, &rug.CreatedAt, &metadataJSON); err != nil {
		return domain.Rug{}, handleNotFound(err)
	}
	if description.Valid {
		rug.Description = description.String
	}
	if fiber.Valid {
		rug.Fiber = fiber.String
	}
	if analysisID.Valid {
		rug.AnalysisID = analysisID.String
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Rug{}, fmt.Errorf("decode metadata: %w", err)
	}
	rug.Metadata = metadata
	return rug, nil
}
