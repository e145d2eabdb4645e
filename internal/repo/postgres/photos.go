package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

type PhotoStore struct {
	db DB
}

func NewPhotoStore(db DB) *PhotoStore {
	if db == nil {
		return nil
	}
	return &PhotoStore{db: db}
}

func (s *PhotoStore) CreatePhoto(ctx context.Context, photo domain.Photo) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("photo store not initialized")
	}
	if err := photo.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO photos (
			photo_id,
			job_id,
			rug_id,
			object_key,
			content_type,
			size_bytes,
			uploaded_by,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		strings.TrimSpace(photo.ID),
		strings.TrimSpace(photo.JobID),
		nullIfEmpty(photo.RugID),
		strings.TrimSpace(photo.ObjectKey),
		nullIfEmpty(photo.ContentType),
		photo.SizeBytes,
		nullIfEmpty(photo.UploadedBy),
		normalizeTime(photo.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert photo: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *PhotoStore) GetPhoto(ctx context.Context, jobID, id string) (domain.Photo, error) {
	if s == nil || s.db == nil {
		return domain.Photo{}, fmt.Errorf("photo store not initialized")
	}
	jobID = strings.TrimSpace(jobID)
	id = strings.TrimSpace(id)
	if jobID == "" || id == "" {
		return domain.Photo{}, fmt.Errorf("job id and photo id are required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT photo_id, job_id, rug_id, object_key, content_type, size_bytes, uploaded_by, created_at
		 FROM photos
		 WHERE job_id = $1 AND photo_id = $2`,
		jobID,
		id,
	)
	return scanPhoto(row)
}

func (s *PhotoStore) ListPhotos(ctx context.Context, filter repo.PhotoFilter) ([]domain.Photo, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("photo store not initialized")
	}
	jobID := strings.TrimSpace(filter.JobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	query := `SELECT photo_id, job_id, rug_id, object_key, content_type, size_bytes, uploaded_by, created_at
	 FROM photos
	 WHERE job_id = $1`
	args := []any{jobID}
	if strings.TrimSpace(filter.RugID) != "" {
		args = append(args, strings.TrimSpace(filter.RugID))
		query += fmt.Sprintf(" AND rug_id = $%d", len(args))
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(" ORDER BY created_at LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []domain.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, photo)
	}
	return out, rows.Err()
}

func (s *PhotoStore) DeletePhoto(ctx context.Context, jobID, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("photo store not initialized")
	}
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM photos WHERE job_id = $1 AND photo_id = $2`,
		strings.TrimSpace(jobID),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanPhoto(row rowScanner) (domain.Photo, error) {
	var photo domain.Photo
	var rugID sql.NullString
	var contentType sql.NullString
	var uploadedBy sql.NullString
	if err := row.Scan(&photo.ID, &photo.JobID, &rugID, &photo.ObjectKey, &contentType,
		&photo.SizeBytes, &uploadedBy, &photo.CreatedAt); err != nil {
		return domain.Photo{}, handleNotFound(err)
	}
	if rugID.Valid {
		photo.RugID = rugID.String
	}
	if contentType.Valid {
		photo.ContentType = contentType.String
	}
	if uploadedBy.Valid {
		photo.UploadedBy = uploadedBy.String
	}
	return photo, nil
}
