// Package photos moves rug photo bytes in and out of the object store.
// Permission and tenant checks live in the jobs service; this package only
// runs after the upload_photos check has passed.
package photos

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/objectstore"
)

const presignTTL = 15 * time.Minute

type Service struct {
	store  objectstore.Store
	bucket string
	newID  func() string
}

func New(store objectstore.Store, bucket string) *Service {
	if store == nil || strings.TrimSpace(bucket) == "" {
		return nil
	}
	return &Service{
		store:  store,
		bucket: strings.TrimSpace(bucket),
		newID:  func() string { return uuid.NewString() },
	}
}

// Upload streams the photo bytes into the object store and returns the
// record the jobs service should attach. Keys are namespaced by job so a
// bucket listing groups naturally.
func (s *Service) Upload(ctx context.Context, jobID, rugID string, body io.Reader, size int64, contentType string) (domain.Photo, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.Photo{}, fmt.Errorf("job id is required")
	}
	if body == nil {
		return domain.Photo{}, fmt.Errorf("photo body is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	photoID := s.newID()
	key := objectKey(jobID, photoID)
	if err := s.store.Put(ctx, s.bucket, key, body, size, contentType); err != nil {
		return domain.Photo{}, fmt.Errorf("store photo: %w", err)
	}
	return domain.Photo{
		ID:          photoID,
		JobID:       jobID,
		RugID:       strings.TrimSpace(rugID),
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   size,
	}, nil
}

// PresignDownload returns a short-lived URL for a stored photo.
func (s *Service) PresignDownload(ctx context.Context, photo domain.Photo) (string, error) {
	if strings.TrimSpace(photo.ObjectKey) == "" {
		return "", fmt.Errorf("object key is required")
	}
	url, err := s.store.PresignGet(ctx, s.bucket, photo.ObjectKey, presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign photo: %w", err)
	}
	return url, nil
}

// Remove deletes the stored bytes after the record is gone.
func (s *Service) Remove(ctx context.Context, photo domain.Photo) error {
	if strings.TrimSpace(photo.ObjectKey) == "" {
		return fmt.Errorf("object key is required")
	}
	if err := s.store.Delete(ctx, s.bucket, photo.ObjectKey); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

func objectKey(jobID, photoID string) string {
	return path.Join("jobs", jobID, "photos", photoID)
}
