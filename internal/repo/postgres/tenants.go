package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
)

type TenantStore struct {
	db DB
}

func NewTenantStore(db DB) *TenantStore {
	if db == nil {
		return nil
	}
	return &TenantStore{db: db}
}

func (s *TenantStore) Create(ctx context.Context, tenant domain.Tenant) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tenant store not initialized")
	}
	if err := tenant.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(tenant.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tenants (tenant_id, name, created_at, metadata)
		 VALUES ($1,$2,$3,$4)`,
		strings.TrimSpace(tenant.ID.String()),
		strings.TrimSpace(tenant.Name),
		normalizeTime(tenant.CreatedAt),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", handleUniqueViolation(err))
	}
	return nil
}

func (s *TenantStore) Get(ctx context.Context, id domain.TenantID) (domain.Tenant, error) {
	if s == nil || s.db == nil {
		return domain.Tenant{}, fmt.Errorf("tenant store not initialized")
	}
	trimmed := strings.TrimSpace(id.String())
	if trimmed == "" {
		return domain.Tenant{}, fmt.Errorf("tenant id is required")
	}
	var tenant domain.Tenant
	var rawID string
	var metadataJSON []byte
	row := s.db.QueryRowContext(
		ctx,
		`SELECT tenant_id, name, created_at, metadata FROM tenants WHERE tenant_id = $1`,
		trimmed,
	)
	if err := row.Scan(&rawID, &tenant.Name, &tenant.CreatedAt, &metadataJSON); err != nil {
		return domain.Tenant{}, handleNotFound(err)
	}
	tenant.ID = domain.TenantID(rawID)
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("decode metadata: %w", err)
	}
	tenant.Metadata = metadata
	return tenant, nil
}

func (s *TenantStore) List(ctx context.Context, limit int) ([]domain.Tenant, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tenant store not initialized")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT tenant_id, name, created_at, metadata FROM tenants ORDER BY created_at LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		var tenant domain.Tenant
		var rawID string
		var metadataJSON []byte
		if err := rows.Scan(&rawID, &tenant.Name, &tenant.CreatedAt, &metadataJSON); err != nil {
			return nil, err
		}
		tenant.ID = domain.TenantID(rawID)
		metadata, err := decodeMetadata(metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		tenant.Metadata = metadata
		out = append(out, tenant)
	}
	return out, rows.Err()
}
