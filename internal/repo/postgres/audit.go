package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/auditexport"
	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auditlog"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

type AuditStore struct {
	db       DB
	exporter auditexport.Exporter
	now      func() time.Time
}

func NewAuditStore(db DB, exporter auditexport.Exporter) *AuditStore {
	if db == nil {
		return nil
	}
	if exporter == nil {
		exporter = auditexport.NoopExporter{}
	}
	return &AuditStore{db: db, exporter: exporter, now: time.Now}
}

func (a *AuditStore) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	if a == nil || a.db == nil {
		return 0, errors.New("audit store not initialized")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now().UTC()
	}
	payload := event.Payload
	if payload == nil {
		payload = domain.Metadata{}
	}
	id, err := auditlog.Insert(ctx, a.db, auditlog.Event{
		OccurredAt:   event.OccurredAt,
		TenantID:     event.TenantID,
		Actor:        event.Actor,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		RequestID:    event.RequestID,
		IP:           event.IP,
		UserAgent:    event.UserAgent,
		Payload:      payload,
	})
	if err != nil {
		return 0, fmt.Errorf("append audit event: %w", err)
	}
	event.EventID = id
	if a.exporter != nil {
		if err := a.exporter.Export(ctx, event); err != nil {
			return id, fmt.Errorf("export audit event: %w", err)
		}
	}
	return id, nil
}

func (a *AuditStore) ListAuditEvents(ctx context.Context, filter repo.AuditEventFilter) ([]domain.AuditEvent, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("audit store not initialized")
	}

	query := `SELECT event_id, occurred_at, tenant_id, actor, action, resource_type, resource_id,
		request_id, ip, user_agent, payload, integrity_sha256
	 FROM audit_events`
	var conds []string
	var args []any
	if strings.TrimSpace(filter.TenantID) != "" {
		args = append(args, strings.TrimSpace(filter.TenantID))
		conds = append(conds, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if strings.TrimSpace(filter.ResourceType) != "" {
		args = append(args, strings.TrimSpace(filter.ResourceType))
		conds = append(conds, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if strings.TrimSpace(filter.ResourceID) != "" {
		args = append(args, strings.TrimSpace(filter.ResourceID))
		conds = append(conds, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(" ORDER BY event_id LIMIT $%d", len(args))

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var tenantID sql.NullString
		var requestID sql.NullString
		var ip sql.NullString
		var userAgent sql.NullString
		var payloadJSON []byte
		if err := rows.Scan(&event.EventID, &event.OccurredAt, &tenantID, &event.Actor, &event.Action,
			&event.ResourceType, &event.ResourceID, &requestID, &ip, &userAgent, &payloadJSON,
			&event.IntegritySHA256); err != nil {
			return nil, err
		}
		if tenantID.Valid {
			event.TenantID = tenantID.String
		}
		if requestID.Valid {
			event.RequestID = requestID.String
		}
		if ip.Valid {
			event.IP = net.ParseIP(ip.String)
		}
		if userAgent.Valid {
			event.UserAgent = userAgent.String
		}
		payload, err := decodeMetadata(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		event.Payload = payload
		out = append(out, event)
	}
	return out, rows.Err()
}
