package repository

import (
	"context"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// AuditRepository appends to and projects the audit event log.
type AuditRepository interface {
	// Append assigns each event the next sequence number for its entity and inserts it.
	Append(ctx context.Context, events []*entities.AuditEvent) error
	// History returns every event of one entity in sequence order.
	History(ctx context.Context, kind entities.EntityKind, entityID uint) ([]entities.AuditEvent, error)
	// ByCorrelation returns every event written by one operation.
	ByCorrelation(ctx context.Context, correlationID string) ([]entities.AuditEvent, error)
	// Count returns the number of events recorded for one entity.
	Count(ctx context.Context, kind entities.EntityKind, entityID uint) (int64, error)
}
