package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// auditRepository implements AuditRepository.
type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

type entityKey struct {
	kind entities.EntityKind
	id   uint
}

func (r *auditRepository) Append(ctx context.Context, events []*entities.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := make(map[entityKey]uint)
		for _, ev := range events {
			key := entityKey{ev.EntityKind, ev.EntityID}
			seq, ok := next[key]
			if !ok {
				var maxSeq *uint
				err := tx.Model(&entities.AuditEvent{}).
					Where("entity_kind = ? AND entity_id = ?", ev.EntityKind, ev.EntityID).
					Select("MAX(sequence)").
					Scan(&maxSeq).Error
				if err != nil {
					return err
				}
				if maxSeq != nil {
					seq = *maxSeq
				}
			}
			seq++
			next[key] = seq
			ev.Sequence = seq
		}
		return tx.CreateInBatches(events, 100).Error
	})
}

func (r *auditRepository) History(ctx context.Context, kind entities.EntityKind, entityID uint) ([]entities.AuditEvent, error) {
	var found []entities.AuditEvent
	err := r.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("sequence ASC").
		Find(&found).Error
	return found, err
}

func (r *auditRepository) ByCorrelation(ctx context.Context, correlationID string) ([]entities.AuditEvent, error) {
	var found []entities.AuditEvent
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("id ASC").
		Find(&found).Error
	return found, err
}

func (r *auditRepository) Count(ctx context.Context, kind entities.EntityKind, entityID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.AuditEvent{}).
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Count(&n).Error
	return n, err
}
