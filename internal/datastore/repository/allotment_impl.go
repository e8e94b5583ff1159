package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
)

// allotmentRepository implements AllotmentRepository.
type allotmentRepository struct {
	db *gorm.DB
}

// NewAllotmentRepository creates a new AllotmentRepository.
func NewAllotmentRepository(db *gorm.DB) AllotmentRepository {
	return &allotmentRepository{db: db}
}

func (r *allotmentRepository) Create(ctx context.Context, a *entities.Allotment) error {
	for i := range a.Items {
		a.Items[i].Component = nil
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *allotmentRepository) Get(ctx context.Context, id uint) (*entities.Allotment, error) {
	var a entities.Allotment
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Component").
		First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAllotmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *allotmentRepository) Resolve(ctx context.Context, id uint, from entities.AllotmentStatus, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.Allotment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return ErrStaleState
	}
	return nil
}

func (r *allotmentRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("allotment_id = ?", id).Delete(&entities.AllotmentItem{}).Error; err != nil {
		return err
	}
	return db.Delete(&entities.Allotment{}, id).Error
}

func (r *allotmentRepository) ListPendingFor(ctx context.Context, userID uint) ([]entities.Allotment, error) {
	var found []entities.Allotment
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Component").
		Where("to_user_id = ? AND status = ? AND approved_by_id IS NULL", userID, entities.AllotmentPending).
		Order("initiated_at ASC, id ASC").
		Find(&found).Error
	return found, err
}
