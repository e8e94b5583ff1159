package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
)

// ErrFLCRecordNotFound indicates no first level check exists for the unit.
var ErrFLCRecordNotFound = errors.NewStd("flc record not found")

// flcRepository implements FLCRepository.
type flcRepository struct {
	db *gorm.DB
}

// NewFLCRepository creates a new FLCRepository.
func NewFLCRepository(db *gorm.DB) FLCRepository {
	return &flcRepository{db: db}
}

func (r *flcRepository) CreateCU(ctx context.Context, records []*entities.FLCRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(records).Error
}

func (r *flcRepository) CreateBU(ctx context.Context, records []*entities.FLCBallotUnit) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(records).Error
}

func (r *flcRepository) cuQuery(ctx context.Context, componentIDs []uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("cu_id IN ? OR dmm_id IN ? OR dmm_seal_id IN ? OR pink_paper_seal_id IN ?",
			componentIDs, componentIDs, componentIDs, componentIDs)
}

func (r *flcRepository) ListCUByComponents(ctx context.Context, componentIDs []uint) ([]entities.FLCRecord, error) {
	var found []entities.FLCRecord
	if len(componentIDs) == 0 {
		return found, nil
	}
	err := r.cuQuery(ctx, componentIDs).Order("id ASC").Find(&found).Error
	return found, err
}

func (r *flcRepository) ListBUByComponents(ctx context.Context, componentIDs []uint) ([]entities.FLCBallotUnit, error) {
	var found []entities.FLCBallotUnit
	if len(componentIDs) == 0 {
		return found, nil
	}
	err := r.db.WithContext(ctx).Where("bu_id IN ?", componentIDs).Order("id ASC").Find(&found).Error
	return found, err
}

func (r *flcRepository) LatestCU(ctx context.Context, cuID uint) (*entities.FLCRecord, error) {
	var rec entities.FLCRecord
	err := r.db.WithContext(ctx).
		Where("cu_id = ?", cuID).
		Order("tested_at DESC, id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFLCRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *flcRepository) DeleteByComponents(ctx context.Context, componentIDs []uint) error {
	if len(componentIDs) == 0 {
		return nil
	}
	if err := r.cuQuery(ctx, componentIDs).Delete(&entities.FLCRecord{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("bu_id IN ?", componentIDs).Delete(&entities.FLCBallotUnit{}).Error
}
