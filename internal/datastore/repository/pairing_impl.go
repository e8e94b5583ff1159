package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
)

// pairingRepository implements PairingRepository.
type pairingRepository struct {
	db *gorm.DB
}

// NewPairingRepository creates a new PairingRepository.
func NewPairingRepository(db *gorm.DB) PairingRepository {
	return &pairingRepository{db: db}
}

func (r *pairingRepository) Create(ctx context.Context, p *entities.PairingRecord) error {
	return r.db.WithContext(ctx).Omit("Components", "PollingStation").Create(p).Error
}

func (r *pairingRepository) Get(ctx context.Context, id uint) (*entities.PairingRecord, error) {
	var p entities.PairingRecord
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPairingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pairingRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*entities.PairingRecord, error) {
	result := make(map[uint]*entities.PairingRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var found []entities.PairingRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	for i := range found {
		result[found[i].ID] = &found[i]
	}
	return result, nil
}

func (r *pairingRepository) GetByEVMIDs(ctx context.Context, localBodyID uint, evmIDs []string) (map[string]*entities.PairingRecord, error) {
	result := make(map[string]*entities.PairingRecord, len(evmIDs))
	if len(evmIDs) == 0 {
		return result, nil
	}
	stations := r.db.Model(&entities.PollingStation{}).
		Select("id").
		Where("local_body_id = ?", localBodyID)
	var found []entities.PairingRecord
	err := r.db.WithContext(ctx).
		Where("evm_id IN ? AND polling_station_id IN (?)", evmIDs, stations).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	for i := range found {
		result[*found[i].EVMID] = &found[i]
	}
	return result, nil
}

func (r *pairingRepository) ExistingEVMIDs(ctx context.Context, evmIDs []string) ([]string, error) {
	var existing []string
	if len(evmIDs) == 0 {
		return existing, nil
	}
	err := r.db.WithContext(ctx).Model(&entities.PairingRecord{}).
		Where("evm_id IN ?", evmIDs).
		Pluck("evm_id", &existing).Error
	return existing, err
}

func (r *pairingRepository) StationsFilled(ctx context.Context, stationIDs []uint) (map[uint]bool, error) {
	filled := make(map[uint]bool, len(stationIDs))
	if len(stationIDs) == 0 {
		return filled, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entities.PairingRecord{}).
		Where("polling_station_id IN ?", stationIDs).
		Pluck("polling_station_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		filled[id] = true
	}
	return filled, nil
}

func (r *pairingRepository) Commission(ctx context.Context, id uint, evmID string, stationID, completedBy uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.PairingRecord{}).
		Where("id = ? AND polling_station_id IS NULL AND evm_id IS NULL", id).
		Updates(map[string]any{
			"evm_id":             evmID,
			"polling_station_id": stationID,
			"completed_by_id":    completedBy,
			"completed_at":       at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return ErrStaleState
	}
	return nil
}

func (r *pairingRepository) Delete(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.PairingRecord{}).Error
}
