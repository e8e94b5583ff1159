package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
)

// componentRepository implements ComponentRepository.
type componentRepository struct {
	db *gorm.DB
}

// NewComponentRepository creates a new ComponentRepository.
func NewComponentRepository(db *gorm.DB) ComponentRepository {
	return &componentRepository{db: db}
}

func (r *componentRepository) CreateBatch(ctx context.Context, components []*entities.Component) error {
	if len(components) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(components, 100).Error
}

func (r *componentRepository) GetBySerial(ctx context.Context, serial string) (*entities.Component, error) {
	var c entities.Component
	err := r.db.WithContext(ctx).Where("serial = ?", serial).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrComponentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *componentRepository) GetBySerials(ctx context.Context, serials []string) (map[string]*entities.Component, error) {
	result := make(map[string]*entities.Component, len(serials))
	if len(serials) == 0 {
		return result, nil
	}
	var found []entities.Component
	if err := r.db.WithContext(ctx).Where("serial IN ?", serials).Find(&found).Error; err != nil {
		return nil, err
	}
	for i := range found {
		result[found[i].Serial] = &found[i]
	}
	return result, nil
}

func (r *componentRepository) GetByIDs(ctx context.Context, ids []uint) ([]entities.Component, error) {
	var found []entities.Component
	if len(ids) == 0 {
		return found, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&found).Error
	return found, err
}

func (r *componentRepository) ExistingSerials(ctx context.Context, serials []string) ([]string, error) {
	var existing []string
	if len(serials) == 0 {
		return existing, nil
	}
	err := r.db.WithContext(ctx).Model(&entities.Component{}).
		Where("serial IN ?", serials).
		Order("serial ASC").
		Pluck("serial", &existing).Error
	return existing, err
}

func (r *componentRepository) List(ctx context.Context, filter ComponentFilter) ([]entities.Component, error) {
	query := r.db.WithContext(ctx).Model(&entities.Component{})
	if filter.OwnerID != 0 {
		query = query.Where("current_user_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var found []entities.Component
	err := query.Order("serial ASC").Find(&found).Error
	return found, err
}

func (r *componentRepository) ListByPairings(ctx context.Context, pairingIDs []uint) ([]entities.Component, error) {
	var found []entities.Component
	if len(pairingIDs) == 0 {
		return found, nil
	}
	err := r.db.WithContext(ctx).
		Where("pairing_id IN ?", pairingIDs).
		Order("pairing_id ASC, id ASC").
		Find(&found).Error
	return found, err
}

func (r *componentRepository) ListReservable(ctx context.Context, ownerID uint, statuses []entities.ComponentStatus) ([]entities.Component, error) {
	var found []entities.Component
	unbound := r.db.Model(&entities.PairingRecord{}).
		Select("id").
		Where("polling_station_id IS NOT NULL")
	err := r.db.WithContext(ctx).
		Where("current_user_id = ? AND status IN ?", ownerID, statuses).
		Where("pairing_id IS NULL OR pairing_id NOT IN (?)", unbound).
		Order("id ASC").
		Find(&found).Error
	return found, err
}

func (r *componentRepository) ListInStations(ctx context.Context, stationIDs []uint, status entities.ComponentStatus) ([]entities.Component, error) {
	var found []entities.Component
	if len(stationIDs) == 0 {
		return found, nil
	}
	bound := r.db.Model(&entities.PairingRecord{}).
		Select("id").
		Where("polling_station_id IN ?", stationIDs)
	err := r.db.WithContext(ctx).
		Where("status = ? AND pairing_id IN (?)", status, bound).
		Order("id ASC").
		Find(&found).Error
	return found, err
}

func (r *componentRepository) TransitionStatus(ctx context.Context, ids []uint, from []entities.ComponentStatus, to entities.ComponentStatus, fields map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).Model(&entities.Component{}).
		Where("id IN ? AND status IN ?", ids, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return ErrStaleState
	}
	return nil
}

func (r *componentRepository) UpdateFields(ctx context.Context, ids []uint, fields map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entities.Component{}).
		Where("id IN ?", ids).
		Updates(fields).Error
}

func (r *componentRepository) Delete(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.Component{}).Error
}
