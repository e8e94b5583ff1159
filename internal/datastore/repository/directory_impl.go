package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
)

// directoryRepository implements DirectoryRepository.
type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

// first loads one row and maps a missing row to notFound.
func first[T any](ctx context.Context, db *gorm.DB, notFound error, query any, args ...any) (*T, error) {
	var v T
	err := db.WithContext(ctx).Where(query, args...).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *directoryRepository) GetUser(ctx context.Context, id uint) (*entities.User, error) {
	return first[entities.User](ctx, r.db, ErrUserNotFound, "id = ?", id)
}

func (r *directoryRepository) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return first[entities.User](ctx, r.db, ErrUserNotFound, "username = ?", username)
}

func (r *directoryRepository) GetDistrict(ctx context.Context, id uint) (*entities.District, error) {
	return first[entities.District](ctx, r.db, ErrDistrictNotFound, "id = ?", id)
}

func (r *directoryRepository) GetLocalBody(ctx context.Context, id uint) (*entities.LocalBody, error) {
	return first[entities.LocalBody](ctx, r.db, ErrLocalBodyNotFound, "id = ?", id)
}

func (r *directoryRepository) GetWarehouse(ctx context.Context, id uint) (*entities.Warehouse, error) {
	return first[entities.Warehouse](ctx, r.db, ErrWarehouseNotFound, "id = ?", id)
}

func (r *directoryRepository) GetPollingStations(ctx context.Context, localBodyID uint, numbers []int) (map[int]*entities.PollingStation, error) {
	result := make(map[int]*entities.PollingStation, len(numbers))
	if len(numbers) == 0 {
		return result, nil
	}
	var found []entities.PollingStation
	err := r.db.WithContext(ctx).
		Where("local_body_id = ? AND number IN ?", localBodyID, numbers).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	for i := range found {
		result[found[i].Number] = &found[i]
	}
	return result, nil
}

func (r *directoryRepository) ApprovedStationIDs(ctx context.Context, localBodyID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&entities.PollingStation{}).
		Where("local_body_id = ? AND status = ?", localBodyID, entities.PollingStationApproved).
		Order("number ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *directoryRepository) upsert(ctx context.Context, v any) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(v).Error
}

func (r *directoryRepository) UpsertDistrict(ctx context.Context, d *entities.District) error {
	return r.upsert(ctx, d)
}

func (r *directoryRepository) UpsertLocalBody(ctx context.Context, lb *entities.LocalBody) error {
	return r.upsert(ctx, lb)
}

func (r *directoryRepository) UpsertWarehouse(ctx context.Context, w *entities.Warehouse) error {
	return r.upsert(ctx, w)
}

func (r *directoryRepository) UpsertPollingStation(ctx context.Context, ps *entities.PollingStation) error {
	return r.upsert(ctx, ps)
}

func (r *directoryRepository) UpsertUser(ctx context.Context, u *entities.User) error {
	return r.upsert(ctx, u)
}
