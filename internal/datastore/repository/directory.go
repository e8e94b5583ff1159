package repository

import (
	"context"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// DirectoryRepository resolves users and administrative units.
type DirectoryRepository interface {
	GetUser(ctx context.Context, id uint) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)
	GetDistrict(ctx context.Context, id uint) (*entities.District, error)
	GetLocalBody(ctx context.Context, id uint) (*entities.LocalBody, error)
	GetWarehouse(ctx context.Context, id uint) (*entities.Warehouse, error)
	// GetPollingStations resolves station numbers within a local body, keyed by number.
	GetPollingStations(ctx context.Context, localBodyID uint, numbers []int) (map[int]*entities.PollingStation, error)
	// ApprovedStationIDs returns the approved polling stations of a local body.
	ApprovedStationIDs(ctx context.Context, localBodyID uint) ([]uint, error)

	// Seeding
	UpsertDistrict(ctx context.Context, d *entities.District) error
	UpsertLocalBody(ctx context.Context, lb *entities.LocalBody) error
	UpsertWarehouse(ctx context.Context, w *entities.Warehouse) error
	UpsertPollingStation(ctx context.Context, ps *entities.PollingStation) error
	UpsertUser(ctx context.Context, u *entities.User) error
}
