package repository

import (
	"context"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// FLCRepository provides access to first level check records.
type FLCRepository interface {
	CreateCU(ctx context.Context, records []*entities.FLCRecord) error
	CreateBU(ctx context.Context, records []*entities.FLCBallotUnit) error
	// ListCUByComponents returns CU records referencing any of componentIDs.
	ListCUByComponents(ctx context.Context, componentIDs []uint) ([]entities.FLCRecord, error)
	// ListBUByComponents returns BU records for any of componentIDs.
	ListBUByComponents(ctx context.Context, componentIDs []uint) ([]entities.FLCBallotUnit, error)
	// LatestCU returns the most recent CU record for cuID.
	LatestCU(ctx context.Context, cuID uint) (*entities.FLCRecord, error)
	DeleteByComponents(ctx context.Context, componentIDs []uint) error
}
