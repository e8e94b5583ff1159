package repository

import (
	"context"
	"time"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// PairingRepository provides access to pairing records.
type PairingRepository interface {
	Create(ctx context.Context, p *entities.PairingRecord) error
	Get(ctx context.Context, id uint) (*entities.PairingRecord, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*entities.PairingRecord, error)
	// GetByEVMIDs returns pairings commissioned to stations of localBodyID, keyed by EVM id.
	GetByEVMIDs(ctx context.Context, localBodyID uint, evmIDs []string) (map[string]*entities.PairingRecord, error)
	// ExistingEVMIDs returns the subset of evmIDs already assigned to a pairing.
	ExistingEVMIDs(ctx context.Context, evmIDs []string) ([]string, error)
	// StationsFilled returns the subset of stationIDs already bound to a pairing.
	StationsFilled(ctx context.Context, stationIDs []uint) (map[uint]bool, error)
	// Commission binds an uncommissioned pairing. ErrStaleState when it was
	// commissioned concurrently.
	Commission(ctx context.Context, id uint, evmID string, stationID, completedBy uint, at time.Time) error
	Delete(ctx context.Context, ids []uint) error
}
