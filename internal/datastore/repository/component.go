package repository

import (
	"context"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// ComponentFilter narrows List results. Zero values are ignored.
type ComponentFilter struct {
	OwnerID uint
	Status  entities.ComponentStatus
	Type    entities.ComponentType
	OrderNo string
	Limit   int
	Offset  int
}

// ComponentRepository provides access to the component registry.
type ComponentRepository interface {
	// CreateBatch inserts components in one statement.
	CreateBatch(ctx context.Context, components []*entities.Component) error
	// GetBySerial returns ErrComponentNotFound when the serial is unknown.
	GetBySerial(ctx context.Context, serial string) (*entities.Component, error)
	// GetBySerials returns the known components keyed by serial; unknown serials are absent.
	GetBySerials(ctx context.Context, serials []string) (map[string]*entities.Component, error)
	GetByIDs(ctx context.Context, ids []uint) ([]entities.Component, error)
	// ExistingSerials returns the subset of serials that are already registered.
	ExistingSerials(ctx context.Context, serials []string) ([]string, error)
	List(ctx context.Context, filter ComponentFilter) ([]entities.Component, error)
	// ListByPairings returns every member of the given pairings.
	ListByPairings(ctx context.Context, pairingIDs []uint) ([]entities.Component, error)
	// ListReservable returns components held by ownerID in one of statuses whose
	// pairing, if any, is not bound to a polling station.
	ListReservable(ctx context.Context, ownerID uint, statuses []entities.ComponentStatus) ([]entities.Component, error)
	// ListInStations returns components in status whose pairing is bound to one of stationIDs.
	ListInStations(ctx context.Context, stationIDs []uint, status entities.ComponentStatus) ([]entities.Component, error)

	// TransitionStatus sets status (and extra fields) on ids still in one of
	// from. It returns ErrStaleState unless every id matched.
	TransitionStatus(ctx context.Context, ids []uint, from []entities.ComponentStatus, to entities.ComponentStatus, fields map[string]any) error
	// UpdateFields writes fields on ids unconditionally.
	UpdateFields(ctx context.Context, ids []uint, fields map[string]any) error
	Delete(ctx context.Context, ids []uint) error
}
