// Package registry maintains the component catalog: bulk registration against
// a receipt order, lookups, SEC approval and the single-component damage and
// manufacturer-return transitions.
package registry

import (
	"context"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/report"
)

const component = "registry"

// Service implements the registry operations.
type Service struct {
	deps           *custody.Deps
	manufacturerID uint
	log            logger.Logger
}

// NewService creates a registry service. manufacturerID is the custodian that
// receives components returned to ECIL.
func NewService(deps *custody.Deps, manufacturerID uint) *Service {
	return &Service{
		deps:           deps,
		manufacturerID: manufacturerID,
		log:            deps.Log.Module(component),
	}
}

// NewComponent is one row of a bulk registration.
type NewComponent struct {
	Serial            string                 `json:"serial"`
	Type              entities.ComponentType `json:"type"`
	DateOfManufacture *time.Time             `json:"date_of_manufacture,omitempty"`
	BoxNo             string                 `json:"box_no,omitempty"`
	Remarks           string                 `json:"remarks,omitempty"`
}

// RegisterRequest is a batch of physically received components.
type RegisterRequest struct {
	OrderNo     string         `json:"order_no"`
	WarehouseID uint           `json:"warehouse_id"`
	Components  []NewComponent `json:"components"`
}

// RegisterResult is the committed batch and its receipt.
type RegisterResult struct {
	Components []entities.Component `json:"components"`
	Report     *custody.Rendered    `json:"-"`
}

// Register validates the whole batch and commits it atomically. Every
// malformed, repeated or already registered serial is reported together.
func (s *Service) Register(ctx context.Context, caller custody.Caller, req RegisterRequest) (result *RegisterResult, err error) {
	defer s.deps.Observe("registry.register", time.Now(), &err)
	store := s.deps.Store

	if req.OrderNo == "" {
		return nil, errors.ValidationError("order number is required")
	}
	if len(req.Components) == 0 {
		return nil, errors.ValidationError("at least one component is required")
	}
	warehouse, err := store.Directory.GetWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return nil, custody.LookupError(component, "warehouse", err)
	}

	batch := errors.NewBatch("register")
	seen := make(map[string]int, len(req.Components))
	serials := make([]string, 0, len(req.Components))
	for i, nc := range req.Components {
		row := i + 1
		switch {
		case !entities.ValidSerial(nc.Serial):
			batch.AddRow(row, "serial %q is malformed", nc.Serial)
		case seen[nc.Serial] > 0:
			batch.AddRow(row, "serial %s duplicates row %d", nc.Serial, seen[nc.Serial])
		default:
			seen[nc.Serial] = row
			serials = append(serials, nc.Serial)
		}
		if !nc.Type.Valid() {
			batch.AddRow(row, "serial %s has unknown type %q", nc.Serial, nc.Type)
		}
	}

	existing, err := store.Components.ExistingSerials(ctx, serials)
	if err != nil {
		return nil, errors.Database(component, "existing serials", err)
	}
	for _, serial := range existing {
		batch.AddRow(seen[serial], "serial %s is already registered", serial)
	}
	if err := batch.OrNil(); err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	created := make([]*entities.Component, 0, len(req.Components))
	for _, nc := range req.Components {
		owner := caller.UserID
		created = append(created, &entities.Component{
			Serial:             nc.Serial,
			Type:               nc.Type,
			Status:             entities.StatusFLCPending,
			DateOfManufacture:  nc.DateOfManufacture,
			BoxNo:              nc.BoxNo,
			Remarks:            nc.Remarks,
			OrderNo:            req.OrderNo,
			CurrentUserID:      &owner,
			CurrentWarehouseID: &warehouse.ID,
			DateOfReceipt:      &now,
		})
	}

	err = store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Components.CreateBatch(ctx, created)
	})
	if err != nil {
		return nil, custody.TxError(component, "register", err)
	}

	result = &RegisterResult{Components: make([]entities.Component, 0, len(created))}
	rows := make([]report.ReceiptRow, 0, len(created))
	audit := s.deps.Audit.Begin(ctx, caller.UserID, "registry.register")
	for _, c := range created {
		result.Components = append(result.Components, *c)
		audit.Add(entities.KindComponent, c.ID, c)
		rows = append(rows, report.ReceiptRow{
			Serial:            c.Serial,
			Type:              c.Type,
			DateOfManufacture: c.DateOfManufacture,
			BoxNo:             c.BoxNo,
		})
	}
	s.deps.Audit.Commit(ctx, audit)
	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCPending), len(created))

	s.log.WithContext(ctx).Info("components registered",
		logger.String("order_no", req.OrderNo),
		logger.Int("count", len(created)),
		logger.Uint64("user_id", uint64(caller.UserID)))

	result.Report = s.deps.Render(ctx, report.RegistrationReceipt(req.OrderNo, warehouse.Name, now, rows))
	return result, nil
}

// Get returns a component by serial.
func (s *Service) Get(ctx context.Context, serial string) (*entities.Component, error) {
	c, err := s.deps.Store.Components.GetBySerial(ctx, serial)
	if err != nil {
		return nil, custody.LookupError(component, serial, err)
	}
	return c, nil
}

// List returns components matching filter.
func (s *Service) List(ctx context.Context, filter repository.ComponentFilter) ([]entities.Component, error) {
	found, err := s.deps.Store.Components.List(ctx, filter)
	if err != nil {
		return nil, errors.Database(component, "list", err)
	}
	return found, nil
}
