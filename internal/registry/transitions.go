package registry

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// SECApprove flags every named component as approved by the State Election
// Commission. Unknown serials and components that have left service are
// reported together and nothing is changed.
func (s *Service) SECApprove(ctx context.Context, caller custody.Caller, serials []string) (approved []entities.Component, err error) {
	defer s.deps.Observe("registry.sec_approve", time.Now(), &err)
	store := s.deps.Store

	if len(serials) == 0 {
		return nil, errors.ValidationError("at least one serial is required")
	}
	found, err := store.Components.GetBySerials(ctx, serials)
	if err != nil {
		return nil, errors.Database(component, "lookup serials", err)
	}

	batch := errors.NewBatch("sec-approve")
	ids := make([]uint, 0, len(serials))
	for i, serial := range serials {
		c, ok := found[serial]
		switch {
		case !ok:
			batch.AddRow(i+1, "component %s not found", serial)
		case c.Status == entities.StatusDamaged || c.Status == entities.StatusReturnedECIL:
			batch.AddRow(i+1, "component %s is not available (status %s)", serial, c.Status)
		default:
			ids = append(ids, c.ID)
		}
	}
	if err := batch.OrNil(); err != nil {
		return nil, err
	}

	err = store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Components.UpdateFields(ctx, ids, map[string]any{"sec_approved": true})
	})
	if err != nil {
		return nil, custody.TxError(component, "sec-approve", err)
	}

	approved, err = store.Components.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Database(component, "reload", err)
	}
	audit := s.deps.Audit.Begin(ctx, caller.UserID, "registry.sec_approve")
	audit.AddComponents(approved)
	s.deps.Audit.Commit(ctx, audit)
	return approved, nil
}

// MarkDamaged moves a held component to damaged and detaches it from its
// pairing. Marking an already damaged component fails with AlreadyInState.
func (s *Service) MarkDamaged(ctx context.Context, caller custody.Caller, serial, remarks string) (c *entities.Component, err error) {
	defer s.deps.Observe("registry.damage", time.Now(), &err)

	fields := map[string]any{"pairing_id": nil}
	if remarks != "" {
		fields["remarks"] = remarks
	}
	return s.transition(ctx, caller, serial, "registry.damage",
		nil, custody.Damageable, entities.StatusDamaged, fields)
}

// returnableTypes are the manufactured units; seals are single-use and never
// go back to ECIL.
var returnableTypes = []entities.ComponentType{entities.TypeCU, entities.TypeBU, entities.TypeDMM}

// ReturnToECIL hands a damaged or failed component back to the manufacturer:
// the warehouse and SEC approval are cleared and custody passes to the
// configured manufacturer custodian.
func (s *Service) ReturnToECIL(ctx context.Context, caller custody.Caller, serial string) (c *entities.Component, err error) {
	defer s.deps.Observe("registry.ecil_return", time.Now(), &err)

	if s.manufacturerID == 0 {
		return nil, errors.Newf("manufacturer custodian is not configured").
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
	now := s.deps.Clock()
	fields := map[string]any{
		"current_warehouse_id":  nil,
		"sec_approved":          false,
		"current_user_id":       s.manufacturerID,
		"last_received_from_id": caller.UserID,
		"date_of_receipt":       now,
		"pairing_id":            nil,
	}
	return s.transition(ctx, caller, serial, "registry.ecil_return",
		returnableTypes, custody.Returnable, entities.StatusReturnedECIL, fields)
}

// transition applies a single-component status change. A nil types accepts
// every component type.
func (s *Service) transition(ctx context.Context, caller custody.Caller, serial, action string,
	types []entities.ComponentType, from []entities.ComponentStatus, to entities.ComponentStatus, fields map[string]any,
) (*entities.Component, error) {
	store := s.deps.Store

	c, err := store.Components.GetBySerial(ctx, serial)
	if err != nil {
		return nil, custody.LookupError(component, serial, err)
	}
	if types != nil && !slices.Contains(types, c.Type) {
		return nil, errors.WrongType(component, serial, joinTypes(types), string(c.Type))
	}
	if c.Status == to {
		return nil, errors.AlreadyInState(component, serial, string(to))
	}
	if !c.OwnedBy(caller.UserID) {
		return nil, errors.NotOwner(component, serial, caller.UserID)
	}
	if !custody.In(c.Status, from) {
		return nil, errors.NotAvailable(component, serial, string(c.Status))
	}

	err = store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Components.TransitionStatus(ctx, []uint{c.ID}, []entities.ComponentStatus{c.Status}, to, fields)
		if errors.Is(err, repository.ErrStaleState) {
			return errors.NotAvailable(component, serial, string(c.Status))
		}
		return err
	})
	if err != nil {
		return nil, custody.TxError(component, action, err)
	}

	updated, err := store.Components.GetBySerial(ctx, serial)
	if err != nil {
		return nil, custody.LookupError(component, serial, err)
	}
	audit := s.deps.Audit.Begin(ctx, caller.UserID, action)
	audit.Add(entities.KindComponent, updated.ID, updated)
	s.deps.Audit.Commit(ctx, audit)
	s.deps.Metrics.RecordTransitions(string(to), 1)

	s.log.WithContext(ctx).Info("component transitioned",
		logger.String("serial", serial),
		logger.String("from", string(c.Status)),
		logger.String("to", string(to)))
	return updated, nil
}

func joinTypes(types []entities.ComponentType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, "/")
}
