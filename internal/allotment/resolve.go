package allotment

import (
	"context"
	"time"

	"github.com/evmtrack/evmtrack/internal/auditlog"
	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// Approve accepts a pending allotment. The approver must be a user with a
// warehouse. Every listed component and every component sharing a pairing
// with one of them moves to the recipient and the approver's warehouse;
// listed components leave transit as FLC_Passed. Temporary allotments keep
// their current custodian.
func (s *Service) Approve(ctx context.Context, caller custody.Caller, id uint) (a *entities.Allotment, err error) {
	defer s.observe("approve", time.Now(), &err)
	store := s.deps.Store
	log := s.log.WithContext(ctx)

	approver, err := store.Directory.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, custody.LookupError(component, "approver", err)
	}
	if approver.WarehouseID == nil {
		return nil, errors.ValidationError("approver has no warehouse assignment")
	}

	a, err = store.Allotments.Get(ctx, id)
	if err != nil {
		return nil, custody.LookupError(component, "allotment", err)
	}
	if a.Status != entities.AllotmentPending {
		return nil, errors.InvalidState(component, "allotment %d is already %s", a.ID, a.Status)
	}

	nominal := componentsOf(a)
	all, siblings, err := custody.ResolvePairingSet(ctx, store.Components, nominal)
	if err != nil {
		return nil, errors.Database(component, "resolve pairing set", err)
	}

	now := s.deps.Clock()
	move := map[string]any{
		"current_warehouse_id":  *approver.WarehouseID,
		"last_received_from_id": a.FromUserID,
		"date_of_receipt":       now,
	}
	if !a.Temporary && a.ToUserID != nil {
		move["current_user_id"] = *a.ToUserID
	}

	err = store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Allotments.Resolve(ctx, a.ID, entities.AllotmentPending, map[string]any{
			"status":         entities.AllotmentApproved,
			"approved_by_id": caller.UserID,
			"approved_at":    now,
		})
		if errors.Is(err, repository.ErrStaleState) {
			return errors.InvalidState(component, "allotment %d was resolved concurrently", a.ID)
		}
		if err != nil {
			return err
		}
		err = tx.Components.TransitionStatus(ctx, itemIDs(a), []entities.ComponentStatus{entities.StatusInTransit}, entities.StatusFLCPassed, move)
		if errors.Is(err, repository.ErrStaleState) {
			return errors.InvalidState(component, "components of allotment %d are no longer in transit", a.ID)
		}
		if err != nil {
			return err
		}
		return tx.Components.UpdateFields(ctx, custody.IDs(siblings), move)
	})
	if err != nil {
		return nil, custody.TxError(component, "approve", err)
	}

	a, err = store.Allotments.Get(ctx, id)
	if err != nil {
		return nil, errors.Database(component, "reload", err)
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "allotment.approved")
	s.auditAllotment(audit, a)
	if components, err := store.Components.GetByIDs(ctx, custody.IDs(all)); err == nil {
		audit.AddComponents(components)
	} else {
		log.Warn("audit snapshot reload failed", logger.Error(err))
	}
	s.deps.Audit.Commit(ctx, audit)

	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCPassed), len(a.Items))

	log.Info("allotment approved",
		logger.Uint64("allotment_id", uint64(a.ID)),
		logger.Int("components", len(nominal)),
		logger.Int("pairing_siblings", len(siblings)),
		logger.Uint64("approver_id", uint64(caller.UserID)))
	return a, nil
}

// Reject declines a pending allotment and records the reason. Components stay
// in transit unless the service was configured to revert them on reject.
func (s *Service) Reject(ctx context.Context, caller custody.Caller, id uint, reason string) (a *entities.Allotment, err error) {
	defer s.observe("reject", time.Now(), &err)
	store := s.deps.Store
	log := s.log.WithContext(ctx)

	a, err = store.Allotments.Get(ctx, id)
	if err != nil {
		return nil, custody.LookupError(component, "allotment", err)
	}
	if a.Status != entities.AllotmentPending {
		return nil, errors.InvalidState(component, "allotment %d is already %s", a.ID, a.Status)
	}

	now := s.deps.Clock()
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		err := tx.Allotments.Resolve(ctx, a.ID, entities.AllotmentPending, map[string]any{
			"status":           entities.AllotmentRejected,
			"approved_by_id":   caller.UserID,
			"approved_at":      now,
			"rejection_reason": reason,
		})
		if errors.Is(err, repository.ErrStaleState) {
			return errors.InvalidState(component, "allotment %d was resolved concurrently", a.ID)
		}
		if err != nil || !s.opts.RevertOnReject {
			return err
		}
		for prior, ids := range byPriorStatus(a) {
			err := tx.Components.TransitionStatus(ctx, ids, []entities.ComponentStatus{entities.StatusInTransit}, prior, nil)
			if errors.Is(err, repository.ErrStaleState) {
				return errors.InvalidState(component, "components of allotment %d are no longer in transit", a.ID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, custody.TxError(component, "reject", err)
	}

	a, err = store.Allotments.Get(ctx, id)
	if err != nil {
		return nil, errors.Database(component, "reload", err)
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "allotment.rejected")
	s.auditAllotment(audit, a)
	if s.opts.RevertOnReject {
		audit.AddComponents(componentsOf(a))
	}
	s.deps.Audit.Commit(ctx, audit)

	log.Info("allotment rejected",
		logger.Uint64("allotment_id", uint64(a.ID)),
		logger.Bool("reverted", s.opts.RevertOnReject),
		logger.Uint64("approver_id", uint64(caller.UserID)))
	return a, nil
}

func itemIDs(a *entities.Allotment) []uint {
	ids := make([]uint, 0, len(a.Items))
	for i := range a.Items {
		ids = append(ids, a.Items[i].ComponentID)
	}
	return ids
}

// byPriorStatus groups the allotment's component ids by the status they had
// before going in transit. Only a reverted rejection uses it.
func byPriorStatus(a *entities.Allotment) map[entities.ComponentStatus][]uint {
	out := make(map[entities.ComponentStatus][]uint)
	for i := range a.Items {
		it := &a.Items[i]
		prior := it.PriorStatus
		if prior == "" {
			prior = entities.StatusFLCPassed
		}
		out[prior] = append(out[prior], it.ComponentID)
	}
	return out
}

// auditAllotment snapshots the allotment row and each of its items.
func (s *Service) auditAllotment(b *auditlog.Batch, a *entities.Allotment) {
	head := *a
	head.Items = nil
	b.Add(entities.KindAllotment, a.ID, &head)
	for i := range a.Items {
		it := a.Items[i]
		it.Component = nil
		b.Add(entities.KindAllotmentItem, it.ID, &it)
	}
}
