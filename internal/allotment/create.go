package allotment

import (
	"context"
	"slices"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// resolvedItem is a request item checked against the registry.
type resolvedItem struct {
	item      Item
	comp      *entities.Component
	prior     entities.ComponentStatus
	fromDraft bool
}

// Stage records a draft allotment. It validates exactly like Create and puts
// the components in transit, but the draft is not offered for approval and
// no receipt is produced.
func (s *Service) Stage(ctx context.Context, caller custody.Caller, req Request) (result *Result, err error) {
	defer s.observe("stage", time.Now(), &err)
	req.DraftID = nil
	return s.propose(ctx, caller, req, entities.AllotmentDraft)
}

// Create proposes a custody transfer. Every component must exist, be held by
// the caller and be available; the first offending serial fails the request.
// The components go in transit until the allotment is approved or rejected.
// With a DraftID, components staged in the draft may be carried over; those
// left out are released to their prior status and the draft is deleted.
func (s *Service) Create(ctx context.Context, caller custody.Caller, req Request) (result *Result, err error) {
	defer s.observe("create", time.Now(), &err)
	return s.propose(ctx, caller, req, entities.AllotmentPending)
}

func (s *Service) propose(ctx context.Context, caller custody.Caller, req Request, status entities.AllotmentStatus) (*Result, error) {
	store := s.deps.Store
	log := s.log.WithContext(ctx)

	if err := checkShape(&req); err != nil {
		return nil, err
	}

	var draft *entities.Allotment
	staged := make(map[uint]*entities.AllotmentItem)
	if req.DraftID != nil {
		d, err := store.Allotments.Get(ctx, *req.DraftID)
		if err != nil {
			return nil, custody.LookupError(component, "draft", err)
		}
		if d.Status != entities.AllotmentDraft {
			return nil, errors.InvalidState(component, "allotment %d is %s, not a draft", d.ID, d.Status)
		}
		if d.InitiatedByID != caller.UserID {
			return nil, errors.InvalidState(component, "draft %d belongs to another user", d.ID)
		}
		draft = d
		for i := range d.Items {
			staged[d.Items[i].ComponentID] = &d.Items[i]
		}
	}

	if req.ToUserID != nil {
		if _, err := store.Directory.GetUser(ctx, *req.ToUserID); err != nil {
			return nil, custody.LookupError(component, "recipient", err)
		}
	}
	if req.OriginalAllotmentID != nil {
		if _, err := store.Allotments.Get(ctx, *req.OriginalAllotmentID); err != nil {
			return nil, custody.LookupError(component, "original allotment", err)
		}
	}

	serials := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		serials = append(serials, it.Serial)
	}
	found, err := store.Components.GetBySerials(ctx, serials)
	if err != nil {
		return nil, errors.Database(component, "lookup serials", err)
	}

	items := make([]resolvedItem, 0, len(req.Items))
	for _, it := range req.Items {
		c, ok := found[it.Serial]
		if !ok {
			return nil, errors.NotFound(component, "component %s not found", it.Serial)
		}
		if !c.OwnedBy(caller.UserID) {
			return nil, errors.NotOwner(component, it.Serial, caller.UserID)
		}
		ri := resolvedItem{item: it, comp: c, prior: c.Status}
		if st, ok := staged[c.ID]; ok && c.Status == entities.StatusInTransit {
			ri.prior = st.PriorStatus
			ri.fromDraft = true
		} else if custody.In(c.Status, custody.Unavailable) {
			return nil, errors.NotAvailable(component, it.Serial, string(c.Status))
		}
		items = append(items, ri)
	}

	now := s.deps.Clock()
	a := &entities.Allotment{
		Type:                req.Type,
		Status:              status,
		FromUserID:          caller.UserID,
		ToUserID:            req.ToUserID,
		FromDistrictID:      req.FromDistrictID,
		ToDistrictID:        req.ToDistrictID,
		FromLocalBodyID:     req.FromLocalBodyID,
		ToLocalBodyID:       req.ToLocalBodyID,
		Temporary:           req.Temporary(),
		TemporaryName:       req.TemporaryName,
		TemporaryReason:     req.TemporaryReason,
		OriginalAllotmentID: req.OriginalAllotmentID,
		OrderNo:             req.OrderNo,
		InitiatedByID:       caller.UserID,
		InitiatedAt:         now,
	}
	var fresh, carried []uint
	for _, ri := range items {
		a.Items = append(a.Items, entities.AllotmentItem{
			ComponentID: ri.comp.ID,
			Remarks:     ri.item.Remarks,
			PriorStatus: ri.prior,
		})
		if ri.fromDraft {
			carried = append(carried, ri.comp.ID)
			delete(staged, ri.comp.ID)
		} else {
			fresh = append(fresh, ri.comp.ID)
		}
	}

	stamp := map[string]any{"last_received_from_id": caller.UserID, "date_of_receipt": now}
	result := &Result{}
	var released []uint
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		if draft != nil {
			ids, err := release(ctx, tx, staged)
			if err != nil {
				return err
			}
			released = ids
			if err := tx.Allotments.Delete(ctx, draft.ID); err != nil {
				return err
			}
		}

		if err := tx.Components.TransitionStatus(ctx, fresh, custody.Allotable(), entities.StatusInTransit, stamp); err != nil {
			return raced(err, items)
		}
		if err := tx.Components.TransitionStatus(ctx, carried, []entities.ComponentStatus{entities.StatusInTransit}, entities.StatusInTransit, stamp); err != nil {
			return raced(err, items)
		}
		return tx.Allotments.Create(ctx, a)
	})
	if err != nil {
		return nil, custody.TxError(component, "create", err)
	}

	result.Allotment, err = store.Allotments.Get(ctx, a.ID)
	if err != nil {
		return nil, errors.Database(component, "reload", err)
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "allotment."+string(status))
	s.auditAllotment(audit, result.Allotment)
	touched := append(custody.IDs(componentsOf(result.Allotment)), released...)
	if components, err := store.Components.GetByIDs(ctx, touched); err == nil {
		audit.AddComponents(components)
		for i := range components {
			if slices.Contains(released, components[i].ID) {
				result.Released = append(result.Released, components[i].Serial)
			}
		}
	} else {
		log.Warn("audit snapshot reload failed", logger.Error(err))
	}
	if draft != nil {
		audit.AddAction(entities.KindAllotment, draft.ID, "allotment.draft_finalised", draft)
	}
	s.deps.Audit.Commit(ctx, audit)

	s.deps.Metrics.RecordTransitions(string(entities.StatusInTransit), len(fresh))

	log.Info("allotment proposed",
		logger.Uint64("allotment_id", uint64(a.ID)),
		logger.String("type", string(a.Type)),
		logger.String("status", string(status)),
		logger.Int("components", len(items)),
		logger.Int("released", len(released)),
		logger.Uint64("user_id", uint64(caller.UserID)))

	if status == entities.AllotmentPending {
		result.Report = s.deps.Render(ctx, s.receipt(ctx, result.Allotment))
	}
	return result, nil
}

// release hands components left out of a finalised draft back to the
// sender as FLC_Passed.
func release(ctx context.Context, tx *repository.Store, leftover map[uint]*entities.AllotmentItem) ([]uint, error) {
	ids := make([]uint, 0, len(leftover))
	for id := range leftover {
		ids = append(ids, id)
	}
	err := tx.Components.TransitionStatus(ctx, ids, []entities.ComponentStatus{entities.StatusInTransit}, entities.StatusFLCPassed, nil)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, errors.InvalidState(component, "staged components changed since the draft was recorded")
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// raced turns a lost conditional update into a not-available error naming the
// first requested component.
func raced(err error, items []resolvedItem) error {
	if errors.Is(err, repository.ErrStaleState) && len(items) > 0 {
		return errors.NotAvailable(component, items[0].item.Serial, "changed concurrently")
	}
	return err
}

func componentsOf(a *entities.Allotment) []entities.Component {
	out := make([]entities.Component, 0, len(a.Items))
	for i := range a.Items {
		if c := a.Items[i].Component; c != nil {
			out = append(out, *c)
		}
	}
	return out
}
