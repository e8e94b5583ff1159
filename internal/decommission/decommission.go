// Package decommission moves commissioned EVMs through polling and counting
// and tears them back down into reusable components afterwards.
package decommission

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

const component = "decommission"

// Service implements status progression and decommissioning.
type Service struct {
	deps *custody.Deps
	log  logger.Logger
}

// NewService creates a decommission service.
func NewService(deps *custody.Deps) *Service {
	return &Service{deps: deps, log: deps.Log.Module(component)}
}

// next is the allowed bulk status progression.
var next = map[entities.ComponentStatus]entities.ComponentStatus{
	entities.StatusPolling: entities.StatusPolled,
	entities.StatusPolled:  entities.StatusCounted,
}

// AdvanceResult lists the components that moved.
type AdvanceResult struct {
	From    entities.ComponentStatus `json:"from"`
	To      entities.ComponentStatus `json:"to"`
	Serials []string                 `json:"serials"`
}

// Advance moves every component in status from that belongs to an EVM at an
// approved polling station of the local body one step on: polling to polled,
// or polled to counted.
func (s *Service) Advance(ctx context.Context, caller custody.Caller, localBodyID uint, from entities.ComponentStatus) (result *AdvanceResult, err error) {
	defer s.deps.Observe("decommission.advance", time.Now(), &err)
	store := s.deps.Store

	to, ok := next[from]
	if !ok {
		return nil, errors.ValidationError("status can only advance from polling or polled")
	}
	if _, err := store.Directory.GetLocalBody(ctx, localBodyID); err != nil {
		return nil, custody.LookupError(component, "local body", err)
	}
	stations, err := store.Directory.ApprovedStationIDs(ctx, localBodyID)
	if err != nil {
		return nil, errors.Database(component, "approved stations", err)
	}

	var moved []entities.Component
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		found, err := tx.Components.ListInStations(ctx, stations, from)
		if err != nil {
			return err
		}
		if err := tx.Components.TransitionStatus(ctx, custody.IDs(found), []entities.ComponentStatus{from}, to, nil); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return errors.InvalidState(component, "components changed status concurrently")
			}
			return err
		}
		moved = found
		return nil
	})
	if err != nil {
		return nil, custody.TxError(component, "advance", err)
	}

	result = &AdvanceResult{From: from, To: to, Serials: make([]string, 0, len(moved))}
	for i := range moved {
		moved[i].Status = to
		result.Serials = append(result.Serials, moved[i].Serial)
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "decommission.advance")
	audit.AddComponents(moved)
	s.deps.Audit.Commit(ctx, audit)
	s.deps.Metrics.RecordTransitions(string(to), len(moved))

	s.log.WithContext(ctx).Info("component status advanced",
		logger.Uint64("local_body_id", uint64(localBodyID)),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.Int("components", len(moved)))
	return result, nil
}

// Result summarises a decommissioning batch.
type Result struct {
	EVMs         []string `json:"evms"`
	Released     []string `json:"released"`
	Treasury     []string `json:"treasury"`
	DeletedSeals []string `json:"deleted_seals"`
}

// Decommission resolves every EVM id within the local body, checks that the CU
// and DMM of each are counted, and only then, in one transaction, deletes the
// FLC records and seals, sends DMMs to treasury, releases CUs and BUs to
// FLC_Pending and deletes the pairings. The state before mutation is written to
// the audit log after commit.
func (s *Service) Decommission(ctx context.Context, caller custody.Caller, localBodyID uint, evmIDs []string) (result *Result, err error) {
	defer s.deps.Observe("decommission.decommission", time.Now(), &err)
	store := s.deps.Store
	log := s.log.WithContext(ctx)

	if len(evmIDs) == 0 {
		return nil, errors.ValidationError("at least one EVM id is required")
	}
	seen := make(map[string]bool, len(evmIDs))
	for _, id := range evmIDs {
		if seen[id] {
			return nil, errors.ValidationError("EVM " + id + " is listed twice")
		}
		seen[id] = true
	}
	if _, err := store.Directory.GetLocalBody(ctx, localBodyID); err != nil {
		return nil, custody.LookupError(component, "local body", err)
	}

	pairings, err := store.Pairings.GetByEVMIDs(ctx, localBodyID, evmIDs)
	if err != nil {
		return nil, errors.Database(component, "resolve EVMs", err)
	}
	if len(pairings) != len(evmIDs) {
		var missing []string
		for _, id := range evmIDs {
			if _, ok := pairings[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, errors.NotFound(component, "EVMs not found in local body: %s", strings.Join(missing, ", "))
	}

	pairingIDs := make([]uint, 0, len(evmIDs))
	for _, id := range evmIDs {
		pairingIDs = append(pairingIDs, pairings[id].ID)
	}
	members, err := store.Components.ListByPairings(ctx, pairingIDs)
	if err != nil {
		return nil, errors.Database(component, "load EVM members", err)
	}
	byPairing := make(map[uint][]entities.Component, len(pairingIDs))
	for i := range members {
		byPairing[*members[i].PairingID] = append(byPairing[*members[i].PairingID], members[i])
	}

	for _, id := range evmIDs {
		if err := checkCounted(id, byPairing[pairings[id].ID]); err != nil {
			return nil, err
		}
	}

	ids := custody.IDs(members)
	cuRecords, err := store.FLC.ListCUByComponents(ctx, ids)
	if err != nil {
		return nil, errors.Database(component, "load FLC records", err)
	}
	buRecords, err := store.FLC.ListBUByComponents(ctx, ids)
	if err != nil {
		return nil, errors.Database(component, "load FLC records", err)
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "decommission.before")
	for _, id := range evmIDs {
		audit.Add(entities.KindPairing, pairings[id].ID, pairings[id])
	}
	audit.AddComponents(members)
	for i := range cuRecords {
		audit.Add(entities.KindFLCRecord, cuRecords[i].ID, &cuRecords[i])
	}
	for i := range buRecords {
		audit.Add(entities.KindFLCBallotUnit, buRecords[i].ID, &buRecords[i])
	}

	result = &Result{EVMs: evmIDs}
	var seals, dmms, units, countedUnits []uint
	for i := range members {
		c := &members[i]
		switch c.Type {
		case entities.TypeDMMSeal, entities.TypePinkPaperSeal, entities.TypeBUPinkPaperSeal:
			seals = append(seals, c.ID)
			result.DeletedSeals = append(result.DeletedSeals, c.Serial)
		case entities.TypeDMM:
			dmms = append(dmms, c.ID)
			result.Treasury = append(result.Treasury, c.Serial)
		case entities.TypeCU:
			countedUnits = append(countedUnits, c.ID)
			result.Released = append(result.Released, c.Serial)
		default:
			units = append(units, c.ID)
			result.Released = append(result.Released, c.Serial)
		}
	}

	counted := []entities.ComponentStatus{entities.StatusCounted}
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.FLC.DeleteByComponents(ctx, ids); err != nil {
			return err
		}
		if err := tx.Components.Delete(ctx, seals); err != nil {
			return err
		}
		err := tx.Components.TransitionStatus(ctx, dmms, counted, entities.StatusTreasury, map[string]any{
			"current_user_id":      nil,
			"current_warehouse_id": nil,
			"pairing_id":           nil,
		})
		if err != nil {
			return stale(err)
		}
		release := map[string]any{"pairing_id": nil}
		if err := tx.Components.TransitionStatus(ctx, countedUnits, counted, entities.StatusFLCPending, release); err != nil {
			return stale(err)
		}
		if err := tx.Components.UpdateFields(ctx, units, map[string]any{"pairing_id": nil, "status": entities.StatusFLCPending}); err != nil {
			return err
		}
		return tx.Pairings.Delete(ctx, pairingIDs)
	})
	if err != nil {
		return nil, custody.TxError(component, "decommission", err)
	}

	if after, err := store.Components.GetByIDs(ctx, slices.Concat(dmms, countedUnits, units)); err == nil {
		for i := range after {
			audit.AddAction(entities.KindComponent, after[i].ID, "decommission.after", &after[i])
		}
	} else {
		log.Warn("audit snapshot reload failed", logger.Error(err))
	}
	s.deps.Audit.Commit(ctx, audit)

	s.deps.Metrics.RecordTransitions(string(entities.StatusTreasury), len(dmms))
	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCPending), len(countedUnits)+len(units))

	log.Info("EVMs decommissioned",
		logger.Uint64("local_body_id", uint64(localBodyID)),
		logger.Strings("evm_ids", evmIDs),
		logger.Int("seals_deleted", len(seals)),
		logger.Int("flc_records_deleted", len(cuRecords)+len(buRecords)),
		logger.Uint64("user_id", uint64(caller.UserID)))
	return result, nil
}

func stale(err error) error {
	if errors.Is(err, repository.ErrStaleState) {
		return errors.InvalidState(component, "EVM components changed status concurrently")
	}
	return err
}

// checkCounted requires the EVM to still hold both its CU and its DMM, each
// counted.
func checkCounted(evmID string, members []entities.Component) error {
	for _, typ := range []entities.ComponentType{entities.TypeCU, entities.TypeDMM} {
		i := slices.IndexFunc(members, func(c entities.Component) bool { return c.Type == typ })
		if i < 0 {
			return errors.Newf("EVM %s is not counted: no %s is paired", evmID, typ).
				Component(component).
				Category(errors.CategoryNotAvailable).
				Context("evm_id", evmID).
				Build()
		}
		if c := members[i]; c.Status != entities.StatusCounted {
			return errors.Newf("EVM %s is not counted: %s %s is %s", evmID, c.Type, c.Serial, c.Status).
				Component(component).
				Category(errors.CategoryNotAvailable).
				Context("evm_id", evmID).
				Context("serial", c.Serial).
				Context("status", string(c.Status)).
				Build()
		}
	}
	return nil
}
