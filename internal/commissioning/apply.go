package commissioning

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

// Commission binds each row's pairing to its polling station and attaches the
// row's BUs and BU pink paper seals, moving the whole pairing to polling.
// Afterwards every remaining component the caller holds in FLC_Pending or
// FLC_Passed that is not bound to a station is set aside as reserve.
func (s *Service) Commission(ctx context.Context, caller custody.Caller, req Request) (result *Result, err error) {
	defer s.observe("commission", time.Now(), &err)

	if len(req.Rows) == 0 {
		return nil, errors.ValidationError("at least one row is required")
	}
	lb, err := s.localBody(ctx, req.LocalBodyID)
	if err != nil {
		return nil, err
	}
	plans, err := s.validate(ctx, caller, lb, req.Rows, regular)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, caller, lb, plans, true)
}

// ReserveRequest commissions one reserve CU with reserve BUs.
type ReserveRequest struct {
	LocalBodyID uint `json:"local_body_id"`
	Row
}

// CommissionReserve puts a reserve CU and reserve BUs into service at a
// polling station. The station may already hold an EVM being replaced.
func (s *Service) CommissionReserve(ctx context.Context, caller custody.Caller, req ReserveRequest) (result *Result, err error) {
	defer s.observe("reserve", time.Now(), &err)

	lb, err := s.localBody(ctx, req.LocalBodyID)
	if err != nil {
		return nil, err
	}
	plans, err := s.validate(ctx, caller, lb, []Row{req.Row}, reserve)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, caller, lb, plans, false)
}

func (s *Service) apply(ctx context.Context, caller custody.Caller, lb *entities.LocalBody, plans []*plan, markReserve bool) (*Result, error) {
	store := s.deps.Store
	log := s.log.WithContext(ctx)

	user, err := store.Directory.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, custody.LookupError(component, "caller", err)
	}
	now := s.deps.Clock()

	var reserved []entities.Component
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		for _, p := range plans {
			pid := p.ext.Pairing.ID
			err := tx.Pairings.Commission(ctx, pid, p.row.EVMNo, p.station.ID, caller.UserID, now)
			if errors.Is(err, repository.ErrStaleState) {
				return errors.InvalidState(component, "pairing of CU %s was commissioned concurrently", p.row.CUSerial)
			}
			if err != nil {
				return err
			}

			err = tx.Components.TransitionStatus(ctx, []uint{p.cu.ID}, p.cuFrom, entities.StatusPolling, nil)
			if errors.Is(err, repository.ErrStaleState) {
				return errors.NotAvailable(component, p.row.CUSerial, string(p.cu.Status))
			}
			if err != nil {
				return err
			}

			if _, err := p.ext.Attach(ctx, tx, entities.StatusPolling, user.WarehouseID, now); err != nil {
				return err
			}

			members, err := tx.Components.ListByPairings(ctx, []uint{pid})
			if err != nil {
				return err
			}
			var cascade []uint
			for i := range members {
				switch members[i].Type {
				case entities.TypeDMM, entities.TypeDMMSeal, entities.TypePinkPaperSeal:
					cascade = append(cascade, members[i].ID)
				}
			}
			if err := tx.Components.UpdateFields(ctx, cascade, map[string]any{"status": entities.StatusPolling}); err != nil {
				return err
			}
		}

		if !markReserve {
			return nil
		}
		spare, err := tx.Components.ListReservable(ctx, caller.UserID, custody.Reservable)
		if err != nil {
			return err
		}
		if err := tx.Components.TransitionStatus(ctx, custody.IDs(spare), custody.Reservable, entities.StatusReserve, nil); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return errors.InvalidState(component, "stock changed while marking reserve")
			}
			return err
		}
		reserved = spare
		return nil
	})
	if err != nil {
		return nil, custody.TxError(component, "commission", err)
	}

	pairingIDs := make([]uint, 0, len(plans))
	for _, p := range plans {
		pairingIDs = append(pairingIDs, p.ext.Pairing.ID)
	}
	result := &Result{}
	byID, err := store.Pairings.GetByIDs(ctx, pairingIDs)
	if err != nil {
		return nil, errors.Database(component, "reload pairings", err)
	}
	for _, id := range pairingIDs {
		if pr, ok := byID[id]; ok {
			result.Pairings = append(result.Pairings, *pr)
		}
	}
	for i := range reserved {
		result.Reserved = append(result.Reserved, reserved[i].Serial)
	}

	members, err := store.Components.ListByPairings(ctx, pairingIDs)
	if err != nil {
		log.Warn("pairing member reload failed", logger.Error(err))
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "commissioning.commission")
	for i := range result.Pairings {
		audit.Add(entities.KindPairing, result.Pairings[i].ID, &result.Pairings[i])
	}
	audit.AddComponents(members)
	if len(reserved) > 0 {
		if snap, err := store.Components.GetByIDs(ctx, custody.IDs(reserved)); err == nil {
			for i := range snap {
				audit.AddAction(entities.KindComponent, snap[i].ID, "commissioning.reserve", &snap[i])
			}
		} else {
			log.Warn("audit snapshot reload failed", logger.Error(err))
		}
	}
	s.deps.Audit.Commit(ctx, audit)

	s.deps.Metrics.RecordTransitions(string(entities.StatusPolling), len(members))
	s.deps.Metrics.RecordTransitions(string(entities.StatusReserve), len(reserved))

	log.Info("EVMs commissioned",
		logger.String("local_body", lb.Name),
		logger.Int("evms", len(plans)),
		logger.Int("reserved", len(reserved)),
		logger.Uint64("user_id", uint64(caller.UserID)))

	result.Report = s.deps.Render(ctx, s.distribution(ctx, lb, plans, members, now))
	return result, nil
}

// distribution builds the Annexure-8 statement for the committed rows.
func (s *Service) distribution(ctx context.Context, lb *entities.LocalBody, plans []*plan, members []entities.Component, now time.Time) *report.Document {
	byPairing := make(map[uint][]entities.Component)
	for i := range members {
		if pid := members[i].PairingID; pid != nil {
			byPairing[*pid] = append(byPairing[*pid], members[i])
		}
	}
	rows := make([]report.DistributionRow, 0, len(plans))
	for _, p := range plans {
		row := report.DistributionRow{
			PSNo:    p.station.Number,
			PSName:  p.station.Name,
			EVMID:   p.row.EVMNo,
			CU:      p.row.CUSerial,
			BUs:     p.row.BUSerials,
			BUSeals: p.row.BUPinkSeals,
		}
		for _, c := range byPairing[p.ext.Pairing.ID] {
			switch c.Type {
			case entities.TypeDMM:
				row.DMM = c.Serial
			case entities.TypeDMMSeal:
				row.DMMSeal = c.Serial
			case entities.TypePinkPaperSeal:
				row.PinkPaperSeal = c.Serial
			}
		}
		rows = append(rows, row)
	}
	district := s.deps.Names.District(ctx, &lb.DistrictID)
	return report.Distribution(district, lb.Name, now, rows)
}
