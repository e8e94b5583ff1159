// Package commissioning binds certified pairings and their ballot units to
// polling stations. A batch is validated in full before anything is written;
// one bad row rejects the whole batch with every row message.
package commissioning

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/pairing"
)

const component = "commissioning"

// Service implements commissioning and reserve commissioning.
type Service struct {
	deps *custody.Deps
	log  logger.Logger
}

// NewService creates a commissioning service.
func NewService(deps *custody.Deps) *Service {
	return &Service{deps: deps, log: deps.Log.Module(component)}
}

// Row commissions one EVM.
type Row struct {
	EVMNo       string   `json:"evm_no"`
	CUSerial    string   `json:"cu_serial"`
	BUSerials   []string `json:"bu_serials"`
	BUPinkSeals []string `json:"bu_pink_paper_seals"`
	PSNo        string   `json:"ps_no"`
}

// Request is a commissioning batch within one local body.
type Request struct {
	LocalBodyID uint  `json:"local_body_id"`
	Rows        []Row `json:"rows"`
}

// Result is a committed commissioning batch.
type Result struct {
	Pairings []entities.PairingRecord `json:"pairings"`
	// Reserved lists the serials set aside as reserve after the batch.
	Reserved []string          `json:"reserved"`
	Report   *custody.Rendered `json:"-"`
}

// mode captures how the regular and reserve entry points differ.
type mode struct {
	cuStatuses  []entities.ComponentStatus
	buStatuses  []entities.ComponentStatus
	allowFilled bool
}

var (
	regular = mode{
		cuStatuses: custody.Commissionable,
		buStatuses: custody.Commissionable,
	}
	reserve = mode{
		cuStatuses:  []entities.ComponentStatus{entities.StatusReserve},
		buStatuses:  []entities.ComponentStatus{entities.StatusReserve},
		allowFilled: true,
	}
)

// plan is a validated row ready for the mutating phase.
type plan struct {
	row     Row
	station *entities.PollingStation
	cu      *entities.Component
	cuFrom  []entities.ComponentStatus
	ext     *pairing.Extension
}

// validate resolves and checks every row without mutating anything. All row
// failures are collected into one batch error.
func (s *Service) validate(ctx context.Context, caller custody.Caller, lb *entities.LocalBody, rows []Row, m mode) ([]*plan, error) {
	store := s.deps.Store

	var numbers []int
	var serials, evmIDs []string
	for _, r := range rows {
		if n, err := strconv.Atoi(strings.TrimSpace(r.PSNo)); err == nil {
			numbers = append(numbers, n)
		}
		serials = append(serials, r.CUSerial)
		serials = append(serials, r.BUSerials...)
		serials = append(serials, r.BUPinkSeals...)
		evmIDs = append(evmIDs, r.EVMNo)
	}

	stations, err := store.Directory.GetPollingStations(ctx, lb.ID, numbers)
	if err != nil {
		return nil, errors.Database(component, "lookup polling stations", err)
	}
	stationIDs := make([]uint, 0, len(stations))
	for _, ps := range stations {
		stationIDs = append(stationIDs, ps.ID)
	}
	filled, err := store.Pairings.StationsFilled(ctx, stationIDs)
	if err != nil {
		return nil, errors.Database(component, "check stations", err)
	}
	found, err := store.Components.GetBySerials(ctx, serials)
	if err != nil {
		return nil, errors.Database(component, "lookup serials", err)
	}
	var pairingIDs []uint
	for _, r := range rows {
		if c, ok := found[r.CUSerial]; ok && c.PairingID != nil {
			pairingIDs = append(pairingIDs, *c.PairingID)
		}
	}
	pairings, err := store.Pairings.GetByIDs(ctx, pairingIDs)
	if err != nil {
		return nil, errors.Database(component, "lookup pairings", err)
	}
	taken, err := store.Pairings.ExistingEVMIDs(ctx, evmIDs)
	if err != nil {
		return nil, errors.Database(component, "check EVM ids", err)
	}
	evmTaken := make(map[string]bool, len(taken))
	for _, id := range taken {
		evmTaken[id] = true
	}

	batch := errors.NewBatch("commissioning")
	usedEVM := make(map[string]int)
	usedStation := make(map[uint]int)
	usedSerial := make(map[string]int)
	plans := make([]*plan, 0, len(rows))

	for i, r := range rows {
		n := i + 1
		p := &plan{row: r}

		switch {
		case strings.TrimSpace(r.EVMNo) == "":
			batch.AddRow(n, "EVM number is required")
		case evmTaken[r.EVMNo]:
			batch.AddRow(n, "EVM number %s is already assigned", r.EVMNo)
		case usedEVM[r.EVMNo] > 0:
			batch.AddRow(n, "EVM number %s already used in row %d", r.EVMNo, usedEVM[r.EVMNo])
		}
		usedEVM[r.EVMNo] = n

		if num, err := strconv.Atoi(strings.TrimSpace(r.PSNo)); err != nil {
			batch.AddRow(n, "polling station number %q is not a number", r.PSNo)
		} else if ps, ok := stations[num]; !ok {
			batch.AddRow(n, "polling station %d not found in %s", num, lb.Name)
		} else if filled[ps.ID] && !m.allowFilled {
			batch.AddRow(n, "polling station %d already has an EVM", num)
		} else if prev := usedStation[ps.ID]; prev > 0 {
			batch.AddRow(n, "polling station %d already used in row %d", num, prev)
		} else {
			usedStation[ps.ID] = n
			p.station = ps
		}

		for _, serial := range append(append([]string{r.CUSerial}, r.BUSerials...), r.BUPinkSeals...) {
			if prev := usedSerial[serial]; prev > 0 && prev != n {
				batch.AddRow(n, "serial %s already used in row %d", serial, prev)
			}
			usedSerial[serial] = n
		}

		cu, ok := found[r.CUSerial]
		switch {
		case !ok:
			batch.AddRow(n, "CU %s not found", r.CUSerial)
			cu = nil
		case cu.Type != entities.TypeCU:
			batch.AddRow(n, "component %s is %s, expected %s", r.CUSerial, cu.Type, entities.TypeCU)
			cu = nil
		case !cu.OwnedBy(caller.UserID):
			batch.AddRow(n, "CU %s is not held by user %d", r.CUSerial, caller.UserID)
			cu = nil
		case !custody.In(cu.Status, m.cuStatuses):
			batch.AddRow(n, "CU %s is not available (status %s)", r.CUSerial, cu.Status)
			cu = nil
		case cu.PairingID == nil:
			batch.AddRow(n, "CU %s has no pairing; run the first level check first", r.CUSerial)
			cu = nil
		}
		if cu == nil {
			plans = append(plans, p)
			continue
		}
		p.cu = cu
		p.cuFrom = m.cuStatuses

		pr, ok := pairings[*cu.PairingID]
		if !ok {
			batch.AddRow(n, "pairing of CU %s not found", r.CUSerial)
			plans = append(plans, p)
			continue
		}
		p.ext = &pairing.Extension{
			Pairing:     pr,
			Owner:       caller.UserID,
			BUStatuses:  m.buStatuses,
			BUSerials:   r.BUSerials,
			SealSerials: r.BUPinkSeals,
			BUs:         pick(found, r.BUSerials),
			Seals:       pick(found, r.BUPinkSeals),
		}
		for _, msg := range p.ext.Validate() {
			batch.AddRow(n, "%s", msg)
		}
		plans = append(plans, p)
	}
	if err := batch.OrNil(); err != nil {
		return nil, err
	}
	return plans, nil
}

func pick(found map[string]*entities.Component, serials []string) map[string]*entities.Component {
	out := make(map[string]*entities.Component, len(serials))
	for _, s := range serials {
		if c, ok := found[s]; ok {
			out[s] = c
		}
	}
	return out
}

func (s *Service) localBody(ctx context.Context, id uint) (*entities.LocalBody, error) {
	lb, err := s.deps.Store.Directory.GetLocalBody(ctx, id)
	if err != nil {
		return nil, custody.LookupError(component, fmt.Sprintf("local body %d", id), err)
	}
	return lb, nil
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.deps.Observe("commissioning."+op, start, err)
}
