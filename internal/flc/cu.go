package flc

import (
	"context"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/pairing"
	"github.com/evmtrack/evmtrack/internal/report"
)

// CURow is one CU certification line.
type CURow struct {
	CUSerial            string `json:"cu_serial"`
	DMMSerial           string `json:"dmm_serial"`
	DMMSealSerial       string `json:"dmm_seal_serial"`
	PinkPaperSealSerial string `json:"pink_paper_seal_serial"`
	BoxNo               string `json:"box_no"`
	Passed              bool   `json:"passed"`
	Remarks             string `json:"remarks"`
}

// CUResult is the committed certification batch.
type CUResult struct {
	Records  []entities.FLCRecord     `json:"records"`
	Pairings []entities.PairingRecord `json:"pairings"`
	Report   *custody.Rendered        `json:"-"`
}

// resolvedCU is a validated row ready for the mutating phase.
type resolvedCU struct {
	row      CURow
	cu, dmm  *entities.Component
	dmmSeal  *entities.Component // nil when new
	pinkSeal *entities.Component // nil when new
	retest   uint                // pairing reused by a re-test, 0 for a new pairing
}

// CertifyCUs validates every row, then in one transaction creates missing
// seals, binds each CU, DMM and seal set into a new pairing, sets the CU and
// DMM status from the outcome and writes one FLC record per row.
//
// A CU and DMM that are already paired with each other and not commissioned
// are re-tested: their pairing is kept, its seals are replaced by the row's
// seals and a new FLC record is written.
func (s *Service) CertifyCUs(ctx context.Context, caller custody.Caller, rows []CURow) (result *CUResult, err error) {
	defer s.deps.Observe("flc.cu", time.Now(), &err)
	store := s.deps.Store

	if len(rows) == 0 {
		return nil, errors.ValidationError("at least one row is required")
	}

	var serials []string
	for _, r := range rows {
		serials = append(serials, r.CUSerial, r.DMMSerial, r.DMMSealSerial, r.PinkPaperSealSerial)
	}
	found, err := store.Components.GetBySerials(ctx, serials)
	if err != nil {
		return nil, errors.Database(component, "lookup serials", err)
	}

	batch := errors.NewBatch("flc-cu")
	used := make(map[string]int)
	resolved := make([]resolvedCU, 0, len(rows))
	for i, r := range rows {
		n := i + 1
		for _, serial := range []string{r.CUSerial, r.DMMSerial, r.DMMSealSerial, r.PinkPaperSealSerial} {
			if serial == "" {
				continue
			}
			if prev, dup := used[serial]; dup {
				batch.AddRow(n, "serial %s already used in row %d", serial, prev)
			}
			used[serial] = n
		}

		rc := resolvedCU{row: r}
		rc.cu = s.checkUnit(batch, n, found, r.CUSerial, entities.TypeCU, caller)
		rc.dmm = s.checkUnit(batch, n, found, r.DMMSerial, entities.TypeDMM, caller)
		if rc.cu != nil && rc.dmm != nil {
			rc.retest = checkPairing(batch, n, rc.cu, rc.dmm)
		}
		rc.dmmSeal = checkSeal(batch, n, found, r.DMMSealSerial, entities.TypeDMMSeal, rc.retest)
		rc.pinkSeal = checkSeal(batch, n, found, r.PinkPaperSealSerial, entities.TypePinkPaperSeal, rc.retest)
		resolved = append(resolved, rc)
	}
	if err := batch.OrNil(); err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	user, err := store.Directory.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, custody.LookupError(component, "caller", err)
	}

	result = &CUResult{}
	var touched []uint
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		for _, rc := range resolved {
			status := entities.StatusFLCFailed
			if rc.row.Passed {
				status = entities.StatusFLCPassed
			}

			dmmSeal, err := ensureSeal(ctx, tx, rc.dmmSeal, rc.row.DMMSealSerial, entities.TypeDMMSeal, status, caller.UserID, user.WarehouseID, now)
			if err != nil {
				return err
			}
			pinkSeal, err := ensureSeal(ctx, tx, rc.pinkSeal, rc.row.PinkPaperSealSerial, entities.TypePinkPaperSeal, status, caller.UserID, user.WarehouseID, now)
			if err != nil {
				return err
			}

			var p *entities.PairingRecord
			if rc.retest != 0 {
				p, err = s.rebind(ctx, tx, rc.retest, rc.cu, rc.dmm, dmmSeal, pinkSeal)
			} else {
				p, err = pairing.Bind(ctx, tx, caller.UserID, now, rc.cu, rc.dmm, dmmSeal, pinkSeal)
			}
			if err != nil {
				return err
			}

			units := []uint{rc.cu.ID, rc.dmm.ID}
			err = tx.Components.TransitionStatus(ctx, units, custody.Testable, status, map[string]any{"box_no": rc.row.BoxNo})
			if errors.Is(err, repository.ErrStaleState) {
				return errors.NotAvailable(component, rc.row.CUSerial, string(rc.cu.Status))
			}
			if err != nil {
				return err
			}
			if err := tx.Components.UpdateFields(ctx, []uint{dmmSeal.ID, pinkSeal.ID}, map[string]any{"status": status}); err != nil {
				return err
			}

			rec := &entities.FLCRecord{
				CUID:            rc.cu.ID,
				DMMID:           rc.dmm.ID,
				DMMSealID:       dmmSeal.ID,
				PinkPaperSealID: pinkSeal.ID,
				PairingID:       p.ID,
				BoxNo:           rc.row.BoxNo,
				Passed:          rc.row.Passed,
				Remarks:         rc.row.Remarks,
				TestedByID:      caller.UserID,
				TestedAt:        now,
			}
			if err := tx.FLC.CreateCU(ctx, []*entities.FLCRecord{rec}); err != nil {
				return err
			}
			result.Records = append(result.Records, *rec)
			result.Pairings = append(result.Pairings, *p)
			touched = append(touched, rc.cu.ID, rc.dmm.ID, dmmSeal.ID, pinkSeal.ID)
		}
		return nil
	})
	if err != nil {
		return nil, custody.TxError(component, "flc-cu", err)
	}

	s.auditCU(ctx, caller, result, touched)

	reportRows := make([]report.FLCCURow, 0, len(resolved))
	passed := 0
	for _, rc := range resolved {
		if rc.row.Passed {
			passed++
		}
		reportRows = append(reportRows, report.FLCCURow{
			CUSerial:      rc.row.CUSerial,
			DMMSerial:     rc.row.DMMSerial,
			DMMSeal:       rc.row.DMMSealSerial,
			PinkPaperSeal: rc.row.PinkPaperSealSerial,
			BoxNo:         rc.row.BoxNo,
			Passed:        rc.row.Passed,
			Remarks:       rc.row.Remarks,
		})
	}
	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCPassed), 2*passed)
	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCFailed), 2*(len(resolved)-passed))

	s.log.WithContext(ctx).Info("CU first level check recorded",
		logger.Int("rows", len(resolved)),
		logger.Int("passed", passed),
		logger.Uint64("user_id", uint64(caller.UserID)))

	result.Report = s.deps.Render(ctx, report.FLCCUCertificate(s.districtName(ctx, caller), now, reportRows))
	return result, nil
}

// checkUnit resolves a CU or DMM for certification and records every reason
// it cannot be tested.
func (s *Service) checkUnit(batch *errors.BatchError, row int, found map[string]*entities.Component,
	serial string, want entities.ComponentType, caller custody.Caller,
) *entities.Component {
	c, ok := found[serial]
	switch {
	case !ok:
		batch.AddRow(row, "%s %s not found", want, serial)
	case c.Type != want:
		batch.AddRow(row, "component %s is %s, expected %s", serial, c.Type, want)
	case !c.OwnedBy(caller.UserID):
		batch.AddRow(row, "component %s is not held by user %d", serial, caller.UserID)
	case !custody.In(c.Status, custody.Testable):
		batch.AddRow(row, "component %s is not available (status %s)", serial, c.Status)
	default:
		return c
	}
	return nil
}

// checkPairing returns the pairing a re-test reuses, or 0 when the CU and DMM
// are both unpaired.
func checkPairing(batch *errors.BatchError, row int, cu, dmm *entities.Component) uint {
	switch {
	case cu.PairingID == nil && dmm.PairingID == nil:
		return 0
	case cu.PairingID != nil && dmm.PairingID != nil && *cu.PairingID == *dmm.PairingID:
		return *cu.PairingID
	case cu.PairingID != nil:
		batch.AddRow(row, "CU %s is already paired with another DMM", cu.Serial)
	default:
		batch.AddRow(row, "DMM %s is already paired with another CU", dmm.Serial)
	}
	return 0
}

// checkSeal validates an existing seal for reuse; a missing seal is created later.
func checkSeal(batch *errors.BatchError, row int, found map[string]*entities.Component, serial string, want entities.ComponentType, retest uint) *entities.Component {
	if serial == "" {
		batch.AddRow(row, "%s serial is required", want)
		return nil
	}
	if !entities.ValidSerial(serial) {
		batch.AddRow(row, "invalid %s serial %q", want, serial)
		return nil
	}
	c, ok := found[serial]
	if !ok {
		return nil
	}
	switch {
	case c.Type != want:
		batch.AddRow(row, "component %s is %s, expected %s", serial, c.Type, want)
	case c.PairingID != nil && *c.PairingID != retest:
		batch.AddRow(row, "seal %s already belongs to a pairing", serial)
	}
	return c
}

// rebind keeps an existing pairing for a re-test and replaces its seals.
// Seals no longer part of the set are single-use and are deleted.
func (s *Service) rebind(ctx context.Context, tx *repository.Store, pairingID uint, members ...*entities.Component) (*entities.PairingRecord, error) {
	p, err := tx.Pairings.Get(ctx, pairingID)
	if err != nil {
		return nil, err
	}
	current, err := tx.Components.ListByPairings(ctx, []uint{pairingID})
	if err != nil {
		return nil, err
	}
	keep := make(map[uint]bool, len(members))
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		keep[m.ID] = true
		ids = append(ids, m.ID)
		m.PairingID = &p.ID
	}
	var stale []uint
	for i := range current {
		c := &current[i]
		if !keep[c.ID] && (c.Type == entities.TypeDMMSeal || c.Type == entities.TypePinkPaperSeal) {
			stale = append(stale, c.ID)
		}
	}
	if err := tx.Components.Delete(ctx, stale); err != nil {
		return nil, err
	}
	if err := tx.Components.UpdateFields(ctx, ids, map[string]any{"pairing_id": p.ID}); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureSeal returns the existing seal or creates a new one.
func ensureSeal(ctx context.Context, tx *repository.Store, existing *entities.Component, serial string,
	typ entities.ComponentType, status entities.ComponentStatus, owner uint, warehouse *uint, now time.Time,
) (*entities.Component, error) {
	if existing != nil {
		return existing, nil
	}
	seal := &entities.Component{
		Serial:             serial,
		Type:               typ,
		Status:             status,
		CurrentUserID:      &owner,
		CurrentWarehouseID: warehouse,
		DateOfReceipt:      &now,
	}
	if err := tx.Components.CreateBatch(ctx, []*entities.Component{seal}); err != nil {
		return nil, err
	}
	return seal, nil
}

func (s *Service) auditCU(ctx context.Context, caller custody.Caller, result *CUResult, touched []uint) {
	audit := s.deps.Audit.Begin(ctx, caller.UserID, "flc.cu")
	for i := range result.Pairings {
		audit.Add(entities.KindPairing, result.Pairings[i].ID, &result.Pairings[i])
	}
	for i := range result.Records {
		audit.Add(entities.KindFLCRecord, result.Records[i].ID, &result.Records[i])
	}
	if components, err := s.deps.Store.Components.GetByIDs(ctx, touched); err == nil {
		audit.AddComponents(components)
	} else {
		s.log.WithContext(ctx).Warn("audit snapshot reload failed", logger.Error(err))
	}
	s.deps.Audit.Commit(ctx, audit)
}
