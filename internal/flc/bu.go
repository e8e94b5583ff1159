package flc

import (
	"context"
	"strings"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/report"
)

// BURow is one BU certification line.
type BURow struct {
	BUSerial string `json:"bu_serial"`
	BoxNo    string `json:"box_no"`
	Passed   bool   `json:"passed"`
	Remarks  string `json:"remarks"`
}

// BUResult is the committed certification batch.
type BUResult struct {
	Records []entities.FLCBallotUnit `json:"records"`
	Report  *custody.Rendered        `json:"-"`
}

// CertifyBUs resolves every BU first and fails with the full list of unknown
// serials when any is missing. Otherwise it sets status and box number and
// writes one record per row, all in one transaction.
func (s *Service) CertifyBUs(ctx context.Context, caller custody.Caller, rows []BURow) (result *BUResult, err error) {
	defer s.deps.Observe("flc.bu", time.Now(), &err)
	store := s.deps.Store

	if len(rows) == 0 {
		return nil, errors.ValidationError("at least one row is required")
	}

	serials := make([]string, 0, len(rows))
	for _, r := range rows {
		serials = append(serials, r.BUSerial)
	}
	found, err := store.Components.GetBySerials(ctx, serials)
	if err != nil {
		return nil, errors.Database(component, "lookup serials", err)
	}

	var missing []string
	for _, serial := range serials {
		if _, ok := found[serial]; !ok {
			missing = append(missing, serial)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NotFound(component, "BUs not found: %s", strings.Join(missing, ", "))
	}

	batch := errors.NewBatch("flc-bu")
	used := make(map[string]int)
	units := make([]*entities.Component, len(rows))
	for i, r := range rows {
		n := i + 1
		if prev, dup := used[r.BUSerial]; dup {
			batch.AddRow(n, "serial %s already used in row %d", r.BUSerial, prev)
		}
		used[r.BUSerial] = n
		units[i] = s.checkUnit(batch, n, found, r.BUSerial, entities.TypeBU, caller)
	}
	if err := batch.OrNil(); err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	result = &BUResult{}
	err = store.Transaction(ctx, func(tx *repository.Store) error {
		for i, r := range rows {
			status := entities.StatusFLCFailed
			if r.Passed {
				status = entities.StatusFLCPassed
			}
			bu := units[i]
			err := tx.Components.TransitionStatus(ctx, []uint{bu.ID}, custody.Testable, status, map[string]any{"box_no": r.BoxNo})
			if errors.Is(err, repository.ErrStaleState) {
				return errors.NotAvailable(component, r.BUSerial, string(bu.Status))
			}
			if err != nil {
				return err
			}
			rec := &entities.FLCBallotUnit{
				BUID:       bu.ID,
				BoxNo:      r.BoxNo,
				Passed:     r.Passed,
				Remarks:    r.Remarks,
				TestedByID: caller.UserID,
				TestedAt:   now,
			}
			if err := tx.FLC.CreateBU(ctx, []*entities.FLCBallotUnit{rec}); err != nil {
				return err
			}
			result.Records = append(result.Records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, custody.TxError(component, "flc-bu", err)
	}

	audit := s.deps.Audit.Begin(ctx, caller.UserID, "flc.bu")
	for i := range result.Records {
		audit.Add(entities.KindFLCBallotUnit, result.Records[i].ID, &result.Records[i])
	}
	ids := make([]uint, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	if components, err := store.Components.GetByIDs(ctx, ids); err == nil {
		audit.AddComponents(components)
	} else {
		s.log.WithContext(ctx).Warn("audit snapshot reload failed", logger.Error(err))
	}
	s.deps.Audit.Commit(ctx, audit)

	reportRows := make([]report.FLCBURow, 0, len(rows))
	passed := 0
	for _, r := range rows {
		if r.Passed {
			passed++
		}
		reportRows = append(reportRows, report.FLCBURow{
			Serial:  r.BUSerial,
			BoxNo:   r.BoxNo,
			Passed:  r.Passed,
			Remarks: r.Remarks,
		})
	}
	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCPassed), passed)
	s.deps.Metrics.RecordTransitions(string(entities.StatusFLCFailed), len(rows)-passed)

	s.log.WithContext(ctx).Info("BU first level check recorded",
		logger.Int("rows", len(rows)),
		logger.Int("passed", passed),
		logger.Uint64("user_id", uint64(caller.UserID)))

	result.Report = s.deps.Render(ctx, report.FLCBUCertificate(s.districtName(ctx, caller), now, reportRows))
	return result, nil
}
