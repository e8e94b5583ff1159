// Package custody holds what the workflow packages share: the caller identity,
// the dependency bundle, status predecessor sets and the full-pairing-set
// resolution every ownership change goes through.
package custody

import (
	"context"
	"slices"
	"time"

	"github.com/evmtrack/evmtrack/internal/auditlog"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/observability/metrics"
	"github.com/evmtrack/evmtrack/internal/report"
)

// Caller is the authenticated identity every workflow operation receives.
type Caller struct {
	UserID uint
	Role   entities.Role
}

// Deps bundles the collaborators of a workflow service.
type Deps struct {
	Store    *repository.Store
	Audit    *auditlog.Recorder
	Renderer report.Renderer
	Metrics  *metrics.CustodyMetrics
	Names    *Names
	Log      logger.Logger
	Now      func() time.Time
}

// Clock returns the current time from Now, or time.Now when unset.
func (d *Deps) Clock() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Observe records the outcome of an operation started at start. Intended for
// use with defer and a named error result.
func (d *Deps) Observe(operation string, start time.Time, err *error) {
	outcome := metrics.OutcomeSuccess
	if err != nil && *err != nil {
		outcome = metrics.OutcomeError
		switch errors.KindOf(*err) {
		case errors.CategoryDatabase, errors.CategoryGeneric:
		default:
			outcome = metrics.OutcomeRejected
		}
	}
	d.Metrics.RecordOperation(operation, outcome, time.Since(start))
}

// Rendered is the outcome of a best-effort document render.
type Rendered struct {
	Name    string
	Content []byte
	Err     error
}

// Failed reports whether rendering failed.
func (r *Rendered) Failed() bool {
	return r != nil && r.Err != nil
}

// Render renders doc after the owning transaction has committed. A failure is
// logged, counted and returned inside Rendered; it never fails the operation.
func (d *Deps) Render(ctx context.Context, doc *report.Document) *Rendered {
	out := &Rendered{Name: doc.Name}
	if d.Renderer == nil {
		out.Err = errors.Renderer("report", doc.Name, errors.NewStd("no renderer configured"))
		return out
	}
	content, err := d.Renderer.Render(doc)
	if err != nil {
		out.Err = errors.Renderer("report", doc.Name, err)
		d.Metrics.RecordReportFailure(doc.Name)
		d.Log.WithContext(ctx).Warn("report rendering failed",
			logger.String("document", doc.Name),
			logger.Error(err))
		return out
	}
	out.Content = content
	return out
}

// Status predecessor sets.
var (
	// Unavailable statuses exclude a component from any custody transfer.
	Unavailable = []entities.ComponentStatus{
		entities.StatusPolled,
		entities.StatusCounted,
		entities.StatusDamaged,
		entities.StatusInTransit,
		entities.StatusReturnedECIL,
	}

	// Testable statuses may receive a first level check.
	Testable = []entities.ComponentStatus{
		entities.StatusFLCPending,
		entities.StatusFLCPassed,
		entities.StatusFLCFailed,
	}

	// Commissionable statuses may be bound to a polling station.
	Commissionable = []entities.ComponentStatus{
		entities.StatusFLCPassed,
		entities.StatusReserve,
	}

	// Reservable statuses are set aside as reserve after commissioning.
	Reservable = []entities.ComponentStatus{
		entities.StatusFLCPending,
		entities.StatusFLCPassed,
	}

	// Damageable statuses may be marked damaged.
	Damageable = []entities.ComponentStatus{
		entities.StatusFLCPending,
		entities.StatusFLCPassed,
		entities.StatusFLCFailed,
		entities.StatusReserve,
		entities.StatusCounted,
	}

	// Returnable statuses may be sent back to the manufacturer.
	Returnable = []entities.ComponentStatus{
		entities.StatusDamaged,
		entities.StatusFLCFailed,
	}
)

// Allotable returns every status a component may leave when it is allotted.
func Allotable() []entities.ComponentStatus {
	all := []entities.ComponentStatus{
		entities.StatusFLCPending, entities.StatusFLCPassed, entities.StatusFLCFailed,
		entities.StatusInTransit, entities.StatusReserve, entities.StatusPolling,
		entities.StatusPolled, entities.StatusCounted, entities.StatusDamaged,
		entities.StatusReturnedECIL, entities.StatusTreasury,
	}
	return slices.DeleteFunc(all, func(s entities.ComponentStatus) bool {
		return slices.Contains(Unavailable, s)
	})
}

// In reports whether status is one of set.
func In(status entities.ComponentStatus, set []entities.ComponentStatus) bool {
	return slices.Contains(set, status)
}

// IDs returns the ids of components.
func IDs(components []entities.Component) []uint {
	ids := make([]uint, 0, len(components))
	for i := range components {
		ids = append(ids, components[i].ID)
	}
	return ids
}

// PairingIDs returns the distinct pairing ids referenced by components.
func PairingIDs(components []entities.Component) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for i := range components {
		if p := components[i].PairingID; p != nil && !seen[*p] {
			seen[*p] = true
			ids = append(ids, *p)
		}
	}
	return ids
}

// ResolvePairingSet returns the given components plus every component sharing
// a pairing with any of them. The nominal components come first, followed by
// the siblings that were not named. A pairing is the unit of custody, so every
// ownership change operates on this set.
func ResolvePairingSet(ctx context.Context, repo repository.ComponentRepository, nominal []entities.Component) (all, siblings []entities.Component, err error) {
	named := make(map[uint]bool, len(nominal))
	for i := range nominal {
		named[nominal[i].ID] = true
	}
	members, err := repo.ListByPairings(ctx, PairingIDs(nominal))
	if err != nil {
		return nil, nil, err
	}
	all = append(all, nominal...)
	for i := range members {
		if !named[members[i].ID] {
			siblings = append(siblings, members[i])
			all = append(all, members[i])
		}
	}
	return all, siblings, nil
}

// LookupError translates a repository lookup failure into a domain error.
// Sentinel not-found errors become CategoryNotFound; anything else is a
// database failure.
func LookupError(component, what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrComponentNotFound),
		errors.Is(err, repository.ErrPairingNotFound),
		errors.Is(err, repository.ErrAllotmentNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrDistrictNotFound),
		errors.Is(err, repository.ErrLocalBodyNotFound),
		errors.Is(err, repository.ErrWarehouseNotFound),
		errors.Is(err, repository.ErrPollingStationNotFound):
		return errors.New(err).
			Component(component).
			Category(errors.CategoryNotFound).
			Context("lookup", what).
			Build()
	default:
		return errors.Database(component, what, err)
	}
}

// TxError passes through domain errors raised inside a transaction and wraps
// everything else as a database failure.
func TxError(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	var enhanced *errors.EnhancedError
	var batch *errors.BatchError
	if errors.As(err, &enhanced) || errors.As(err, &batch) {
		return err
	}
	return errors.Database(component, operation, err)
}
