// Package pairing binds CUs, DMMs, seals and BUs into pairing records that
// move as one unit of custody. The functions here run inside the caller's
// transaction; they validate and mutate but never commit.
package pairing

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
)

const component = "pairing"

// Bind creates a new pairing and attaches every member to it.
func Bind(ctx context.Context, tx *repository.Store, createdBy uint, now time.Time, members ...*entities.Component) (*entities.PairingRecord, error) {
	p := &entities.PairingRecord{CreatedByID: createdBy, CreatedAt: now}
	if err := tx.Pairings.Create(ctx, p); err != nil {
		return nil, errors.Database(component, "create pairing", err)
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	if err := tx.Components.UpdateFields(ctx, ids, map[string]any{"pairing_id": p.ID}); err != nil {
		return nil, errors.Database(component, "attach members", err)
	}
	for _, m := range members {
		m.PairingID = &p.ID
	}
	return p, nil
}

// Extension describes BUs and BU pink paper seals to attach to an existing
// pairing. BUs and Seals hold the components resolved by serial; serials
// missing from Seals are new seals that Attach creates.
type Extension struct {
	Pairing     *entities.PairingRecord
	Owner       uint
	BUStatuses  []entities.ComponentStatus
	BUSerials   []string
	SealSerials []string
	BUs         map[string]*entities.Component
	Seals       map[string]*entities.Component
}

// Validate returns every reason the extension cannot be applied. It performs
// no mutation.
func (e *Extension) Validate() []string {
	var msgs []string
	add := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	}

	if e.Pairing.Commissioned() {
		add("pairing %d is already commissioned", e.Pairing.ID)
	}
	if len(e.BUSerials) == 0 {
		add("at least one BU is required")
	}
	if len(e.BUSerials) != len(e.SealSerials) {
		add("%d BUs but %d BU pink paper seals", len(e.BUSerials), len(e.SealSerials))
	}

	seen := make(map[string]bool, len(e.SealSerials))
	for _, serial := range e.SealSerials {
		if !entities.ValidSerial(serial) {
			add("invalid BU pink paper seal serial %q", serial)
			continue
		}
		if seen[serial] {
			add("BU pink paper seal %s is listed more than once", serial)
			continue
		}
		seen[serial] = true
		if seal, ok := e.Seals[serial]; ok {
			if seal.Type != entities.TypeBUPinkPaperSeal {
				add("component %s is %s, expected %s", serial, seal.Type, entities.TypeBUPinkPaperSeal)
			} else if seal.PairingID != nil && *seal.PairingID != e.Pairing.ID {
				add("BU pink paper seal %s belongs to another pairing", serial)
			}
		}
	}

	seenBU := make(map[string]bool, len(e.BUSerials))
	for _, serial := range e.BUSerials {
		if seenBU[serial] {
			add("BU %s is listed more than once", serial)
			continue
		}
		seenBU[serial] = true
		bu, ok := e.BUs[serial]
		switch {
		case !ok:
			add("BU %s not found", serial)
		case bu.Type != entities.TypeBU:
			add("component %s is %s, expected %s", serial, bu.Type, entities.TypeBU)
		case bu.PairingID != nil && *bu.PairingID != e.Pairing.ID:
			add("BU %s is already paired to another EVM", serial)
		case !bu.OwnedBy(e.Owner):
			add("BU %s is not held by user %d", serial, e.Owner)
		case !slices.Contains(e.BUStatuses, bu.Status):
			add("BU %s is not available (status %s)", serial, bu.Status)
		}
	}
	return msgs
}

// Attach moves every BU into the pairing with status to, and attaches each
// seal, creating new seal components. It returns the ids of all touched
// components.
func (e *Extension) Attach(ctx context.Context, tx *repository.Store, to entities.ComponentStatus, warehouseID *uint, now time.Time) ([]uint, error) {
	pid := e.Pairing.ID
	var touched []uint

	buIDs := make([]uint, 0, len(e.BUSerials))
	for _, serial := range e.BUSerials {
		buIDs = append(buIDs, e.BUs[serial].ID)
	}
	err := tx.Components.TransitionStatus(ctx, buIDs, e.BUStatuses, to, map[string]any{"pairing_id": pid})
	if errors.Is(err, repository.ErrStaleState) {
		return nil, errors.Newf("a BU of pairing %d changed state concurrently", pid).
			Component(component).
			Category(errors.CategoryNotAvailable).
			Build()
	}
	if err != nil {
		return nil, err
	}
	touched = append(touched, buIDs...)

	var created []*entities.Component
	var reused []uint
	for _, serial := range e.SealSerials {
		if seal, ok := e.Seals[serial]; ok {
			reused = append(reused, seal.ID)
			continue
		}
		owner := e.Owner
		created = append(created, &entities.Component{
			Serial:             serial,
			Type:               entities.TypeBUPinkPaperSeal,
			Status:             to,
			CurrentUserID:      &owner,
			CurrentWarehouseID: warehouseID,
			PairingID:          &pid,
			DateOfReceipt:      &now,
		})
	}
	if err := tx.Components.CreateBatch(ctx, created); err != nil {
		return nil, err
	}
	for _, c := range created {
		touched = append(touched, c.ID)
	}
	if err := tx.Components.UpdateFields(ctx, reused, map[string]any{"pairing_id": pid, "status": to}); err != nil {
		return nil, err
	}
	return append(touched, reused...), nil
}
