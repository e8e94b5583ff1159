package allotment

import (
	"context"
	"strings"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/report"
)

// QueueComponent is a component shown in the approval queue.
type QueueComponent struct {
	Serial string                   `json:"serial"`
	Type   entities.ComponentType   `json:"type"`
	Status entities.ComponentStatus `json:"status,omitempty"`
}

// QueueEntry is one allotment awaiting approval.
type QueueEntry struct {
	ID            uint                   `json:"id"`
	Type          entities.AllotmentType `json:"type"`
	OrderNo       string                 `json:"order_no"`
	From          string                 `json:"from"`
	FromDistrict  string                 `json:"from_district"`
	ToDistrict    string                 `json:"to_district"`
	FromLocalBody string                 `json:"from_local_body"`
	ToLocalBody   string                 `json:"to_local_body"`
	InitiatedAt   time.Time              `json:"initiated_at"`
	Components    []QueueComponent       `json:"components"`
	CoPaired      []QueueComponent       `json:"co_paired"`
}

// Queue lists the pending allotments addressed to userID, each with its
// components and every component paired with them.
func (s *Service) Queue(ctx context.Context, userID uint) (entries []QueueEntry, err error) {
	defer s.observe("queue", time.Now(), &err)
	store := s.deps.Store
	names := s.deps.Names

	pending, err := store.Allotments.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, errors.Database(component, "list pending", err)
	}

	entries = make([]QueueEntry, 0, len(pending))
	for i := range pending {
		a := &pending[i]
		_, siblings, err := custody.ResolvePairingSet(ctx, store.Components, componentsOf(a))
		if err != nil {
			return nil, errors.Database(component, "resolve pairing set", err)
		}
		e := QueueEntry{
			ID:            a.ID,
			Type:          a.Type,
			OrderNo:       a.OrderNo,
			From:          names.User(ctx, a.FromUserID),
			FromDistrict:  names.District(ctx, a.FromDistrictID),
			ToDistrict:    names.District(ctx, a.ToDistrictID),
			FromLocalBody: names.LocalBody(ctx, a.FromLocalBodyID),
			ToLocalBody:   names.LocalBody(ctx, a.ToLocalBodyID),
			InitiatedAt:   a.InitiatedAt,
			CoPaired:      make([]QueueComponent, 0, len(siblings)),
		}
		for _, c := range componentsOf(a) {
			e.Components = append(e.Components, QueueComponent{Serial: c.Serial, Type: c.Type, Status: c.Status})
		}
		for _, c := range siblings {
			e.CoPaired = append(e.CoPaired, QueueComponent{Serial: c.Serial, Type: c.Type})
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// receipt builds the transfer receipt for a freshly proposed allotment.
func (s *Service) receipt(ctx context.Context, a *entities.Allotment) *report.Document {
	names := s.deps.Names

	to := a.TemporaryName
	if a.ToUserID != nil {
		to = names.User(ctx, *a.ToUserID)
	}
	district := a.ToDistrictID
	if district == nil {
		district = a.FromDistrictID
	}
	h := report.TransferHeader{
		AllotmentID: a.ID,
		OrderNo:     a.OrderNo,
		From:        names.User(ctx, a.FromUserID),
		To:          to,
		District:    names.District(ctx, district),
		LocalBody:   names.LocalBody(ctx, a.ToLocalBodyID),
		Reason:      a.TemporaryReason,
		Date:        a.InitiatedAt,
	}

	listed := componentsOf(a)
	paired := make(map[uint][]string)
	if members, err := s.deps.Store.Components.ListByPairings(ctx, custody.PairingIDs(listed)); err == nil {
		for i := range members {
			m := &members[i]
			paired[*m.PairingID] = append(paired[*m.PairingID], m.Serial)
		}
	}

	rows := make([]report.TransferRow, 0, len(a.Items))
	for i := range a.Items {
		it := &a.Items[i]
		c := it.Component
		if c == nil {
			continue
		}
		row := report.TransferRow{
			Serial:    c.Serial,
			Type:      c.Type,
			BoxNo:     c.BoxNo,
			Warehouse: names.Warehouse(ctx, c.CurrentWarehouseID),
			Remarks:   it.Remarks,
		}
		if c.PairingID != nil {
			var others []string
			for _, serial := range paired[*c.PairingID] {
				if serial != c.Serial {
					others = append(others, serial)
				}
			}
			row.PairedWith = strings.Join(others, ", ")
		}
		rows = append(rows, row)
	}
	return report.TransferReceipt(a.Type, h, rows)
}
