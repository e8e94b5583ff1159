package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/testutil"
)

func TestTransitionStatusIsConditional(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	a := f.AddComponent(t, "CU100", entities.TypeCU, entities.StatusFLCPassed, f.DEO.ID)
	b := f.AddComponent(t, "CU101", entities.TypeCU, entities.StatusPolled, f.DEO.ID)

	err := f.Store.Components.TransitionStatus(ctx, []uint{a.ID}, []entities.ComponentStatus{entities.StatusFLCPassed},
		entities.StatusInTransit, map[string]any{"current_user_id": f.BO.ID})
	require.NoError(t, err)

	got := f.Component(t, "CU100")
	assert.Equal(t, entities.StatusInTransit, got.Status)
	assert.Equal(t, f.BO.ID, *got.CurrentUserID)

	err = f.Store.Components.TransitionStatus(ctx, []uint{a.ID, b.ID}, []entities.ComponentStatus{entities.StatusInTransit},
		entities.StatusFLCPassed, nil)
	assert.ErrorIs(t, err, repository.ErrStaleState)
}

func TestStoreTransactionRollsBack(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	boom := errors.NewStd("boom")
	err := f.Store.Transaction(ctx, func(tx *repository.Store) error {
		c := &entities.Component{Serial: "BU900", Type: entities.TypeBU, Status: entities.StatusFLCPending}
		require.NoError(t, tx.Components.CreateBatch(ctx, []*entities.Component{c}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = f.Store.Components.GetBySerial(ctx, "BU900")
	assert.ErrorIs(t, err, repository.ErrComponentNotFound)
}

func TestListReservableSkipsCommissionedPairings(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	free := f.AddComponent(t, "BU1", entities.TypeBU, entities.StatusFLCPassed, f.RO.ID)
	cu := f.AddComponent(t, "CU1", entities.TypeCU, entities.StatusFLCPassed, f.RO.ID)
	bound := f.AddComponent(t, "CU2", entities.TypeCU, entities.StatusFLCPassed, f.RO.ID)
	f.AddComponent(t, "CU3", entities.TypeCU, entities.StatusFLCPassed, f.BO.ID)
	f.AddPairing(t, f.RO.ID, cu)
	p := f.AddPairing(t, f.RO.ID, bound)
	require.NoError(t, f.Store.Pairings.Commission(ctx, p.ID, "EVM-1", f.Station(1).ID, f.RO.ID, time.Now()))

	got, err := f.Store.Components.ListReservable(ctx, f.RO.ID,
		[]entities.ComponentStatus{entities.StatusFLCPending, entities.StatusFLCPassed})
	require.NoError(t, err)

	serials := make([]string, 0, len(got))
	for _, c := range got {
		serials = append(serials, c.Serial)
	}
	assert.ElementsMatch(t, []string{free.Serial, cu.Serial}, serials)
}

func TestPairingCommissionOnlyOnce(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	cu := f.AddComponent(t, "CU7", entities.TypeCU, entities.StatusFLCPassed, f.RO.ID)
	p := f.AddPairing(t, f.RO.ID, cu)

	require.NoError(t, f.Store.Pairings.Commission(ctx, p.ID, "EVM-7", f.Station(2).ID, f.RO.ID, time.Now()))
	err := f.Store.Pairings.Commission(ctx, p.ID, "EVM-8", f.Station(3).ID, f.RO.ID, time.Now())
	assert.ErrorIs(t, err, repository.ErrStaleState)

	filled, err := f.Store.Pairings.StationsFilled(ctx, []uint{f.Station(2).ID, f.Station(3).ID})
	require.NoError(t, err)
	assert.True(t, filled[f.Station(2).ID])
	assert.False(t, filled[f.Station(3).ID])

	byEVM, err := f.Store.Pairings.GetByEVMIDs(ctx, f.LocalBody.ID, []string{"EVM-7", "EVM-X"})
	require.NoError(t, err)
	require.Len(t, byEVM, 1)
	assert.Equal(t, p.ID, byEVM["EVM-7"].ID)
}

func TestAllotmentResolveRejectsStaleStatus(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	c := f.AddComponent(t, "CU11", entities.TypeCU, entities.StatusInTransit, f.DEO.ID)
	a := &entities.Allotment{
		Type:          entities.AllotDEOToBO,
		Status:        entities.AllotmentPending,
		FromUserID:    f.DEO.ID,
		ToUserID:      &f.BO.ID,
		InitiatedByID: f.DEO.ID,
		InitiatedAt:   time.Now(),
		Items:         []entities.AllotmentItem{{ComponentID: c.ID}},
	}
	require.NoError(t, f.Store.Allotments.Create(ctx, a))

	pending, err := f.Store.Allotments.ListPendingFor(ctx, f.BO.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Len(t, pending[0].Items, 1)
	assert.Equal(t, "CU11", pending[0].Items[0].Component.Serial)

	fields := map[string]any{"status": entities.AllotmentApproved}
	require.NoError(t, f.Store.Allotments.Resolve(ctx, a.ID, entities.AllotmentPending, fields))
	assert.ErrorIs(t, f.Store.Allotments.Resolve(ctx, a.ID, entities.AllotmentPending, fields), repository.ErrStaleState)

	require.NoError(t, f.Store.Allotments.Delete(ctx, a.ID))
	_, err = f.Store.Allotments.Get(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrAllotmentNotFound)
}

func TestAuditAppendAssignsSequences(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	mk := func(id uint, action string) *entities.AuditEvent {
		return &entities.AuditEvent{
			EntityKind:    entities.KindComponent,
			EntityID:      id,
			Action:        action,
			ActorID:       f.DEO.ID,
			CorrelationID: "corr-1",
			Payload:       []byte(`{}`),
			RecordedAt:    time.Now(),
		}
	}

	require.NoError(t, f.Store.Audit.Append(ctx, []*entities.AuditEvent{mk(1, "register"), mk(2, "register"), mk(1, "flc")}))
	require.NoError(t, f.Store.Audit.Append(ctx, []*entities.AuditEvent{mk(1, "allot")}))

	history, err := f.Store.Audit.History(ctx, entities.KindComponent, 1)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, ev := range history {
		assert.Equal(t, uint(i+1), ev.Sequence)
	}
	assert.Equal(t, []string{"register", "flc", "allot"},
		[]string{history[0].Action, history[1].Action, history[2].Action})

	byCorr, err := f.Store.Audit.ByCorrelation(ctx, "corr-1")
	require.NoError(t, err)
	assert.Len(t, byCorr, 4)
}
