package pairing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/testutil"
)

func TestBindAttachesEveryMember(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	cu := f.AddComponent(t, "CU1", entities.TypeCU, entities.StatusFLCPending, f.DEO.ID)
	dmm := f.AddComponent(t, "DMM1", entities.TypeDMM, entities.StatusFLCPending, f.DEO.ID)

	var p *entities.PairingRecord
	err := f.Store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		p, err = Bind(ctx, tx, f.DEO.ID, time.Now(), cu, dmm)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, p)

	members, err := f.Store.Components.ListByPairings(ctx, []uint{p.ID})
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, p.ID, *cu.PairingID)
}

func TestExtensionValidate(t *testing.T) {
	t.Parallel()

	owner := uint(7)
	other := uint(99)
	mine := uint(1)
	evm := "EVM-1"
	station := uint(3)

	bu := func(serial string, pairing *uint, status entities.ComponentStatus) *entities.Component {
		return &entities.Component{Serial: serial, Type: entities.TypeBU, Status: status, CurrentUserID: &owner, PairingID: pairing}
	}

	base := func() *Extension {
		return &Extension{
			Pairing:     &entities.PairingRecord{ID: mine},
			Owner:       owner,
			BUStatuses:  []entities.ComponentStatus{entities.StatusFLCPassed},
			BUSerials:   []string{"BU1"},
			SealSerials: []string{"S1"},
			BUs:         map[string]*entities.Component{"BU1": bu("BU1", nil, entities.StatusFLCPassed)},
			Seals:       map[string]*entities.Component{},
		}
	}

	tests := []struct {
		name   string
		mutate func(e *Extension)
		want   string
	}{
		{"valid", func(*Extension) {}, ""},
		{"already paired to this pairing", func(e *Extension) { e.BUs["BU1"].PairingID = &mine }, ""},
		{"commissioned", func(e *Extension) { e.Pairing.EVMID = &evm; e.Pairing.PollingStationID = &station }, "already commissioned"},
		{"count mismatch", func(e *Extension) { e.SealSerials = []string{"S1", "S2"} }, "1 BUs but 2"},
		{"duplicate seal", func(e *Extension) {
			e.BUSerials = []string{"BU1", "BU2"}
			e.BUs["BU2"] = bu("BU2", nil, entities.StatusFLCPassed)
			e.SealSerials = []string{"S1", "S1"}
		}, "listed more than once"},
		{"missing bu", func(e *Extension) { e.BUs = map[string]*entities.Component{} }, "BU BU1 not found"},
		{"bu elsewhere", func(e *Extension) { e.BUs["BU1"].PairingID = &other }, "another EVM"},
		{"bu status", func(e *Extension) { e.BUs["BU1"].Status = entities.StatusFLCFailed }, "not available"},
		{"bu owner", func(e *Extension) { e.BUs["BU1"].CurrentUserID = &other }, "not held"},
		{"wrong type", func(e *Extension) { e.BUs["BU1"].Type = entities.TypeCU }, "expected BU"},
		{"seal elsewhere", func(e *Extension) {
			e.Seals["S1"] = &entities.Component{Serial: "S1", Type: entities.TypeBUPinkPaperSeal, PairingID: &other}
		}, "belongs to another pairing"},
		{"empty seal serial", func(e *Extension) { e.SealSerials = []string{""} }, "invalid BU pink paper seal serial"},
		{"malformed seal serial", func(e *Extension) { e.SealSerials = []string{"S 1"} }, "invalid BU pink paper seal serial"},
		{"seal wrong type", func(e *Extension) {
			e.Seals["S1"] = &entities.Component{Serial: "S1", Type: entities.TypeDMMSeal}
		}, "expected BU_PINK_PAPER_SEAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := base()
			tt.mutate(e)
			msgs := e.Validate()
			if tt.want == "" {
				assert.Empty(t, msgs)
				return
			}
			require.NotEmpty(t, msgs)
			assert.Contains(t, msgs[0], tt.want)
		})
	}
}

func TestExtensionAttachCreatesSeals(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	ctx := context.Background()

	cu := f.AddComponent(t, "CU2", entities.TypeCU, entities.StatusFLCPassed, f.RO.ID)
	p := f.AddPairing(t, f.RO.ID, cu)
	bu := f.AddComponent(t, "BU2", entities.TypeBU, entities.StatusFLCPassed, f.RO.ID)
	seal := f.AddComponent(t, "S2", entities.TypeBUPinkPaperSeal, entities.StatusFLCPassed, f.RO.ID)
	f.AddComponent(t, "BU3", entities.TypeBU, entities.StatusFLCPassed, f.RO.ID)

	ext := &Extension{
		Pairing:     p,
		Owner:       f.RO.ID,
		BUStatuses:  []entities.ComponentStatus{entities.StatusFLCPassed},
		BUSerials:   []string{"BU2", "BU3"},
		SealSerials: []string{"S2", "S3"},
		BUs:         map[string]*entities.Component{"BU2": bu, "BU3": f.Component(t, "BU3")},
		Seals:       map[string]*entities.Component{"S2": seal},
	}
	require.Empty(t, ext.Validate())

	var touched []uint
	err := f.Store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		touched, err = ext.Attach(ctx, tx, entities.StatusPolling, &f.Warehouse.ID, time.Now())
		return err
	})
	require.NoError(t, err)
	assert.Len(t, touched, 4)

	for _, serial := range []string{"BU2", "BU3", "S2", "S3"} {
		c := f.Component(t, serial)
		assert.Equal(t, entities.StatusPolling, c.Status, serial)
		require.NotNil(t, c.PairingID, serial)
		assert.Equal(t, p.ID, *c.PairingID, serial)
	}
	assert.Equal(t, entities.TypeBUPinkPaperSeal, f.Component(t, "S3").Type)
}
