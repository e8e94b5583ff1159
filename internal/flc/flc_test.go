package flc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/custody/custodytest"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/report"
)

func newService(t *testing.T) (*Service, *custodytest.Env) {
	t.Helper()
	env := custodytest.New(t)
	return NewService(env.Deps), env
}

func TestCertifyCUsScenarioB(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)
	ctx := context.Background()

	env.AddComponent(t, "CU001", entities.TypeCU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "DMM001", entities.TypeDMM, entities.StatusFLCPending, env.FLCOfficer.ID)

	res, err := svc.CertifyCUs(ctx, custodytest.Caller(env.FLCOfficer), []CURow{{
		CUSerial:            "CU001",
		DMMSerial:           "DMM001",
		DMMSealSerial:       "DS001",
		PinkPaperSealSerial: "PS001",
		BoxNo:               "B1",
		Passed:              true,
	}})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Len(t, res.Pairings, 1)
	assert.False(t, res.Report.Failed())

	pairingID := res.Pairings[0].ID
	for _, serial := range []string{"CU001", "DMM001", "DS001", "PS001"} {
		c := env.Component(t, serial)
		require.NotNil(t, c.PairingID, serial)
		assert.Equal(t, pairingID, *c.PairingID, serial)
	}
	assert.Equal(t, entities.StatusFLCPassed, env.Component(t, "CU001").Status)
	assert.Equal(t, entities.StatusFLCPassed, env.Component(t, "DMM001").Status)
	assert.Equal(t, "B1", env.Component(t, "CU001").BoxNo)

	seal := env.Component(t, "DS001")
	assert.Equal(t, entities.TypeDMMSeal, seal.Type)
	assert.Equal(t, env.FLCOfficer.ID, *seal.CurrentUserID)

	recs, err := env.Store.FLC.ListCUByComponents(ctx, []uint{env.Component(t, "CU001").ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Passed)

	doc := env.Renderer.Last()
	require.NotNil(t, doc)
	assert.Equal(t, report.DocFLCCUCertificate, doc.Name)
	assert.Equal(t, "Thrissur", doc.Header[0].Value)
}

func TestCertifyCUsRejectsWholeBatch(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)
	ctx := context.Background()

	env.AddComponent(t, "CU1", entities.TypeCU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "DMM1", entities.TypeDMM, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "CU2", entities.TypeCU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "BU2", entities.TypeBU, entities.StatusFLCPending, env.FLCOfficer.ID)

	_, err := svc.CertifyCUs(ctx, custodytest.Caller(env.FLCOfficer), []CURow{
		{CUSerial: "CU1", DMMSerial: "DMM1", DMMSealSerial: "DS1", PinkPaperSealSerial: "PS1", Passed: true},
		{CUSerial: "CU2", DMMSerial: "BU2", DMMSealSerial: "DS2", PinkPaperSealSerial: "PS2", Passed: true},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidationBatch, errors.KindOf(err))
	msgs := errors.BatchMessages(err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "row 2")
	assert.Contains(t, msgs[0], "BU2")

	assert.Equal(t, entities.StatusFLCPending, env.Component(t, "CU1").Status)
	assert.Nil(t, env.Component(t, "CU1").PairingID)
	_, err = env.Store.Components.GetBySerial(ctx, "DS1")
	assert.ErrorIs(t, err, repository.ErrComponentNotFound)
	assert.Empty(t, env.Renderer.Docs)
}

func TestCertifyCUsRejectsMalformedSealSerials(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)
	ctx := context.Background()

	env.AddComponent(t, "CU6", entities.TypeCU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "DMM6", entities.TypeDMM, entities.StatusFLCPending, env.FLCOfficer.ID)

	_, err := svc.CertifyCUs(ctx, custodytest.Caller(env.FLCOfficer), []CURow{
		{CUSerial: "CU6", DMMSerial: "DMM6", DMMSealSerial: "DS 6", PinkPaperSealSerial: "-PS6", Passed: true},
	})
	require.Error(t, err)
	msgs := errors.BatchMessages(err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], `invalid DMM_SEAL serial "DS 6"`)
	assert.Contains(t, msgs[1], `invalid PINK_PAPER_SEAL serial "-PS6"`)

	assert.Nil(t, env.Component(t, "CU6").PairingID)
	_, err = env.Store.Components.GetBySerial(ctx, "DS 6")
	assert.ErrorIs(t, err, repository.ErrComponentNotFound)
}

func TestCertifyCUsChecksOwnershipAndPairing(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)
	ctx := context.Background()

	env.AddComponent(t, "CU3", entities.TypeCU, entities.StatusFLCPending, env.DEO.ID)
	env.AddComponent(t, "DMM3", entities.TypeDMM, entities.StatusFLCPending, env.FLCOfficer.ID)
	cu4 := env.AddComponent(t, "CU4", entities.TypeCU, entities.StatusFLCPassed, env.FLCOfficer.ID)
	dmm4 := env.AddComponent(t, "DMM4", entities.TypeDMM, entities.StatusFLCPassed, env.FLCOfficer.ID)
	env.AddPairing(t, env.FLCOfficer.ID, cu4, dmm4)
	env.AddComponent(t, "DMM5", entities.TypeDMM, entities.StatusFLCPending, env.FLCOfficer.ID)

	_, err := svc.CertifyCUs(ctx, custodytest.Caller(env.FLCOfficer), []CURow{
		{CUSerial: "CU3", DMMSerial: "DMM3", DMMSealSerial: "DS3", PinkPaperSealSerial: "PS3"},
		{CUSerial: "CU4", DMMSerial: "DMM5", DMMSealSerial: "DS4", PinkPaperSealSerial: "PS4"},
	})
	msgs := errors.BatchMessages(err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "not held by user")
	assert.Contains(t, msgs[1], "already paired")
}

func TestCertifyCUsRetestKeepsPairingAndReplacesSeals(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)
	ctx := context.Background()
	caller := custodytest.Caller(env.FLCOfficer)

	env.AddComponent(t, "CU6", entities.TypeCU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "DMM6", entities.TypeDMM, entities.StatusFLCPending, env.FLCOfficer.ID)

	first, err := svc.CertifyCUs(ctx, caller, []CURow{
		{CUSerial: "CU6", DMMSerial: "DMM6", DMMSealSerial: "DS6", PinkPaperSealSerial: "PS6", Passed: false},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusFLCFailed, env.Component(t, "CU6").Status)

	second, err := svc.CertifyCUs(ctx, caller, []CURow{
		{CUSerial: "CU6", DMMSerial: "DMM6", DMMSealSerial: "DS6B", PinkPaperSealSerial: "PS6", Passed: true},
	})
	require.NoError(t, err)
	assert.Equal(t, first.Pairings[0].ID, second.Pairings[0].ID)
	assert.Equal(t, entities.StatusFLCPassed, env.Component(t, "CU6").Status)

	_, err = env.Store.Components.GetBySerial(ctx, "DS6")
	assert.ErrorIs(t, err, repository.ErrComponentNotFound)
	assert.Equal(t, first.Pairings[0].ID, *env.Component(t, "DS6B").PairingID)

	recs, err := env.Store.FLC.ListCUByComponents(ctx, []uint{env.Component(t, "CU6").ID})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestCertifyBUs(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)
	ctx := context.Background()

	env.AddComponent(t, "BU2", entities.TypeBU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "BU1", entities.TypeBU, entities.StatusFLCPending, env.FLCOfficer.ID)
	env.AddComponent(t, "BU3", entities.TypeBU, entities.StatusFLCPending, env.FLCOfficer.ID)

	res, err := svc.CertifyBUs(ctx, custodytest.Caller(env.FLCOfficer), []BURow{
		{BUSerial: "BU2", BoxNo: "X1", Passed: true},
		{BUSerial: "BU1", BoxNo: "X1", Passed: true},
		{BUSerial: "BU3", BoxNo: "X2", Passed: false, Remarks: "key stuck"},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.Equal(t, entities.StatusFLCPassed, env.Component(t, "BU1").Status)
	assert.Equal(t, entities.StatusFLCFailed, env.Component(t, "BU3").Status)
	assert.Equal(t, "X2", env.Component(t, "BU3").BoxNo)

	doc := env.Renderer.Last()
	require.NotNil(t, doc)
	assert.Equal(t, report.DocFLCBUCertificate, doc.Name)
	assert.Equal(t, "BU3", doc.Rows[0][1])
	assert.Equal(t, "BU1", doc.Rows[1][1])
	assert.Equal(t, "BU2", doc.Rows[2][1])
}

func TestCertifyBUsListsEveryMissingSerial(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)

	env.AddComponent(t, "BU10", entities.TypeBU, entities.StatusFLCPending, env.FLCOfficer.ID)

	_, err := svc.CertifyBUs(context.Background(), custodytest.Caller(env.FLCOfficer), []BURow{
		{BUSerial: "BU10", Passed: true},
		{BUSerial: "BU11", Passed: true},
		{BUSerial: "BU12", Passed: true},
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "BU11, BU12")
	assert.Equal(t, entities.StatusFLCPending, env.Component(t, "BU10").Status)
}

func TestCertifyBUsWrongType(t *testing.T) {
	t.Parallel()
	svc, env := newService(t)

	env.AddComponent(t, "CU20", entities.TypeCU, entities.StatusFLCPending, env.FLCOfficer.ID)

	_, err := svc.CertifyBUs(context.Background(), custodytest.Caller(env.FLCOfficer), []BURow{
		{BUSerial: "CU20", Passed: true},
	})
	msgs := errors.BatchMessages(err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "expected BU")
}
