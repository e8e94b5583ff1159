package auditlog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type captureSink struct {
	events []*entities.AuditEvent
	err    error
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Write(_ context.Context, events []*entities.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func TestRecorderCommitWritesAllSinks(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	sink := &captureSink{}
	rec := NewRecorder(f.Store.Audit, logger.NewDiscard(), nil, sink)

	ctx := logger.WithCorrelationID(context.Background(), "req-42")
	cu := f.AddComponent(t, "CU1", entities.TypeCU, entities.StatusFLCPassed, f.DEO.ID)

	b := rec.Begin(ctx, f.DEO.ID, "flc.cu")
	b.AddComponents([]entities.Component{*cu})
	b.AddAction(entities.KindPairing, 9, "pairing.create", map[string]uint{"id": 9})
	require.Equal(t, 2, b.Len())
	rec.Commit(ctx, b)

	assert.Len(t, sink.events, 2)

	history, err := rec.History(ctx, entities.KindComponent, cu.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "flc.cu", history[0].Action)
	assert.Equal(t, "req-42", history[0].CorrelationID)
	assert.Equal(t, uint(1), history[0].Sequence)

	var snap entities.Component
	require.NoError(t, json.Unmarshal(history[0].Payload, &snap))
	assert.Equal(t, "CU1", snap.Serial)

	byCorr, err := rec.ByCorrelation(ctx, "req-42")
	require.NoError(t, err)
	assert.Len(t, byCorr, 2)
}

func TestRecorderSinkFailureDoesNotStopOtherSinks(t *testing.T) {
	t.Parallel()
	f := testutil.NewFixture(t)
	failing := &captureSink{err: errors.NewStd("broker down")}
	rec := NewRecorder(f.Store.Audit, logger.NewDiscard(), nil, failing)

	ctx := context.Background()
	b := rec.Begin(ctx, f.DEO.ID, "registry.damage")
	b.Add(entities.KindComponent, 77, map[string]string{"status": "damaged"})
	assert.NotEmpty(t, b.CorrelationID())

	assert.NotPanics(t, func() { rec.Commit(ctx, b) })

	n, err := f.Store.Audit.Count(ctx, entities.KindComponent, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want entities.EntityKind
		ok   bool
	}{
		{"component", entities.KindComponent, true},
		{"pairing", entities.KindPairing, true},
		{"flc_ballot_unit", entities.KindFLCBallotUnit, true},
		{"user", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
