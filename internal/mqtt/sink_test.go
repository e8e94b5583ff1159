package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/observability/metrics"
)

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publishes instead of talking to a broker.
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	failTopic string
	messages  []published
}

func (f *fakeClient) Connect(context.Context) error { f.connected = true; return nil }
func (f *fakeClient) IsConnected() bool             { return f.connected }
func (f *fakeClient) Disconnect()                   { f.connected = false }

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failTopic {
		return errors.NewStd("broker rejected message")
	}
	f.messages = append(f.messages, published{topic: topic, payload: payload})
	return nil
}

func newMetrics(t *testing.T) *metrics.MQTTMetrics {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func events() []*entities.AuditEvent {
	at := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	return []*entities.AuditEvent{
		{EntityKind: entities.KindComponent, EntityID: 7, Sequence: 2, Action: "allotment.create", ActorID: 3, CorrelationID: "c-1", Payload: []byte(`{"serial":"CU1"}`), RecordedAt: at},
		{EntityKind: entities.KindAllotment, EntityID: 1, Sequence: 1, Action: "allotment.create", ActorID: 3, CorrelationID: "c-1", Payload: []byte(`{"id":1}`), RecordedAt: at},
	}
}

func TestAuditSinkPublishesPerEntityKind(t *testing.T) {
	t.Parallel()
	client := &fakeClient{connected: true}
	sink := NewAuditSink(client, "evmtrack/custody/", newMetrics(t), logger.NewDiscard())

	require.NoError(t, sink.Write(context.Background(), events()))
	require.Len(t, client.messages, 2)
	assert.Equal(t, "evmtrack/custody/component", client.messages[0].topic)
	assert.Equal(t, "evmtrack/custody/allotment", client.messages[1].topic)

	var dto CustodyEventDTO
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &dto))
	assert.Equal(t, "component", dto.EntityKind)
	assert.Equal(t, uint(7), dto.EntityID)
	assert.Equal(t, "c-1", dto.CorrelationID)
	assert.JSONEq(t, `{"serial":"CU1"}`, string(dto.Snapshot))
}

func TestAuditSinkDisconnected(t *testing.T) {
	t.Parallel()
	m := newMetrics(t)
	sink := NewAuditSink(&fakeClient{}, "evmtrack/custody", m, logger.NewDiscard())

	err := sink.Write(context.Background(), events())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.Errors), 0)
}

func TestAuditSinkContinuesAfterPublishFailure(t *testing.T) {
	t.Parallel()
	m := newMetrics(t)
	client := &fakeClient{connected: true, failTopic: "t/component"}
	sink := NewAuditSink(client, "t", m, logger.NewDiscard())

	err := sink.Write(context.Background(), events())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker rejected message")
	require.Len(t, client.messages, 1)
	assert.Equal(t, "t/allotment", client.messages[0].topic)
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.Errors), 0)
}
