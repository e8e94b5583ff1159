package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/observability/metrics"
)

// AuditSink publishes audit events as JSON to <topic>/<entity_kind>.
type AuditSink struct {
	client  Client
	topic   string
	metrics *metrics.MQTTMetrics
	log     logger.Logger
}

// NewAuditSink creates a sink publishing below topic.
func NewAuditSink(client Client, topic string, m *metrics.MQTTMetrics, log logger.Logger) *AuditSink {
	return &AuditSink{
		client:  client,
		topic:   strings.TrimRight(topic, "/"),
		metrics: m,
		log:     log.Module("mqtt"),
	}
}

// Name identifies the sink in logs.
func (s *AuditSink) Name() string { return "mqtt" }

// Topic returns the topic events of kind are published to.
func (s *AuditSink) Topic(kind entities.EntityKind) string {
	return s.topic + "/" + string(kind)
}

// Write publishes every event. A disconnected client fails the whole batch;
// otherwise every event is attempted and the failures are joined.
func (s *AuditSink) Write(ctx context.Context, events []*entities.AuditEvent) error {
	if !s.client.IsConnected() {
		s.metrics.IncrementErrors()
		return errors.Newf("MQTT client not connected").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("events", len(events)).
			Build()
	}

	var errs []error
	for _, e := range events {
		payload, err := json.Marshal(NewCustodyEventDTO(e))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		topic := s.Topic(e.EntityKind)
		if err := s.client.Publish(ctx, topic, payload); err != nil {
			s.metrics.IncrementErrors()
			errs = append(errs, errors.New(err).
				Component("mqtt").
				Category(errors.CategoryMQTTPublish).
				Context("topic", topic).
				Build())
			continue
		}
		s.log.Debug("custody event published",
			logger.String("topic", topic),
			logger.String("action", e.Action))
	}
	return errors.Join(errs...)
}
