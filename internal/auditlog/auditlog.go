// Package auditlog records append-only snapshots of every custody entity at
// each state change and serves the per-entity history projections.
//
// Workflows build a Batch while they mutate, then hand it to Recorder.Commit
// after their transaction commits. Commit never fails the caller: sink errors
// are logged and counted.
package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/observability/metrics"
)

// Sink receives committed audit events.
type Sink interface {
	Name() string
	Write(ctx context.Context, events []*entities.AuditEvent) error
}

// Recorder fans audit batches out to its sinks.
type Recorder struct {
	repo    repository.AuditRepository
	sinks   []Sink
	log     logger.Logger
	metrics *metrics.CustodyMetrics
	now     func() time.Time
}

// NewRecorder creates a Recorder that always writes to the database event log
// and additionally to every extra sink.
func NewRecorder(repo repository.AuditRepository, log logger.Logger, m *metrics.CustodyMetrics, extra ...Sink) *Recorder {
	sinks := append([]Sink{&dbSink{repo: repo}}, extra...)
	return &Recorder{
		repo:    repo,
		sinks:   sinks,
		log:     log.Module("auditlog"),
		metrics: m,
		now:     time.Now,
	}
}

// Batch collects the snapshots produced by one workflow operation.
type Batch struct {
	actor         uint
	action        string
	correlationID string
	recordedAt    time.Time
	events        []*entities.AuditEvent
}

// Begin starts a batch for action performed by actor. The correlation id is
// taken from ctx when present so HTTP requests and audit rows line up.
func (r *Recorder) Begin(ctx context.Context, actor uint, action string) *Batch {
	corr := logger.CorrelationID(ctx)
	if corr == "" {
		corr = uuid.NewString()
	}
	return &Batch{
		actor:         actor,
		action:        action,
		correlationID: corr,
		recordedAt:    r.now(),
	}
}

// Add snapshots v as the state of entity (kind, id) under the batch action.
func (b *Batch) Add(kind entities.EntityKind, id uint, v any) {
	b.AddAction(kind, id, b.action, v)
}

// AddAction snapshots v under an explicit action name.
func (b *Batch) AddAction(kind entities.EntityKind, id uint, action string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		payload, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	b.events = append(b.events, &entities.AuditEvent{
		EntityKind:    kind,
		EntityID:      id,
		Action:        action,
		ActorID:       b.actor,
		CorrelationID: b.correlationID,
		Payload:       payload,
		RecordedAt:    b.recordedAt,
	})
}

// AddComponents snapshots every component.
func (b *Batch) AddComponents(components []entities.Component) {
	for i := range components {
		b.Add(entities.KindComponent, components[i].ID, &components[i])
	}
}

// Len returns the number of snapshots collected.
func (b *Batch) Len() int {
	return len(b.events)
}

// CorrelationID returns the id shared by every event in the batch.
func (b *Batch) CorrelationID() string {
	return b.correlationID
}

// Commit writes the batch to every sink. Failures are logged and counted and
// never returned: the primary state change has already been committed.
func (r *Recorder) Commit(ctx context.Context, b *Batch) {
	if b == nil || len(b.events) == 0 {
		return
	}
	log := r.log.WithContext(ctx)
	for _, sink := range r.sinks {
		if err := sink.Write(ctx, b.events); err != nil {
			r.metrics.RecordAuditFailure()
			log.Error("audit sink write failed",
				logger.String("sink", sink.Name()),
				logger.String("action", b.action),
				logger.String("correlation_id", b.correlationID),
				logger.Int("events", len(b.events)),
				logger.Error(err))
			continue
		}
	}
	log.Debug("audit batch recorded",
		logger.String("action", b.action),
		logger.Int("events", len(b.events)))
}

// Event is one entry of a history projection.
type Event struct {
	Kind          entities.EntityKind `json:"entity_kind"`
	EntityID      uint                `json:"entity_id"`
	Sequence      uint                `json:"sequence"`
	Action        string              `json:"action"`
	ActorID       uint                `json:"actor_id"`
	CorrelationID string              `json:"correlation_id"`
	Payload       json.RawMessage     `json:"payload"`
	RecordedAt    time.Time           `json:"recorded_at"`
}

// History returns every snapshot of one entity in order.
func (r *Recorder) History(ctx context.Context, kind entities.EntityKind, id uint) ([]Event, error) {
	rows, err := r.repo.History(ctx, kind, id)
	if err != nil {
		return nil, errors.Database("auditlog", "history", err)
	}
	return toEvents(rows), nil
}

// ByCorrelation returns every snapshot written by one operation.
func (r *Recorder) ByCorrelation(ctx context.Context, correlationID string) ([]Event, error) {
	rows, err := r.repo.ByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, errors.Database("auditlog", "by-correlation", err)
	}
	return toEvents(rows), nil
}

func toEvents(rows []entities.AuditEvent) []Event {
	out := make([]Event, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		out = append(out, Event{
			Kind:          row.EntityKind,
			EntityID:      row.EntityID,
			Sequence:      row.Sequence,
			Action:        row.Action,
			ActorID:       row.ActorID,
			CorrelationID: row.CorrelationID,
			Payload:       json.RawMessage(row.Payload),
			RecordedAt:    row.RecordedAt,
		})
	}
	return out
}

// ParseKind validates an entity kind coming from the API.
func ParseKind(s string) (entities.EntityKind, bool) {
	switch k := entities.EntityKind(s); k {
	case entities.KindComponent, entities.KindPairing, entities.KindAllotment,
		entities.KindAllotmentItem, entities.KindFLCRecord, entities.KindFLCBallotUnit:
		return k, true
	}
	return "", false
}

// dbSink appends to the audit_events table.
type dbSink struct {
	repo repository.AuditRepository
}

func (s *dbSink) Name() string { return "database" }

func (s *dbSink) Write(ctx context.Context, events []*entities.AuditEvent) error {
	return s.repo.Append(ctx, events)
}
