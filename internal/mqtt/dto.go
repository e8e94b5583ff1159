package mqtt

import (
	"encoding/json"
	"time"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// CustodyEventDTO is the JSON payload published for every audit event.
//
// Field names are part of the MQTT contract consumed by district dashboards.
type CustodyEventDTO struct {
	EntityKind    string          `json:"entity_kind"`
	EntityID      uint            `json:"entity_id"`
	Sequence      uint            `json:"sequence"`
	Action        string          `json:"action"`
	ActorID       uint            `json:"actor_id"`
	CorrelationID string          `json:"correlation_id"`
	RecordedAt    time.Time       `json:"recorded_at"`
	Snapshot      json.RawMessage `json:"snapshot"`
}

// NewCustodyEventDTO converts an audit event into its published form.
func NewCustodyEventDTO(e *entities.AuditEvent) CustodyEventDTO {
	return CustodyEventDTO{
		EntityKind:    string(e.EntityKind),
		EntityID:      e.EntityID,
		Sequence:      e.Sequence,
		Action:        e.Action,
		ActorID:       e.ActorID,
		CorrelationID: e.CorrelationID,
		RecordedAt:    e.RecordedAt,
		Snapshot:      json.RawMessage(e.Payload),
	}
}
