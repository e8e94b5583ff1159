package entities

import "time"

// EntityKind names the live entity an audit event shadows.
type EntityKind string

const (
	KindComponent     EntityKind = "component"
	KindPairing       EntityKind = "pairing"
	KindAllotment     EntityKind = "allotment"
	KindAllotmentItem EntityKind = "allotment_item"
	KindFLCRecord     EntityKind = "flc_record"
	KindFLCBallotUnit EntityKind = "flc_ballot_unit"
)

// AuditEvent is an append-only snapshot of an entity at a state change.
// Rows are never updated or deleted.
type AuditEvent struct {
	ID            uint       `gorm:"primaryKey"`
	EntityKind    EntityKind `gorm:"size:32;not null;uniqueIndex:idx_audit_seq"`
	EntityID      uint       `gorm:"not null;uniqueIndex:idx_audit_seq"`
	Sequence      uint       `gorm:"not null;uniqueIndex:idx_audit_seq"`
	Action        string     `gorm:"size:64;not null"`
	ActorID       uint       `gorm:"not null;index"`
	CorrelationID string     `gorm:"size:64;index"`
	Payload       []byte     `gorm:"not null"`
	RecordedAt    time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM.
func (AuditEvent) TableName() string {
	return "audit_events"
}

// All returns every entity managed by the schema in migration order.
func All() []any {
	return []any{
		&District{},
		&LocalBody{},
		&Warehouse{},
		&PollingStation{},
		&User{},
		&PairingRecord{},
		&Component{},
		&Allotment{},
		&AllotmentItem{},
		&FLCRecord{},
		&FLCBallotUnit{},
		&AuditEvent{},
	}
}
