package entities

import "time"

// PairingRecord binds a CU, DMM, their seals and later BUs into one unit of custody.
// A pairing with PollingStationID set is a commissioned EVM.
type PairingRecord struct {
	ID               uint    `gorm:"primaryKey"`
	EVMID            *string `gorm:"column:evm_id;size:64;uniqueIndex"`
	PollingStationID *uint   `gorm:"index"`
	CreatedByID      uint    `gorm:"not null"`
	CreatedAt        time.Time
	CompletedByID    *uint
	CompletedAt      *time.Time

	Components     []Component     `gorm:"foreignKey:PairingID"`
	PollingStation *PollingStation `gorm:"foreignKey:PollingStationID"`
}

// TableName returns the table name for GORM.
func (PairingRecord) TableName() string {
	return "pairing_records"
}

// Commissioned reports whether the pairing has been bound to a polling station.
func (p *PairingRecord) Commissioned() bool {
	return p.PollingStationID != nil || (p.EVMID != nil && *p.EVMID != "")
}
