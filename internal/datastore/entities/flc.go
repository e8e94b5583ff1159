package entities

import "time"

// FLCRecord is one first level check of a CU together with its DMM and seals.
type FLCRecord struct {
	ID              uint      `gorm:"primaryKey"`
	CUID            uint      `gorm:"column:cu_id;not null;index"`
	DMMID           uint      `gorm:"column:dmm_id;not null;index"`
	DMMSealID       uint      `gorm:"column:dmm_seal_id;not null"`
	PinkPaperSealID uint      `gorm:"not null"`
	PairingID       uint      `gorm:"not null;index"`
	BoxNo           string    `gorm:"size:32"`
	Passed          bool      `gorm:"not null"`
	Remarks         string    `gorm:"size:500"`
	TestedByID      uint      `gorm:"not null"`
	TestedAt        time.Time `gorm:"index"`
}

// TableName returns the table name for GORM.
func (FLCRecord) TableName() string {
	return "flc_records"
}

// FLCBallotUnit is one first level check of a BU.
type FLCBallotUnit struct {
	ID         uint      `gorm:"primaryKey"`
	BUID       uint      `gorm:"column:bu_id;not null;index"`
	BoxNo      string    `gorm:"size:32"`
	Passed     bool      `gorm:"not null"`
	Remarks    string    `gorm:"size:500"`
	TestedByID uint      `gorm:"not null"`
	TestedAt   time.Time `gorm:"index"`
}

// TableName returns the table name for GORM.
func (FLCBallotUnit) TableName() string {
	return "flc_ballot_units"
}
