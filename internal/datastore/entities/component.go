package entities

import (
	"regexp"
	"time"
)

// ComponentType tags the physical role of a component.
type ComponentType string

const (
	TypeCU              ComponentType = "CU"
	TypeBU              ComponentType = "BU"
	TypeDMM             ComponentType = "DMM"
	TypeDMMSeal         ComponentType = "DMM_SEAL"
	TypePinkPaperSeal   ComponentType = "PINK_PAPER_SEAL"
	TypeBUPinkPaperSeal ComponentType = "BU_PINK_PAPER_SEAL"
)

// Valid reports whether t is one of the known component types.
func (t ComponentType) Valid() bool {
	switch t {
	case TypeCU, TypeBU, TypeDMM, TypeDMMSeal, TypePinkPaperSeal, TypeBUPinkPaperSeal:
		return true
	}
	return false
}

// serialPattern accepts 2-40 characters starting with a letter or digit.
var serialPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/_-]{1,39}$`)

// ValidSerial reports whether s is a well-formed serial number. Seals created
// during FLC and commissioning follow the same format as registered units.
func ValidSerial(s string) bool {
	return serialPattern.MatchString(s)
}

// ComponentStatus is the lifecycle state of a component.
type ComponentStatus string

const (
	StatusFLCPending   ComponentStatus = "FLC_Pending"
	StatusFLCPassed    ComponentStatus = "FLC_Passed"
	StatusFLCFailed    ComponentStatus = "FLC_Failed"
	StatusInTransit    ComponentStatus = "FLC_Passed/Temp"
	StatusReserve      ComponentStatus = "reserve"
	StatusPolling      ComponentStatus = "polling"
	StatusPolled       ComponentStatus = "polled"
	StatusCounted      ComponentStatus = "counted"
	StatusDamaged      ComponentStatus = "damaged"
	StatusReturnedECIL ComponentStatus = "Returned to ECIL"
	StatusTreasury     ComponentStatus = "treasury"
)

// Component is a physical unit tracked by serial number.
type Component struct {
	ID                 uint            `gorm:"primaryKey"`
	Serial             string          `gorm:"size:64;not null;uniqueIndex"`
	Type               ComponentType   `gorm:"size:32;not null;index"`
	Status             ComponentStatus `gorm:"size:32;not null;index"`
	DateOfManufacture  *time.Time
	BoxNo              string `gorm:"size:32"`
	OrderNo            string `gorm:"size:64;index"`
	Remarks            string `gorm:"size:500"`
	CurrentUserID      *uint  `gorm:"index"`
	CurrentWarehouseID *uint  `gorm:"index"`
	LastReceivedFromID *uint
	DateOfReceipt      *time.Time
	PairingID          *uint `gorm:"index"`
	SECApproved        bool  `gorm:"not null;default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Pairing *PairingRecord `gorm:"foreignKey:PairingID"`
}

// TableName returns the table name for GORM.
func (Component) TableName() string {
	return "components"
}

// OwnedBy reports whether userID currently holds the component.
func (c *Component) OwnedBy(userID uint) bool {
	return c.CurrentUserID != nil && *c.CurrentUserID == userID
}
