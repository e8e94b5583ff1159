package entities

import "time"

// AllotmentType encodes the directional hierarchy step of a transfer.
type AllotmentType string

const (
	AllotSECToDEO AllotmentType = "SEC_TO_DEO"
	AllotDEOToDEO AllotmentType = "DEO_TO_DEO"
	AllotDEOToBO  AllotmentType = "DEO_TO_BO"
	AllotBOToRO   AllotmentType = "BO_TO_RO"
	AllotROToBO   AllotmentType = "RO_TO_BO"  // return
	AllotBOToDEO  AllotmentType = "BO_TO_DEO" // return
)

// Valid reports whether t is a known allotment type.
func (t AllotmentType) Valid() bool {
	switch t {
	case AllotSECToDEO, AllotDEOToDEO, AllotDEOToBO, AllotBOToRO, AllotROToBO, AllotBOToDEO:
		return true
	}
	return false
}

// IsReturn reports whether the transfer moves components back up the hierarchy.
func (t AllotmentType) IsReturn() bool {
	return t == AllotROToBO || t == AllotBOToDEO
}

// AllotmentStatus is the state of an allotment.
type AllotmentStatus string

const (
	AllotmentDraft    AllotmentStatus = "draft"
	AllotmentPending  AllotmentStatus = "pending"
	AllotmentApproved AllotmentStatus = "approved"
	AllotmentRejected AllotmentStatus = "rejected"
)

// Allotment is a proposed or executed custody transfer.
type Allotment struct {
	ID                  uint            `gorm:"primaryKey"`
	Type                AllotmentType   `gorm:"size:32;not null;index"`
	Status              AllotmentStatus `gorm:"size:16;not null;index"`
	FromUserID          uint            `gorm:"not null;index"`
	ToUserID            *uint           `gorm:"index"`
	FromDistrictID      *uint
	ToDistrictID        *uint
	FromLocalBodyID     *uint
	ToLocalBodyID       *uint
	Temporary           bool   `gorm:"not null;default:false"`
	TemporaryName       string `gorm:"size:200"`
	TemporaryReason     string `gorm:"size:500"`
	OriginalAllotmentID *uint
	OrderNo             string `gorm:"size:64"`
	InitiatedByID       uint   `gorm:"not null"`
	InitiatedAt         time.Time
	ApprovedByID        *uint
	ApprovedAt          *time.Time
	RejectionReason     string `gorm:"size:500"`

	Items []AllotmentItem `gorm:"foreignKey:AllotmentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (Allotment) TableName() string {
	return "allotments"
}

// AllotmentItem is one component moved by an allotment.
type AllotmentItem struct {
	ID          uint   `gorm:"primaryKey"`
	AllotmentID uint   `gorm:"not null;index"`
	ComponentID uint   `gorm:"not null;index"`
	Remarks     string `gorm:"size:500"`
	// PriorStatus is the component status before it went in transit. A
	// rejection restores it when reverting is enabled.
	PriorStatus ComponentStatus `gorm:"size:32;not null"`

	Component *Component `gorm:"foreignKey:ComponentID"`
}

// TableName returns the table name for GORM.
func (AllotmentItem) TableName() string {
	return "allotment_items"
}
