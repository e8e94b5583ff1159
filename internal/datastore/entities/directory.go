package entities

import "time"

// Role is the position of a user in the election administration hierarchy.
type Role string

const (
	RoleSEC        Role = "SEC"
	RoleDEO        Role = "DEO"
	RoleBO         Role = "BO"
	RoleRO         Role = "RO"
	RolePO         Role = "PO"
	RoleFLCOfficer Role = "FLC_OFFICER"
	RoleECIL       Role = "ECIL"
)

// District is the top administrative unit below the state.
type District struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:200;not null;uniqueIndex"`
}

// TableName returns the table name for GORM.
func (District) TableName() string {
	return "districts"
}

// LocalBodyType distinguishes blocks from municipalities.
type LocalBodyType string

const (
	LocalBodyBlock        LocalBodyType = "block"
	LocalBodyMunicipality LocalBodyType = "municipality"
)

// LocalBody is a block or municipality inside a district.
type LocalBody struct {
	ID         uint          `gorm:"primaryKey"`
	Name       string        `gorm:"size:200;not null"`
	DistrictID uint          `gorm:"not null;index"`
	Type       LocalBodyType `gorm:"size:16;not null"`
}

// TableName returns the table name for GORM.
func (LocalBody) TableName() string {
	return "local_bodies"
}

// Warehouse is a storage site for components.
type Warehouse struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:200;not null"`
	DistrictID uint   `gorm:"not null;index"`
}

// TableName returns the table name for GORM.
func (Warehouse) TableName() string {
	return "warehouses"
}

// PollingStationStatus tracks approval of a polling station.
type PollingStationStatus string

const (
	PollingStationPending  PollingStationStatus = "pending"
	PollingStationApproved PollingStationStatus = "approved"
)

// PollingStation is a commissioning target, numbered within its local body.
type PollingStation struct {
	ID          uint                 `gorm:"primaryKey"`
	LocalBodyID uint                 `gorm:"not null;uniqueIndex:idx_ps_number"`
	Number      int                  `gorm:"not null;uniqueIndex:idx_ps_number"`
	Name        string               `gorm:"size:200"`
	Status      PollingStationStatus `gorm:"size:16;not null;default:pending"`
}

// TableName returns the table name for GORM.
func (PollingStation) TableName() string {
	return "polling_stations"
}

// User is a custodian or officer.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:100;not null;uniqueIndex"`
	DisplayName  string `gorm:"size:200"`
	Role         Role   `gorm:"size:16;not null;index"`
	DistrictID   *uint
	LocalBodyID  *uint
	WarehouseID  *uint
	PasswordHash string `gorm:"size:100;not null"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}
