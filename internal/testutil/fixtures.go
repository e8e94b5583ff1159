package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
)

// Fixture is a seeded directory: one district with a block, two warehouses,
// six approved polling stations and one user per role.
type Fixture struct {
	DB    *gorm.DB
	Store *repository.Store

	District   entities.District
	LocalBody  entities.LocalBody
	Warehouse  entities.Warehouse
	Warehouse2 entities.Warehouse
	Stations   []entities.PollingStation

	SEC          entities.User
	DEO          entities.User
	BO           entities.User
	BO2          entities.User
	RO           entities.User
	FLCOfficer   entities.User
	Manufacturer entities.User
}

// NewFixture creates a test database and seeds the directory.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	db := NewTestDB(t)
	f := &Fixture{DB: db, Store: repository.NewStore(db)}

	f.District = entities.District{Name: "Thrissur"}
	require.NoError(t, db.Create(&f.District).Error)

	f.LocalBody = entities.LocalBody{Name: "Chalakudy", DistrictID: f.District.ID, Type: entities.LocalBodyBlock}
	require.NoError(t, db.Create(&f.LocalBody).Error)

	f.Warehouse = entities.Warehouse{Name: "District Strong Room", DistrictID: f.District.ID}
	f.Warehouse2 = entities.Warehouse{Name: "Block Strong Room", DistrictID: f.District.ID}
	require.NoError(t, db.Create(&f.Warehouse).Error)
	require.NoError(t, db.Create(&f.Warehouse2).Error)

	for n := 1; n <= 6; n++ {
		f.Stations = append(f.Stations, entities.PollingStation{
			LocalBodyID: f.LocalBody.ID,
			Number:      n,
			Name:        "Station",
			Status:      entities.PollingStationApproved,
		})
	}
	require.NoError(t, db.Create(&f.Stations).Error)

	mk := func(name string, role entities.Role, warehouse *uint) entities.User {
		u := entities.User{
			Username:     name,
			DisplayName:  name,
			Role:         role,
			DistrictID:   &f.District.ID,
			LocalBodyID:  &f.LocalBody.ID,
			WarehouseID:  warehouse,
			PasswordHash: "x",
		}
		require.NoError(t, db.Create(&u).Error)
		return u
	}
	f.SEC = mk("sec", entities.RoleSEC, nil)
	f.DEO = mk("deo", entities.RoleDEO, &f.Warehouse.ID)
	f.BO = mk("bo", entities.RoleBO, &f.Warehouse2.ID)
	f.BO2 = mk("bo2", entities.RoleBO, nil)
	f.RO = mk("ro", entities.RoleRO, &f.Warehouse2.ID)
	f.FLCOfficer = mk("flc", entities.RoleFLCOfficer, &f.Warehouse.ID)
	f.Manufacturer = mk("ecil", entities.RoleECIL, nil)

	return f
}

// AddComponent inserts a component held by owner.
func (f *Fixture) AddComponent(t *testing.T, serial string, typ entities.ComponentType, status entities.ComponentStatus, owner uint) *entities.Component {
	t.Helper()
	c := &entities.Component{
		Serial:             serial,
		Type:               typ,
		Status:             status,
		CurrentUserID:      &owner,
		CurrentWarehouseID: &f.Warehouse.ID,
	}
	require.NoError(t, f.Store.Components.CreateBatch(context.Background(), []*entities.Component{c}))
	return c
}

// AddPairing creates a pairing and attaches the given components to it.
func (f *Fixture) AddPairing(t *testing.T, createdBy uint, members ...*entities.Component) *entities.PairingRecord {
	t.Helper()
	ctx := context.Background()
	p := &entities.PairingRecord{CreatedByID: createdBy, CreatedAt: time.Now()}
	require.NoError(t, f.Store.Pairings.Create(ctx, p))
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
		m.PairingID = &p.ID
	}
	require.NoError(t, f.Store.Components.UpdateFields(ctx, ids, map[string]any{"pairing_id": p.ID}))
	return p
}

// Component reloads a component by serial.
func (f *Fixture) Component(t *testing.T, serial string) *entities.Component {
	t.Helper()
	c, err := f.Store.Components.GetBySerial(context.Background(), serial)
	require.NoError(t, err)
	return c
}

// Station returns the seeded polling station with number n.
func (f *Fixture) Station(n int) entities.PollingStation {
	return f.Stations[n-1]
}
