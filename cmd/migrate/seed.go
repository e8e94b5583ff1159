package migrate

import (
	"bytes"
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evmtrack/evmtrack/internal/api/auth"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
)

// Seed is the bootstrap directory. Every row carries an explicit id so a
// seed file can be loaded repeatedly.
type Seed struct {
	Districts       []District       `yaml:"districts"`
	LocalBodies     []LocalBody      `yaml:"local_bodies"`
	Warehouses      []Warehouse      `yaml:"warehouses"`
	PollingStations []PollingStation `yaml:"polling_stations"`
	Users           []User           `yaml:"users"`
}

type District struct {
	ID   uint   `yaml:"id"`
	Name string `yaml:"name"`
}

type LocalBody struct {
	ID         uint                   `yaml:"id"`
	Name       string                 `yaml:"name"`
	DistrictID uint                   `yaml:"district_id"`
	Type       entities.LocalBodyType `yaml:"type"`
}

type Warehouse struct {
	ID         uint   `yaml:"id"`
	Name       string `yaml:"name"`
	DistrictID uint   `yaml:"district_id"`
}

type PollingStation struct {
	ID          uint   `yaml:"id"`
	LocalBodyID uint   `yaml:"local_body_id"`
	Number      int    `yaml:"number"`
	Name        string `yaml:"name"`
	Approved    bool   `yaml:"approved"`
}

// User carries a plain password; it is hashed with bcrypt before storing.
type User struct {
	ID          uint          `yaml:"id"`
	Username    string        `yaml:"username"`
	DisplayName string        `yaml:"display_name"`
	Role        entities.Role `yaml:"role"`
	Password    string        `yaml:"password"`
	DistrictID  *uint         `yaml:"district_id"`
	LocalBodyID *uint         `yaml:"local_body_id"`
	WarehouseID *uint         `yaml:"warehouse_id"`
}

// Counts reports how many rows of each kind were written.
type Counts struct {
	Districts       int
	LocalBodies     int
	Warehouses      int
	PollingStations int
	Users           int
}

var roles = map[entities.Role]bool{
	entities.RoleSEC:        true,
	entities.RoleDEO:        true,
	entities.RoleBO:         true,
	entities.RoleRO:         true,
	entities.RolePO:         true,
	entities.RoleFLCOfficer: true,
	entities.RoleECIL:       true,
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("migrate").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document. Unknown keys are rejected.
func ParseSeed(data []byte) (*Seed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, errors.New(err).
			Component("migrate").
			Category(errors.CategoryValidation).
			Context("operation", "parse-seed").
			Build()
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	batch := errors.NewBatch("seed")
	for i, d := range s.Districts {
		if d.ID == 0 || d.Name == "" {
			batch.Add("districts[%d]: id and name are required", i)
		}
	}
	for i, lb := range s.LocalBodies {
		if lb.ID == 0 || lb.Name == "" || lb.DistrictID == 0 {
			batch.Add("local_bodies[%d]: id, name and district_id are required", i)
		}
		if lb.Type != entities.LocalBodyBlock && lb.Type != entities.LocalBodyMunicipality {
			batch.Add("local_bodies[%d]: type %q is not block or municipality", i, lb.Type)
		}
	}
	for i, w := range s.Warehouses {
		if w.ID == 0 || w.Name == "" || w.DistrictID == 0 {
			batch.Add("warehouses[%d]: id, name and district_id are required", i)
		}
	}
	for i, ps := range s.PollingStations {
		if ps.ID == 0 || ps.LocalBodyID == 0 || ps.Number <= 0 {
			batch.Add("polling_stations[%d]: id, local_body_id and a positive number are required", i)
		}
	}
	seen := make(map[string]bool, len(s.Users))
	for i, u := range s.Users {
		if u.ID == 0 || u.Username == "" || u.Password == "" {
			batch.Add("users[%d]: id, username and password are required", i)
		}
		if !roles[u.Role] {
			batch.Add("users[%d]: unknown role %q", i, u.Role)
		}
		if seen[u.Username] {
			batch.Add("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
	}
	return batch.OrNil()
}

// Apply upserts the seed in one transaction.
func (s *Seed) Apply(ctx context.Context, store *repository.Store) (Counts, error) {
	var counts Counts
	err := store.Transaction(ctx, func(tx *repository.Store) error {
		dir := tx.Directory
		for _, d := range s.Districts {
			if err := dir.UpsertDistrict(ctx, &entities.District{ID: d.ID, Name: d.Name}); err != nil {
				return errors.Database("migrate", "seed-district", err)
			}
			counts.Districts++
		}
		for _, lb := range s.LocalBodies {
			row := &entities.LocalBody{ID: lb.ID, Name: lb.Name, DistrictID: lb.DistrictID, Type: lb.Type}
			if err := dir.UpsertLocalBody(ctx, row); err != nil {
				return errors.Database("migrate", "seed-local-body", err)
			}
			counts.LocalBodies++
		}
		for _, w := range s.Warehouses {
			if err := dir.UpsertWarehouse(ctx, &entities.Warehouse{ID: w.ID, Name: w.Name, DistrictID: w.DistrictID}); err != nil {
				return errors.Database("migrate", "seed-warehouse", err)
			}
			counts.Warehouses++
		}
		for _, ps := range s.PollingStations {
			status := entities.PollingStationPending
			if ps.Approved {
				status = entities.PollingStationApproved
			}
			row := &entities.PollingStation{ID: ps.ID, LocalBodyID: ps.LocalBodyID, Number: ps.Number, Name: ps.Name, Status: status}
			if err := dir.UpsertPollingStation(ctx, row); err != nil {
				return errors.Database("migrate", "seed-polling-station", err)
			}
			counts.PollingStations++
		}
		for _, u := range s.Users {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return err
			}
			row := &entities.User{
				ID:           u.ID,
				Username:     u.Username,
				DisplayName:  u.DisplayName,
				Role:         u.Role,
				DistrictID:   u.DistrictID,
				LocalBodyID:  u.LocalBodyID,
				WarehouseID:  u.WarehouseID,
				PasswordHash: hash,
			}
			if err := dir.UpsertUser(ctx, row); err != nil {
				return errors.Database("migrate", "seed-user", err)
			}
			counts.Users++
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}
