package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles every repository bound to one database handle. Workflows run
// their mutating phase through Transaction so all repositories share the tx.
type Store struct {
	db *gorm.DB

	Components ComponentRepository
	Pairings   PairingRepository
	Allotments AllotmentRepository
	FLC        FLCRepository
	Directory  DirectoryRepository
	Audit      AuditRepository
}

// NewStore creates a Store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Components: NewComponentRepository(db),
		Pairings:   NewPairingRepository(db),
		Allotments: NewAllotmentRepository(db),
		FLC:        NewFLCRepository(db),
		Directory:  NewDirectoryRepository(db),
		Audit:      NewAuditRepository(db),
	}
}

// Transaction runs fn with a Store bound to a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}
