package repository

import (
	"context"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

// AllotmentRepository provides access to allotments and their items.
type AllotmentRepository interface {
	// Create inserts the allotment together with its items.
	Create(ctx context.Context, a *entities.Allotment) error
	// Get loads an allotment with its items and their components.
	Get(ctx context.Context, id uint) (*entities.Allotment, error)
	// Resolve moves an allotment out of from. ErrStaleState when the status changed.
	Resolve(ctx context.Context, id uint, from entities.AllotmentStatus, fields map[string]any) error
	// Delete removes an allotment and its items.
	Delete(ctx context.Context, id uint) error
	// ListPendingFor returns pending, unapproved allotments addressed to userID.
	ListPendingFor(ctx context.Context, userID uint) ([]entities.Allotment, error)
}
