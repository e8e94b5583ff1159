// Package flc records first level check outcomes. A CU is certified together
// with its DMM and two seals, which binds the four into a new pairing; a BU is
// certified on its own.
package flc

import (
	"context"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/logger"
)

const component = "flc"

// Service implements the CU and BU certification batches.
type Service struct {
	deps *custody.Deps
	log  logger.Logger
}

// NewService creates an FLC service.
func NewService(deps *custody.Deps) *Service {
	return &Service{deps: deps, log: deps.Log.Module(component)}
}

func (s *Service) districtName(ctx context.Context, caller custody.Caller) string {
	u, err := s.deps.Store.Directory.GetUser(ctx, caller.UserID)
	if err != nil {
		return ""
	}
	return s.deps.Names.District(ctx, u.DistrictID)
}
