// Package allotment implements the custody transfer protocol: a custodian
// proposes an allotment, the recipient side approves or rejects it, and on
// approval every component of each affected pairing changes hands together.
//
// A proposal may be staged first as a draft. Finalising the draft releases the
// components that did not make it into the final set.
package allotment

import (
	"context"
	"time"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

const component = "allotment"

// Options tune the allotment workflow.
type Options struct {
	// RevertOnReject restores in-transit components to their prior status
	// when an allotment is rejected. When false they stay in transit.
	RevertOnReject bool
}

// Service implements the allotment workflow.
type Service struct {
	deps *custody.Deps
	opts Options
	log  logger.Logger
}

// NewService creates an allotment service.
func NewService(deps *custody.Deps, opts Options) *Service {
	return &Service{deps: deps, opts: opts, log: deps.Log.Module(component)}
}

// Item names one component to move.
type Item struct {
	Serial  string `json:"serial"`
	Remarks string `json:"remarks"`
}

// Request proposes a custody transfer. Exactly one of ToUserID or the
// temporary recipient (TemporaryName with TemporaryReason) must be set.
type Request struct {
	Type                entities.AllotmentType `json:"type"`
	Items               []Item                 `json:"items"`
	ToUserID            *uint                  `json:"to_user_id"`
	TemporaryName       string                 `json:"temporary_name"`
	TemporaryReason     string                 `json:"temporary_reason"`
	FromDistrictID      *uint                  `json:"from_district_id"`
	ToDistrictID        *uint                  `json:"to_district_id"`
	FromLocalBodyID     *uint                  `json:"from_local_body_id"`
	ToLocalBodyID       *uint                  `json:"to_local_body_id"`
	OriginalAllotmentID *uint                  `json:"original_allotment_id"`
	OrderNo             string                 `json:"order_no"`
	// DraftID finalises a staged draft. Ignored by Stage.
	DraftID *uint `json:"draft_id"`
}

// Temporary reports whether the recipient is not a system user.
func (r *Request) Temporary() bool {
	return r.TemporaryName != "" || r.TemporaryReason != ""
}

// Result is a committed allotment and its receipt.
type Result struct {
	Allotment *entities.Allotment `json:"allotment"`
	// Released lists components returned from a finalised draft.
	Released []string          `json:"released,omitempty"`
	Report   *custody.Rendered `json:"-"`
}

// Get returns an allotment with its items.
func (s *Service) Get(ctx context.Context, id uint) (*entities.Allotment, error) {
	a, err := s.deps.Store.Allotments.Get(ctx, id)
	if err != nil {
		return nil, custody.LookupError(component, "allotment", err)
	}
	return a, nil
}

// checkShape validates the request fields that need no lookups.
func checkShape(req *Request) error {
	if !req.Type.Valid() {
		return errors.ValidationError("unknown allotment type " + string(req.Type))
	}
	if len(req.Items) == 0 {
		return errors.ValidationError("at least one component is required")
	}
	switch {
	case req.ToUserID != nil && req.Temporary():
		return errors.ValidationError("an allotment goes either to a user or to a temporary recipient, not both")
	case req.ToUserID == nil && !req.Temporary():
		return errors.ValidationError("a recipient user or a temporary recipient is required")
	case req.Temporary() && (req.TemporaryName == "" || req.TemporaryReason == ""):
		return errors.ValidationError("a temporary allotment needs both a recipient name and a reason")
	}
	if req.OriginalAllotmentID != nil && !req.Type.IsReturn() {
		return errors.ValidationError("only return allotments may reference an original allotment")
	}
	seen := make(map[string]bool, len(req.Items))
	for _, it := range req.Items {
		if it.Serial == "" {
			return errors.ValidationError("component serial is required")
		}
		if seen[it.Serial] {
			return errors.ValidationError("component " + it.Serial + " is listed twice")
		}
		seen[it.Serial] = true
	}
	return nil
}

// observe wraps custody.Deps.Observe for the named operation.
func (s *Service) observe(op string, start time.Time, err *error) {
	s.deps.Observe("allotment."+op, start, err)
}
