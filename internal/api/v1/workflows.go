package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/allotment"
	"github.com/evmtrack/evmtrack/internal/commissioning"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/flc"
)

// CertifyCUs handles POST /flc/cu and returns the FLC certificate.
func (c *Controller) CertifyCUs(ctx echo.Context) error {
	var rows []flc.CURow
	if err := ctx.Bind(&rows); err != nil {
		return c.badRequest(ctx, "request body must be a list of CU rows")
	}
	result, err := c.svc.FLC.CertifyCUs(ctx.Request().Context(), caller(ctx), rows)
	if err != nil {
		return c.HandleError(ctx, err, "CU first level check failed")
	}
	return c.respondWithReport(ctx, http.StatusCreated, result, result.Report)
}

// CertifyBUs handles POST /flc/bu and returns the FLC certificate.
func (c *Controller) CertifyBUs(ctx echo.Context) error {
	var rows []flc.BURow
	if err := ctx.Bind(&rows); err != nil {
		return c.badRequest(ctx, "request body must be a list of BU rows")
	}
	result, err := c.svc.FLC.CertifyBUs(ctx.Request().Context(), caller(ctx), rows)
	if err != nil {
		return c.HandleError(ctx, err, "BU first level check failed")
	}
	return c.respondWithReport(ctx, http.StatusCreated, result, result.Report)
}

// StageAllotment handles POST /allotments/draft.
func (c *Controller) StageAllotment(ctx echo.Context) error {
	var req allotment.Request
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid allotment request")
	}
	result, err := c.svc.Allotments.Stage(ctx.Request().Context(), caller(ctx), req)
	if err != nil {
		return c.HandleError(ctx, err, "allotment staging failed")
	}
	return ctx.JSON(http.StatusCreated, result)
}

// CreateAllotment handles POST /allotments and returns the transfer receipt.
func (c *Controller) CreateAllotment(ctx echo.Context) error {
	var req allotment.Request
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid allotment request")
	}
	result, err := c.svc.Allotments.Create(ctx.Request().Context(), caller(ctx), req)
	if err != nil {
		return c.HandleError(ctx, err, "allotment failed")
	}
	return c.respondWithReport(ctx, http.StatusCreated, result, result.Report)
}

// GetAllotment handles GET /allotments/:id.
func (c *Controller) GetAllotment(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, "allotment id must be a number")
	}
	a, err := c.svc.Allotments.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "allotment lookup failed")
	}
	return ctx.JSON(http.StatusOK, a)
}

// AllotmentQueue handles GET /allotments/queue for the caller.
func (c *Controller) AllotmentQueue(ctx echo.Context) error {
	entries, err := c.svc.Allotments.Queue(ctx.Request().Context(), caller(ctx).UserID)
	if err != nil {
		return c.HandleError(ctx, err, "approval queue failed")
	}
	if entries == nil {
		entries = []allotment.QueueEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

// ApproveAllotment handles POST /allotments/:id/approve.
func (c *Controller) ApproveAllotment(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, "allotment id must be a number")
	}
	a, err := c.svc.Allotments.Approve(ctx.Request().Context(), caller(ctx), id)
	if err != nil {
		return c.HandleError(ctx, err, "allotment approval failed")
	}
	return ctx.JSON(http.StatusOK, a)
}

// RejectRequest carries the rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// RejectAllotment handles POST /allotments/:id/reject.
func (c *Controller) RejectAllotment(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, "allotment id must be a number")
	}
	var req RejectRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid rejection request")
	}
	a, err := c.svc.Allotments.Reject(ctx.Request().Context(), caller(ctx), id, req.Reason)
	if err != nil {
		return c.HandleError(ctx, err, "allotment rejection failed")
	}
	return ctx.JSON(http.StatusOK, a)
}

// Commission handles POST /commissioning and returns the Annexure-8 statement.
func (c *Controller) Commission(ctx echo.Context) error {
	var req commissioning.Request
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid commissioning request")
	}
	result, err := c.svc.Commissioning.Commission(ctx.Request().Context(), caller(ctx), req)
	if err != nil {
		return c.HandleError(ctx, err, "commissioning failed")
	}
	return c.respondWithReport(ctx, http.StatusCreated, result, result.Report)
}

// CommissionReserve handles POST /commissioning/reserve.
func (c *Controller) CommissionReserve(ctx echo.Context) error {
	var req commissioning.ReserveRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid reserve commissioning request")
	}
	result, err := c.svc.Commissioning.CommissionReserve(ctx.Request().Context(), caller(ctx), req)
	if err != nil {
		return c.HandleError(ctx, err, "reserve commissioning failed")
	}
	return ctx.JSON(http.StatusCreated, result)
}

// AdvanceRequest moves a local body's EVMs one status on.
type AdvanceRequest struct {
	LocalBodyID uint                     `json:"local_body_id"`
	From        entities.ComponentStatus `json:"from"`
}

// AdvanceStatus handles POST /decommission/advance.
func (c *Controller) AdvanceStatus(ctx echo.Context) error {
	var req AdvanceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid status advance request")
	}
	result, err := c.svc.Decommission.Advance(ctx.Request().Context(), caller(ctx), req.LocalBodyID, req.From)
	if err != nil {
		return c.HandleError(ctx, err, "status advance failed")
	}
	return ctx.JSON(http.StatusOK, result)
}

// DecommissionRequest lists the EVMs to tear down.
type DecommissionRequest struct {
	LocalBodyID uint     `json:"local_body_id"`
	EVMIDs      []string `json:"evm_ids"`
}

// Decommission handles POST /decommission.
func (c *Controller) Decommission(ctx echo.Context) error {
	var req DecommissionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid decommission request")
	}
	result, err := c.svc.Decommission.Decommission(ctx.Request().Context(), caller(ctx), req.LocalBodyID, req.EVMIDs)
	if err != nil {
		return c.HandleError(ctx, err, "decommissioning failed")
	}
	return ctx.JSON(http.StatusOK, result)
}
