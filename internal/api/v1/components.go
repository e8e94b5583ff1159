package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/registry"
)

// SerialsRequest names a set of components.
type SerialsRequest struct {
	Serials []string `json:"serials"`
}

// RemarksRequest carries free-text remarks.
type RemarksRequest struct {
	Remarks string `json:"remarks"`
}

// RegisterComponents handles POST /components/register and returns the
// Annexure-1 receipt.
func (c *Controller) RegisterComponents(ctx echo.Context) error {
	var req registry.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid registration request")
	}
	result, err := c.svc.Registry.Register(ctx.Request().Context(), caller(ctx), req)
	if err != nil {
		return c.HandleError(ctx, err, "registration failed")
	}
	return c.respondWithReport(ctx, http.StatusCreated, result, result.Report)
}

// GetComponent handles GET /components/:serial.
func (c *Controller) GetComponent(ctx echo.Context) error {
	comp, err := c.svc.Registry.Get(ctx.Request().Context(), ctx.Param("serial"))
	if err != nil {
		return c.HandleError(ctx, err, "component lookup failed")
	}
	return ctx.JSON(http.StatusOK, comp)
}

// ListComponents handles GET /components?owner_id=&status=&type=&order_no=&limit=&offset=.
// owner_id=me selects the caller's own components.
func (c *Controller) ListComponents(ctx echo.Context) error {
	filter := repository.ComponentFilter{
		Status:  entities.ComponentStatus(ctx.QueryParam("status")),
		Type:    entities.ComponentType(ctx.QueryParam("type")),
		OrderNo: ctx.QueryParam("order_no"),
	}
	if owner := ctx.QueryParam("owner_id"); owner == "me" {
		filter.OwnerID = caller(ctx).UserID
	} else if owner != "" {
		id, err := strconv.ParseUint(owner, 10, 64)
		if err != nil {
			return c.badRequest(ctx, "owner_id must be a number or \"me\"")
		}
		filter.OwnerID = uint(id)
	}
	var err error
	if filter.Limit, err = intParam(ctx, "limit"); err != nil {
		return c.badRequest(ctx, "limit must be a non-negative number")
	}
	if filter.Offset, err = intParam(ctx, "offset"); err != nil {
		return c.badRequest(ctx, "offset must be a non-negative number")
	}

	found, err := c.svc.Registry.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "component listing failed")
	}
	return ctx.JSON(http.StatusOK, found)
}

// SECApprove handles POST /components/sec-approve.
func (c *Controller) SECApprove(ctx echo.Context) error {
	var req SerialsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid approval request")
	}
	approved, err := c.svc.Registry.SECApprove(ctx.Request().Context(), caller(ctx), req.Serials)
	if err != nil {
		return c.HandleError(ctx, err, "SEC approval failed")
	}
	return ctx.JSON(http.StatusOK, approved)
}

// MarkDamaged handles POST /components/:serial/damage.
func (c *Controller) MarkDamaged(ctx echo.Context) error {
	var req RemarksRequest
	if err := ctx.Bind(&req); err != nil {
		return c.badRequest(ctx, "invalid damage request")
	}
	comp, err := c.svc.Registry.MarkDamaged(ctx.Request().Context(), caller(ctx), ctx.Param("serial"), req.Remarks)
	if err != nil {
		return c.HandleError(ctx, err, "damage marking failed")
	}
	return ctx.JSON(http.StatusOK, comp)
}

// ReturnToECIL handles POST /components/:serial/ecil-return.
func (c *Controller) ReturnToECIL(ctx echo.Context) error {
	comp, err := c.svc.Registry.ReturnToECIL(ctx.Request().Context(), caller(ctx), ctx.Param("serial"))
	if err != nil {
		return c.HandleError(ctx, err, "ECIL return failed")
	}
	return ctx.JSON(http.StatusOK, comp)
}

func intParam(ctx echo.Context, name string) (int, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < 0 {
		err = strconv.ErrRange
	}
	return n, err
}

func idParam(ctx echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	return uint(id), err
}
