package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/auditlog"
)

// AuditHistory handles GET /audit/:kind/:id.
func (c *Controller) AuditHistory(ctx echo.Context) error {
	kind, ok := auditlog.ParseKind(ctx.Param("kind"))
	if !ok {
		return c.badRequest(ctx, "unknown entity kind "+ctx.Param("kind"))
	}
	id, err := idParam(ctx, "id")
	if err != nil {
		return c.badRequest(ctx, "entity id must be a number")
	}
	events, err := c.svc.Audit.History(ctx.Request().Context(), kind, id)
	if err != nil {
		return c.HandleError(ctx, err, "audit history failed")
	}
	return ctx.JSON(http.StatusOK, events)
}

// AuditByCorrelation handles GET /audit/correlation/:id.
func (c *Controller) AuditByCorrelation(ctx echo.Context) error {
	events, err := c.svc.Audit.ByCorrelation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "audit lookup failed")
	}
	return ctx.JSON(http.StatusOK, events)
}
