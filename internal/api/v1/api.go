// Package api implements the custody JSON API under /api/v1.
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/allotment"
	"github.com/evmtrack/evmtrack/internal/api/auth"
	"github.com/evmtrack/evmtrack/internal/auditlog"
	"github.com/evmtrack/evmtrack/internal/commissioning"
	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/decommission"
	"github.com/evmtrack/evmtrack/internal/flc"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/registry"
)

// Services are the workflow services the controller exposes.
type Services struct {
	Registry      *registry.Service
	FLC           *flc.Service
	Allotments    *allotment.Service
	Commissioning *commissioning.Service
	Decommission  *decommission.Service
	Audit         *auditlog.Recorder
}

// NewServices builds every workflow service on deps.
func NewServices(deps *custody.Deps, settings *conf.CustodySettings) Services {
	return Services{
		Registry:      registry.NewService(deps, settings.ManufacturerUserID),
		FLC:           flc.NewService(deps),
		Allotments:    allotment.NewService(deps, allotment.Options{RevertOnReject: settings.RevertOnReject}),
		Commissioning: commissioning.NewService(deps),
		Decommission:  decommission.NewService(deps),
		Audit:         deps.Audit,
	}
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	svc       Services
	auth      *auth.Service
	authMW    *auth.Middleware
	reportDir string
	logger    logger.Logger
}

// New creates the controller and registers every /api/v1 route on e.
// Rendered reports are staged in reportDir while they are sent.
func New(e *echo.Echo, svc Services, authService *auth.Service, reportDir string, log logger.Logger) *Controller {
	c := &Controller{
		Echo:      e,
		svc:       svc,
		auth:      authService,
		authMW:    auth.NewMiddleware(authService),
		reportDir: reportDir,
		logger:    log.Module("api"),
	}
	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	g := c.Group

	g.POST("/auth/login", c.Login)
	g.POST("/auth/refresh", c.Refresh)
	g.POST("/auth/logout", c.Logout)

	p := g.Group("", c.authMW.Authenticate)

	p.POST("/components/register", c.RegisterComponents)
	p.GET("/components", c.ListComponents)
	p.GET("/components/:serial", c.GetComponent)
	p.POST("/components/sec-approve", c.SECApprove, auth.RequireRole(entities.RoleSEC))
	p.POST("/components/:serial/damage", c.MarkDamaged)
	p.POST("/components/:serial/ecil-return", c.ReturnToECIL)

	p.POST("/flc/cu", c.CertifyCUs)
	p.POST("/flc/bu", c.CertifyBUs)

	p.POST("/allotments/draft", c.StageAllotment)
	p.POST("/allotments", c.CreateAllotment)
	p.GET("/allotments/queue", c.AllotmentQueue)
	p.GET("/allotments/:id", c.GetAllotment)
	p.POST("/allotments/:id/approve", c.ApproveAllotment)
	p.POST("/allotments/:id/reject", c.RejectAllotment)

	p.POST("/commissioning", c.Commission)
	p.POST("/commissioning/reserve", c.CommissionReserve)

	p.POST("/decommission/advance", c.AdvanceStatus)
	p.POST("/decommission", c.Decommission)

	p.GET("/audit/correlation/:id", c.AuditByCorrelation)
	p.GET("/audit/:kind/:id", c.AuditHistory)
}
