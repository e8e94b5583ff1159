package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// bearerTokenParts is the expected number of parts when splitting Authorization header.
const bearerTokenParts = 2

// Context keys for authentication values stored in echo.Context.
// These keys are prefixed with "auth:" to prevent collisions with other packages.
const (
	// CtxKeyCaller holds the custody.Caller of an authenticated request.
	CtxKeyCaller = "auth:caller"
)

// Middleware authenticates API requests with bearer access tokens.
type Middleware struct {
	service *Service
	log     logger.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service, log: service.log}
}

// Authenticate requires a valid access token and stores the caller in the
// request context.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		ip := c.RealIP()

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			m.log.Info("Authentication required but not provided",
				logger.String("path", path),
				logger.String("ip", ip))
			c.Response().Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "Authentication required",
			})
		}

		parts := strings.SplitN(authHeader, " ", bearerTokenParts)
		if len(parts) != bearerTokenParts || !strings.EqualFold(parts[0], "bearer") {
			m.log.Warn("Malformed Authorization header",
				logger.String("path", path),
				logger.String("ip", ip))
			c.Response().Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "Invalid Authorization header",
			})
		}

		caller, err := m.service.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			m.log.Warn("Token validation failed",
				logger.String("path", path),
				logger.String("ip", ip))
			c.Response().Header().Set("WWW-Authenticate",
				`Bearer realm="api", error="invalid_token", error_description="Invalid or expired token"`)
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "Invalid or expired token",
			})
		}

		c.Set(CtxKeyCaller, caller)
		return next(c)
	}
}

// RequireRole rejects authenticated callers whose role is not in roles.
func RequireRole(roles ...entities.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Authentication required",
				})
			}
			if !slices.Contains(roles, caller.Role) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "role " + string(caller.Role) + " may not perform this operation",
				})
			}
			return next(c)
		}
	}
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(c echo.Context) (custody.Caller, bool) {
	caller, ok := c.Get(CtxKeyCaller).(custody.Caller)
	return caller, ok
}
