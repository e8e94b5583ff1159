package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/api/auth"
	"github.com/evmtrack/evmtrack/internal/custody"
)

// LoginRequest carries user credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token for refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /auth/login.
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return c.badRequest(ctx, "username and password are required")
	}
	pair, err := c.auth.Login(ctx.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.HandleError(ctx, err, "login failed")
	}
	return ctx.JSON(http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh.
func (c *Controller) Refresh(ctx echo.Context) error {
	var req RefreshRequest
	if err := ctx.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.badRequest(ctx, "refresh_token is required")
	}
	pair, err := c.auth.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return c.HandleError(ctx, err, "token refresh failed")
	}
	return ctx.JSON(http.StatusOK, pair)
}

// Logout handles POST /auth/logout.
func (c *Controller) Logout(ctx echo.Context) error {
	var req RefreshRequest
	if err := ctx.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.badRequest(ctx, "refresh_token is required")
	}
	if err := c.auth.Logout(ctx.Request().Context(), req.RefreshToken); err != nil {
		return c.HandleError(ctx, err, "logout failed")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// caller returns the authenticated caller. Protected routes always have one.
func caller(ctx echo.Context) custody.Caller {
	cl, _ := auth.CallerFrom(ctx)
	return cl
}
