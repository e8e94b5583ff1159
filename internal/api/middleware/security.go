package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// apiCSP forbids every subresource; responses are JSON or PDF attachments.
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// NewCORS allows the configured origins to call the API. The correlation
// header is exposed so browser clients can quote it when reporting errors.
func NewCORS(origins []string) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			HeaderCorrelationID,
		},
		ExposeHeaders: []string{HeaderCorrelationID, echo.HeaderContentDisposition},
	})
}

// NewSecureHeaders sets the response headers for a JSON API.
func NewSecureHeaders() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: apiCSP,
		ReferrerPolicy:        "no-referrer",
	})
}

// NewBodyLimit rejects request bodies larger than limit, e.g. "10M".
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}
