package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/observability/metrics"
)

// PartialSuccess is returned when the operation committed but its document
// could not be rendered.
type PartialSuccess struct {
	Status      string `json:"status"`
	Result      any    `json:"result"`
	ReportError string `json:"report_error"`
}

// wantsJSON reports whether the client asked for the JSON result instead of
// the document.
func wantsJSON(ctx echo.Context) bool {
	return ctx.QueryParam("format") == "json"
}

// respondWithReport sends the rendered document of a committed operation.
// The PDF is staged as a temporary file under the report directory and
// removed once sent. Documents are always sent with status 200; status only
// applies to JSON results. A render failure downgrades the response to a
// PartialSuccess JSON body with status 200.
func (c *Controller) respondWithReport(ctx echo.Context, status int, result any, rendered *custody.Rendered) error {
	if rendered == nil || wantsJSON(ctx) {
		return ctx.JSON(status, result)
	}
	if rendered.Failed() {
		return partial(ctx, result, rendered.Err)
	}

	log := c.logger.WithContext(ctx.Request().Context())
	if err := os.MkdirAll(c.reportDir, 0o750); err != nil {
		log.Error("report directory unavailable", logger.String("dir", c.reportDir), logger.Error(err))
		return partial(ctx, result, err)
	}
	f, err := os.CreateTemp(c.reportDir, rendered.Name+"-*.pdf")
	if err != nil {
		log.Error("report file create failed", logger.Error(err))
		return partial(ctx, result, err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("report file cleanup failed", logger.String("path", path), logger.Error(err))
		}
	}()

	_, werr := f.Write(rendered.Content)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		log.Error("report file write failed", logger.Error(werr))
		return partial(ctx, result, werr)
	}

	return ctx.Attachment(path, rendered.Name+".pdf")
}

func partial(ctx echo.Context, result any, err error) error {
	return ctx.JSON(http.StatusOK, PartialSuccess{
		Status:      metrics.OutcomePartialSuccess,
		Result:      result,
		ReportError: err.Error(),
	})
}
