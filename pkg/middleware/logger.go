package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	fctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
)

// quietRoutes are polled by probes and scrapers; they log at debug.
var quietRoutes = []string{"/metrics", "/api/v1/health"}

// Logger records one access log entry and the HTTP metrics per request.
// Pass endpoints can run for minutes, so duration is logged in
// milliseconds next to the route that served the request.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req, res := c.Request(), c.Response()
			route := c.Path()
			metrics.RecordHTTPRequest(req.Method, route, res.Status, elapsed.Seconds())

			ctx := req.Context()
			fields := fctx.Fields(ctx)
			fields["method"] = req.Method
			fields["route"] = route
			fields["uri"] = req.RequestURI
			fields["status"] = res.Status
			fields["duration_ms"] = elapsed.Milliseconds()
			fields["response_size"] = res.Size
			fields["remote_ip"] = c.RealIP()
			if userID := fctx.GetUserID(ctx); userID != "" {
				fields["user_id"] = userID
			}

			entry := logger.WithContext(ctx).WithFields(fields)
			switch {
			case res.Status >= http.StatusInternalServerError:
				entry.Warn("Request failed")
			case isQuiet(route):
				entry.Debug("Request")
			default:
				entry.Info("Request")
			}
			return nil
		}
	}
}

func isQuiet(route string) bool {
	for _, prefix := range quietRoutes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}
