package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/logger"
)

// RequestLogger writes one access log line per request.  It reads the id
// set by echo's RequestID middleware, so register that first.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo render the error so the status below is final.
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			l := log.WithRequestID(res.Header().Get(echo.HeaderXRequestID))
			if id, idErr := UserIDFrom(c); idErr == nil {
				l = l.WithUserID(id)
			}
			attrs := []any{
				"method", req.Method,
				"path", c.Path(),
				"uri", req.RequestURI,
				"status", res.Status,
				"bytes", res.Size,
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_ip", c.RealIP(),
			}
			switch {
			case res.Status >= 500:
				l.WithError(err).Error("request", attrs...)
			case res.Status >= 400:
				l.Warn("request", attrs...)
			default:
				l.Info("request", attrs...)
			}
			return nil
		}
	}
}
