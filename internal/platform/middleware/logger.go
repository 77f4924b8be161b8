package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one structured line per request. Slow requests are logged
// at warn so long all-site reports stand out.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)
			latency := time.Since(start)

			evt := logger.Info()
			switch {
			case err != nil:
				evt = logger.Error().Err(err)
			case latency > 10*time.Second:
				evt = logger.Warn()
			}
			if site, ok := c.Get("site_code").(string); ok && site != "" {
				evt = evt.Str("site", site)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", latency).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
