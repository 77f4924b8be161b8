package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on each request's context. All-site
// reports fan out to every site database, so the deadline is what stops a
// hung site from holding the request open. The handler always runs to
// completion on the request goroutine; site queries observe the deadline
// and the handler reports partial results itself. If it gives up with the
// deadline error before responding, a 504 JSON body is written.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if c.Response().Committed {
				return err
			}
			if errors.Is(err, context.DeadlineExceeded) ||
				(err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
				return c.JSON(http.StatusGatewayTimeout, map[string]interface{}{
					"success": false,
					"error":   "request exceeded " + timeout.String(),
				})
			}
			return err
		}
	}
}
