package site

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const siteKey contextKey = "site"

// SiteCodeHeader may carry the site code when the route has no :code.
const SiteCodeHeader = "X-Site-Code"

// Middleware resolves the request's site before the handler runs: path
// :code, then the X-Site-Code header, then the site query parameter.
// Unknown sites stop the request with 404 since nothing can run without a
// connection.
func Middleware(r Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			code := extractSiteCode(c)
			if code == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "site code is required")
			}

			s, err := r.Site(c.Request().Context(), code)
			switch {
			case errors.Is(err, ErrInvalidSiteCode):
				return echo.NewHTTPError(http.StatusBadRequest, "invalid site code")
			case errors.Is(err, ErrSiteNotFound):
				return echo.NewHTTPError(http.StatusNotFound, "site not found: "+code)
			case err != nil:
				return echo.NewHTTPError(http.StatusServiceUnavailable, "site registry unavailable")
			}

			ctx := context.WithValue(c.Request().Context(), siteKey, s)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("site_code", s.Code)
			return next(c)
		}
	}
}

func extractSiteCode(c echo.Context) string {
	if code := c.Param("code"); code != "" {
		return code
	}
	if code := c.Request().Header.Get(SiteCodeHeader); code != "" {
		return code
	}
	return c.QueryParam("site")
}

// FromContext returns the site resolved by Middleware.
func FromContext(ctx context.Context) *Site {
	s, _ := ctx.Value(siteKey).(*Site)
	return s
}
