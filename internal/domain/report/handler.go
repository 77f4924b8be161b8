package report

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
)

type Handler struct {
	asm *Assembler
}

func NewHandler(asm *Assembler) *Handler {
	return &Handler{asm: asm}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/infant", h.report("infant"))
	api.GET("/reports/pntt", h.report("pntt"))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, query.ErrInvalidParams), errors.Is(err, site.ErrInvalidSiteCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// report serves a section report. ?site=<code> builds one site; an empty
// or "all" site sums every registered site.
func (h *Handler) report(name string) echo.HandlerFunc {
	defs := Reports[name]
	return func(c echo.Context) error {
		p, err := query.ParamsFromValues(c.QueryParams())
		if err != nil {
			return httpError(err)
		}
		ctx := c.Request().Context()
		selector := c.QueryParam("site")

		if selector != "" && selector != site.AllSites {
			sections, err := h.asm.Build(ctx, name, selector, defs, p)
			if err != nil {
				return httpError(err)
			}
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": true,
				"report":  name,
				"site":    selector,
				"data":    sections,
				"period":  p,
			})
		}

		out, err := h.asm.BuildAllSites(ctx, name, selector, defs, p)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":    true,
			"report":     name,
			"site":       site.AllSites,
			"data":       out.Sections,
			"sites":      out.Sites,
			"siteCount":  out.SiteCount,
			"errorCount": out.ErrorCount,
			"period":     p,
		})
	}
}
