package indicator

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
)

type Handler struct {
	agg      *Aggregator
	exec     *Executor
	catalog  *query.Catalog
	resolver site.Resolver
}

func NewHandler(agg *Aggregator, exec *Executor, catalog *query.Catalog, resolver site.Resolver) *Handler {
	return &Handler{agg: agg, exec: exec, catalog: catalog, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/indicators", h.ListIndicators)
	api.GET("/indicators/:id/sql", h.PreviewSQL)
	api.GET("/indicators/:id/sites", h.RunOne)
	api.GET("/reports/art", h.ARTReport)

	siteGroup := api.Group("/sites/:code", site.Middleware(h.resolver))
	siteGroup.GET("/indicators", h.RunSite)
	siteGroup.GET("/indicators/:id", h.Execute)

	api.DELETE("/cache", h.PurgeAll)
	api.DELETE("/cache/sites/:code", h.PurgeSite)
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

type catalogEntry struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	LabelKh string     `json:"labelKh,omitempty"`
	Kind    query.Kind `json:"kind"`
	Cost    query.Cost `json:"cost"`
}

func (h *Handler) ListIndicators(c echo.Context) error {
	kind := query.Kind(c.QueryParam("kind"))
	if kind == "" {
		kind = query.KindAggregate
	}
	var entries []catalogEntry
	for _, t := range h.catalog.Templates(kind) {
		entries = append(entries, catalogEntry{
			ID:      t.ID,
			Label:   h.exec.Label(t.ID),
			LabelKh: t.LabelKh,
			Kind:    t.Kind,
			Cost:    t.Cost,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    entries,
		"total":   len(entries),
	})
}

// PreviewSQL renders a template with literal values for inspection. The
// rendered text is never executed.
func (h *Handler) PreviewSQL(c echo.Context) error {
	t, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      t.ID,
		"sql":     query.Inline(t.SQL, p),
	})
}

func (h *Handler) Execute(c echo.Context) error {
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	s := site.FromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusNotFound, "site not found")
	}
	res, err := h.exec.ExecuteOn(c.Request().Context(), s, c.Param("id"), p, query.UseCache(c.QueryParams()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func requestedIDs(c echo.Context) []string {
	raw := c.QueryParam("indicators")
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Handler) RunSite(c echo.Context) error {
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	s := site.FromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusNotFound, "site not found")
	}
	report, err := h.agg.RunSite(c.Request().Context(), s.Code, requestedIDs(c), p, query.UseCache(c.QueryParams()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
		"period":  p,
	})
}

func (h *Handler) ARTReport(c echo.Context) error {
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	report, err := h.agg.RunAllSites(c.Request().Context(), c.QueryParam("site"), requestedIDs(c), p, query.UseCache(c.QueryParams()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}

func (h *Handler) RunOne(c echo.Context) error {
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return httpError(err)
	}
	report, err := h.agg.RunOne(c.Request().Context(), c.Param("id"), p, query.UseCache(c.QueryParams()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}

func (h *Handler) PurgeAll(c echo.Context) error {
	h.agg.Purge(c.Request().Context(), "")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "cache cleared",
	})
}

func (h *Handler) PurgeSite(c echo.Context) error {
	code := c.Param("code")
	if err := site.ValidateCode(code); err != nil {
		return httpError(err)
	}
	n := h.agg.Purge(c.Request().Context(), code)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"removed": n,
		"site":    code,
	})
}
