package duplicate

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/idpoor-duplicates", h.Duplicates)
}

func (h *Handler) Duplicates(c echo.Context) error {
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.Report(c.Request().Context(), c.QueryParam("site"), p,
		pagination.FromContext(c), c.QueryParam("search"))
	switch {
	case errors.Is(err, site.ErrInvalidSiteCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, site.ErrSiteNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        report.Data,
		"total":       report.Total,
		"page":        report.Page,
		"pageSize":    report.PageSize,
		"totalPages":  report.TotalPages,
		"period":      report.Period,
		"siteId":      report.SiteID,
		"failedSites": report.FailedSites,
		"timestamp":   report.Timestamp,
	})
}
