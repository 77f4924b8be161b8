package detail

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/pkg/pagination"
)

type Handler struct {
	svc      *Service
	resolver site.Resolver
}

func NewHandler(svc *Service, resolver site.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/sites/:code/indicators/:id/details", h.Details, site.Middleware(h.resolver))
}

// failure is the body of every detail error.
func failure(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"data":    []query.Record{},
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, query.ErrTemplateNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Details(c echo.Context) error {
	p, err := query.ParamsFromValues(c.QueryParams())
	if err != nil {
		return failure(c, statusOf(err), err)
	}
	s := site.FromContext(c.Request().Context())
	if s == nil {
		return failure(c, http.StatusNotFound, site.ErrSiteNotFound)
	}

	page, err := h.svc.Details(c.Request().Context(), s, c.Param("id"), p,
		pagination.FromContext(c), FilterFromValues(c.QueryParams()))
	if err != nil {
		return failure(c, statusOf(err), err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"indicatorId": page.IndicatorID,
		"siteCode":    page.SiteCode,
		"data":        page.Data,
		"pagination":  page.Pagination,
		"period":      p,
	})
}
