package site

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	resolver Resolver
}

func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/sites", h.ListSites)
	api.GET("/sites/:code", h.GetSite, Middleware(h.resolver))
}

func (h *Handler) ListSites(c echo.Context) error {
	sites, err := h.resolver.Sites(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    sites,
		"total":   len(sites),
	})
}

func (h *Handler) GetSite(c echo.Context) error {
	s := FromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusNotFound, "site not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    s,
	})
}
