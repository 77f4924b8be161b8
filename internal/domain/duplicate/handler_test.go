package duplicate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/domain/site/sitetest"
	"github.com/dara-tech/preartweb/internal/platform/workers"
)

func newTestHandler() (*Handler, *sitetest.Resolver) {
	res := sitetest.NewResolver(site.Site{Code: "0201", Name: "Maung Russey"}).
		Respond("tblidpoorlink",
			query.Record{"art_number": "A", "patient_name": "Sok"},
			query.Record{"art_number": "A", "patient_name": "Dara"},
			query.Record{"art_number": "A", "patient_name": "Thy"},
		)
	return NewHandler(NewService(res, workers.DefaultLimits(), zerolog.Nop())), res
}

func TestHandler_Duplicates(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/idpoor-duplicates?site=0201&page=2&pageSize=2&startDate=2025-01-01&endDate=2025-03-31", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Duplicates(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Success    bool             `json:"success"`
		Data       []map[string]any `json:"data"`
		Total      int              `json:"total"`
		Page       int              `json:"page"`
		TotalPages int              `json:"totalPages"`
		SiteID     string           `json:"siteId"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || body.Total != 3 || body.Page != 2 || body.TotalPages != 2 || len(body.Data) != 1 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if body.SiteID != "0201" {
		t.Errorf("expected siteId 0201, got %q", body.SiteID)
	}
	if body.Data[0]["duplicate_count"] != float64(3) {
		t.Errorf("expected duplicate_count 3, got %v", body.Data[0]["duplicate_count"])
	}
}

func TestHandler_Duplicates_BadParams(t *testing.T) {
	h, res := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/idpoor-duplicates?startDate=2025-04-01&endDate=2025-03-31", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Duplicates(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if res.Calls() != 0 {
		t.Errorf("expected no queries, got %d", res.Calls())
	}
}
