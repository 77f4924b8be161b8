package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/domain/site/sitetest"
)

const periodQuery = "startDate=2025-01-01&endDate=2025-03-31"

func newTestHandler() (*Handler, *sitetest.Resolver) {
	res := sitetest.NewResolver(
		site.Site{Code: "0201", Name: "Maung Russey"},
		site.Site{Code: "0301", Name: "Kampong Cham"},
	).Respond("pntt_tested", query.Record{"Male": 1, "Female": 4})
	asm := NewAssembler(
		query.NewCatalog(query.Template{ID: "pntt_women_tested", SQL: "SELECT * FROM pntt_tested"}),
		res, workersForTest(), nil, nopLogger(),
	)
	return NewHandler(asm), res
}

func TestHandler_SingleSite(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/pntt?site=0201&"+periodQuery, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.report("pntt")(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Success bool      `json:"success"`
		Data    []Section `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || len(body.Data) != len(PNTT) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if got := body.Data[0].Rows[0].Counts.Total; got != 5 {
		t.Errorf("expected 5 tested, got %d", got)
	}
	if body.Data[1].Error == "" {
		t.Error("expected risk factor section to fail without a template")
	}
}

func TestHandler_AllSites(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/pntt?"+periodQuery, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.report("pntt")(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data      []Section     `json:"data"`
		Sites     []SiteSummary `json:"sites"`
		SiteCount int           `json:"siteCount"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.SiteCount != 2 || len(body.Sites) != 2 {
		t.Fatalf("expected 2 sites, got %s", rec.Body.String())
	}
	if got := body.Data[0].Rows[0].Counts.Total; got != 10 {
		t.Errorf("expected merged total 10, got %d", got)
	}
}

func TestHandler_BadParams(t *testing.T) {
	h, res := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/infant?startDate=2025-13-01&endDate=2025-03-31", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.report("infant")(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if res.Calls() != 0 {
		t.Errorf("expected no queries, got %d", res.Calls())
	}
}

func TestHandler_UnknownSite(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/infant?site=9999&"+periodQuery, nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.report("infant")(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
