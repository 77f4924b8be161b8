package indicator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/domain/site/sitetest"
)

func newTestHandler() (*Handler, *sitetest.Resolver, *echo.Echo) {
	res := sitetest.NewResolver(site.Site{Code: "0201", Name: "Maung Russey"}).
		Respond("q01", query.Record{"TOTAL": 10})
	agg := newTestAggregator(res, artTemplates...)
	return NewHandler(agg, agg.exec, agg.catalog, res), res, echo.New()
}

const periodQuery = "startDate=2025-01-01&endDate=2025-03-31"

func TestHandler_ListIndicators(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/indicators", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListIndicators(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data []catalogEntry `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Data) != len(artTemplates) {
		t.Fatalf("expected %d entries, got %d", len(artTemplates), len(body.Data))
	}
	if body.Data[0].ID != "01_active_art_previous" || body.Data[len(body.Data)-1].Cost != query.CostSlow {
		t.Errorf("expected catalog order with slow 10.6 last, got %+v", body.Data)
	}
}

func TestHandler_Execute(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?"+periodQuery, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code", "id")
	c.SetParamValues("0201", "01_active_art_previous")

	if err := site.Middleware(h.resolver)(h.Execute)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var r Result
	json.Unmarshal(rec.Body.Bytes(), &r)
	if !r.Success || r.Data.Total != 10 {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestHandler_Execute_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?"+periodQuery, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code", "id")
	c.SetParamValues("0201", "99_missing")

	err := site.Middleware(h.resolver)(h.Execute)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ARTReport_BadParams(t *testing.T) {
	h, res, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/art?site=all&startDate=2025-13-01&endDate=2025-03-31", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ARTReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
	if res.Calls() != 0 {
		t.Errorf("expected no queries for invalid params, got %d", res.Calls())
	}
}

func TestHandler_ARTReport(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/art?site=all&indicators=01_active_art_previous&"+periodQuery, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ARTReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Success bool            `json:"success"`
		Data    MultiSiteReport `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || len(body.Data.Merged) != 1 || body.Data.Merged[0].Data.Total != 10 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_PreviewSQL(t *testing.T) {
	h, res, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?"+periodQuery, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("01_active_art_previous")

	if err := h.PreviewSQL(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "q01") {
		t.Errorf("expected rendered sql, got %s", rec.Body.String())
	}
	if res.Calls() != 0 {
		t.Error("preview must not execute sql")
	}
}

func TestHandler_PurgeSite(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("02;01")

	err := h.PurgeSite(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid code, got %v", err)
	}
}
