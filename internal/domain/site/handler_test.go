package site

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	svc := newSQLiteService(t,
		Site{Code: "0201", Name: "Maung Russey", Province: "Battambang"},
		Site{Code: "0202", Name: "Battambang RH", Province: "Battambang"},
	)
	return NewHandler(svc), echo.New()
}

func TestHandler_ListSites(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListSites(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Success bool                     `json:"success"`
		Data    []map[string]interface{} `json:"data"`
		Total   int                      `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || body.Total != 2 {
		t.Errorf("unexpected body %+v", body)
	}
	if _, leaked := body.Data[0]["DSN"]; leaked {
		t.Error("dsn must not be exposed")
	}
}

func TestHandler_GetSite(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("0202")

	if err := Middleware(h.resolver)(h.GetSite)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data Site `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Data.Name != "Battambang RH" {
		t.Errorf("expected Battambang RH, got %q", body.Data.Name)
	}
	if c.Get("site_code") != "0202" {
		t.Errorf("expected site_code in context, got %v", c.Get("site_code"))
	}
}

func TestMiddleware_Errors(t *testing.T) {
	h, e := newTestHandler(t)
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	tests := []struct {
		name   string
		setup  func(*http.Request, echo.Context)
		status int
	}{
		{"missing", func(*http.Request, echo.Context) {}, http.StatusBadRequest},
		{"invalid", func(_ *http.Request, c echo.Context) {
			c.SetParamNames("code")
			c.SetParamValues("02;01")
		}, http.StatusBadRequest},
		{"unknown", func(r *http.Request, _ echo.Context) { r.Header.Set(SiteCodeHeader, "9999") }, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			tt.setup(req, c)

			err := Middleware(h.resolver)(next)(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
			}
			if httpErr.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, httpErr.Code)
			}
		})
	}
}

func TestMiddleware_QueryParam(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/?site=0201", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Site
	next := func(c echo.Context) error {
		got = FromContext(c.Request().Context())
		return nil
	}
	if err := Middleware(h.resolver)(next)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Code != "0201" {
		t.Errorf("expected site 0201 in context, got %+v", got)
	}
}
