package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)
	if p.Page != 1 || p.PageSize != DefaultPageSize {
		t.Errorf("expected page 1 size %d, got %+v", DefaultPageSize, p)
	}
}

func TestFromContext_Values(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&pageSize=25", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)
	if p.Page != 3 || p.PageSize != 25 {
		t.Errorf("unexpected params %+v", p)
	}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestFromContext_LimitFallbackAndClamp(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=-2&limit=9999", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)
	if p.Page != 1 || p.PageSize != MaxPageSize {
		t.Errorf("expected clamped params, got %+v", p)
	}
}

func TestSlice(t *testing.T) {
	items := make([]int, 12)
	for i := range items {
		items[i] = i + 1
	}

	page, info := Slice(items, Params{Page: 2, PageSize: 5})
	if len(page) != 5 || page[0] != 6 || page[4] != 10 {
		t.Errorf("unexpected page %v", page)
	}
	if info.Total != 12 || info.TotalPages != 3 || !info.HasNext || !info.HasPrev {
		t.Errorf("unexpected info %+v", info)
	}

	last, info := Slice(items, Params{Page: 3, PageSize: 5})
	if len(last) != 2 || info.HasNext {
		t.Errorf("unexpected last page %v %+v", last, info)
	}

	past, info := Slice(items, Params{Page: 9, PageSize: 5})
	if past == nil || len(past) != 0 || info.HasNext {
		t.Errorf("expected empty page past the end, got %v %+v", past, info)
	}
}

func TestNewInfo_Empty(t *testing.T) {
	info := NewInfo(Params{Page: 1, PageSize: 10}, 0)
	if info.TotalPages != 0 || info.HasNext || info.HasPrev {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestSlice_HugePageNumber(t *testing.T) {
	items := make([]int, 57)

	page, info := Slice(items, Params{Page: math.MaxInt, PageSize: 50})
	if page == nil || len(page) != 0 {
		t.Errorf("expected empty page, got %d items", len(page))
	}
	if info.Total != 57 || info.TotalPages != 2 || info.HasNext {
		t.Errorf("unexpected info %+v", info)
	}

	if off := (Params{Page: math.MaxInt, PageSize: 50}).Offset(); off != math.MaxInt {
		t.Errorf("expected saturated offset, got %d", off)
	}
}

func TestFromContext_HugePage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page="+strconv.Itoa(math.MaxInt)+"&pageSize=50", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	page, _ := Slice(make([]string, 10), FromContext(c))
	if len(page) != 0 {
		t.Errorf("expected empty page, got %v", page)
	}
}
