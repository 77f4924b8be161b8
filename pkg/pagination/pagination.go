package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Params holds the 1-based page requested by a client.
type Params struct {
	Page     int
	PageSize int
}

// FromContext extracts page and pageSize from the query string, falling
// back to limit for the page size.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	return Params{Page: page, PageSize: size}.Normalized()
}

// Normalized clamps the page to at least 1 and the size to (0, MaxPageSize].
func (p Params) Normalized() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the index of the first item on the page. It saturates at
// math.MaxInt instead of overflowing for huge page numbers.
func (p Params) Offset() int {
	p = p.Normalized()
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Info describes a page within a result of Total items.
type Info struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewInfo computes page metadata for total items.
func NewInfo(p Params, total int) Info {
	p = p.Normalized()
	pages := (total + p.PageSize - 1) / p.PageSize
	return Info{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

// Slice returns the items on page p and its metadata. A page past the end
// is empty, never nil.
func Slice[T any](items []T, p Params) ([]T, Info) {
	p = p.Normalized()
	info := NewInfo(p, len(items))
	if p.Page > info.TotalPages {
		return []T{}, info
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}, info
	}
	end := min(start+p.PageSize, len(items))
	return items[start:end], info
}
