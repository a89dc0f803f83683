// Package pagination provides page-windowed listing shared by the trade,
// snapshot, and approval endpoints.
package pagination

import "gorm.io/gorm"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageRequest holds pagination parameters bound from query strings. Zero
// values mean "use defaults".
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults normalizes the request in place.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

// Offset returns the row offset of the requested page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps one page of results with paging metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse assembles a PageResponse. Data is never nil in the JSON
// body.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate is a GORM scope applying the request's window. It normalizes the
// request first so callers can pass a zero PageRequest.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	req.Defaults()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}
