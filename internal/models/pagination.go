package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Offset far from integer overflow.
	MaxPage = 1_000_000
)

// PageRequest is a normalized 1-based page selection.
type PageRequest struct {
	Page     int
	PageSize int
}

// NewPageRequest clamps page to [1, MaxPage] and pageSize to [1, MaxPageSize].
// A zero pageSize selects DefaultPageSize.
func NewPageRequest(page, pageSize int) PageRequest {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return PageRequest{Page: page, PageSize: pageSize}
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit is the page size.
func (p PageRequest) Limit() int {
	return p.PageSize
}

// Page is one page of results plus navigation metadata.
type Page[T any] struct {
	Items           []T   `json:"items"`
	Page            int   `json:"page"`
	PageSize        int   `json:"page_size"`
	TotalCount      int64 `json:"total_count"`
	TotalPages      int   `json:"total_pages"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}

// NewPage assembles page metadata for items fetched with req out of total rows.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	return Page[T]{
		Items:           items,
		Page:            req.Page,
		PageSize:        req.PageSize,
		TotalCount:      total,
		TotalPages:      totalPages,
		HasNextPage:     req.Page < totalPages,
		HasPreviousPage: req.Page > 1,
	}
}
