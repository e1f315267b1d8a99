package models

// MaxPageSize caps the page size of alert log queries regardless of the
// requested value.
const MaxPageSize = 50

// Page is a view-only wrapper around one page of query results.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}

// TotalPages returns the number of pages needed to cover TotalCount items.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// HasNext reports whether a page after this one exists.
func (p Page[T]) HasNext() bool {
	return p.PageNumber < p.TotalPages()
}

// HasPrevious reports whether a page before this one exists.
func (p Page[T]) HasPrevious() bool {
	return p.PageNumber > 1
}

// ClampPageSize normalizes a requested page size: non-positive values fall
// back to the maximum, oversized requests are capped to it.
func ClampPageSize(requested int) int {
	if requested <= 0 || requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
