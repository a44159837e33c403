package domain

// PaginationParams is a page request over an in-memory roster slice.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Offset returns the 0-based index of the first item on the page.
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Bounds returns the [start, end) slice bounds of the page within total items.
// Pages past the end yield an empty range, including pages whose offset would
// overflow int.
func (p PaginationParams) Bounds(total int) (start, end int) {
	if total <= 0 || p.PageSize <= 0 {
		return 0, 0
	}
	if p.Page > 1 && p.Page-1 > total/p.PageSize {
		return total, total
	}
	start = min(max(p.Offset(), 0), total)
	end = start + min(p.PageSize, total-start)
	return start, end
}
