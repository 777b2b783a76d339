package query

// PageSize is the number of reports per page
const PageSize = 10

// Paginator computes page numbers and offsets for a result count
type Paginator struct {
	Total    int64
	PageSize int
}

// NewPaginator creates a paginator; a non-positive size uses PageSize
func NewPaginator(total int64, pageSize int) Paginator {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	if total < 0 {
		total = 0
	}
	return Paginator{Total: total, PageSize: pageSize}
}

// NumPages returns the number of pages; an empty result still has one page
func (p Paginator) NumPages() int {
	if p.Total == 0 {
		return 1
	}
	size := int64(p.PageSize)
	return int((p.Total + size - 1) / size)
}

// Clamp maps any requested page into [1, NumPages]
func (p Paginator) Clamp(page int) int {
	if page < 1 {
		return 1
	}
	if last := p.NumPages(); page > last {
		return last
	}
	return page
}

// Offset returns the row offset of a clamped page
func (p Paginator) Offset(page int) int {
	return (p.Clamp(page) - 1) * p.PageSize
}

// Page is one slice of an ordered result
type Page[T any] struct {
	Items       []T   `json:"items"`
	Number      int   `json:"page"`
	NumPages    int   `json:"num_pages"`
	Total       int64 `json:"total"`
	PageSize    int   `json:"page_size"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewPage assembles a page for an already clamped number
func NewPage[T any](items []T, p Paginator, number int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	numPages := p.NumPages()
	return &Page[T]{
		Items:       items,
		Number:      number,
		NumPages:    numPages,
		Total:       p.Total,
		PageSize:    p.PageSize,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
	}
}
