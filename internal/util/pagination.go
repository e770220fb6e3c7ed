package util

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Calculate turns a 1-based page and page size into an offset and limit,
// falling back to defaults for out-of-range input.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPerPage {
		size = DefaultPerPage
	}
	from = (page - 1) * size
	return from, size
}

// Page is the envelope every paginated listing returns.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
}

func NewPage[T any](items []T, total int64, page, perPage int) Page[T] {
	if page < 1 {
		page = 1
	}
	if items == nil {
		items = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Page[T]{
		Items:       items,
		Total:       total,
		TotalPages:  pages,
		CurrentPage: page,
		PerPage:     perPage,
	}
}
