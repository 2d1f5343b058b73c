package pagination

import (
	"fmt"
)

const (
	// DefaultSize is the standard page size when a size is not provided.
	DefaultSize = 100
	// MaxSize caps how many rows a single page may request.
	MaxSize = 1000
	// FirstPage is the lowest valid page number.
	FirstPage = 1
)

// Params holds page/size inputs from controllers or services.
type Params struct {
	Page int
	Size int
}

// Validate rejects out-of-range values instead of clamping them.
func (p Params) Validate() error {
	if p.Page < FirstPage {
		return fmt.Errorf("page must be >= %d", FirstPage)
	}
	if p.Size < 1 || p.Size > MaxSize {
		return fmt.Errorf("size must be between 1 and %d", MaxSize)
	}
	return nil
}

// Offset returns the number of rows preceding the page.
func (p Params) Offset() int {
	if p.Page < FirstPage {
		return 0
	}
	return (p.Page - 1) * p.Size
}

// TotalPages is ceil(total/size); zero rows means zero pages.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Slice returns the in-memory window for the page, empty when past the end.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
