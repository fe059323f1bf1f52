// Package pagination holds the keyset windowing contract shared by every list operation.
//
// A listing is asked for the items strictly after a reference item (the last
// one the caller saw) in the listing's ordering. Stores fetch one item more
// than the page size so that HasNextPage never needs a separate count query.
package pagination

import (
	"gator-social/internal/utils"
)

// Window bounds one page of a listing. An empty After starts at the beginning of the ordering.
type Window struct {
	After string `json:"after,omitempty"`
	Size  int    `json:"first,omitempty"`
}

// Page is one window of results.
type Page[T any] struct {
	Items       []T    `json:"items"`
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// Normalize applies the default page size and rejects malformed windows.
func (w Window) Normalize(defaultSize, maxSize int) (Window, error) {
	switch {
	case w.Size < 0:
		return w, utils.NewValidationError("page size must not be negative, got %d", w.Size)
	case w.Size == 0:
		w.Size = defaultSize
	case w.Size > maxSize:
		return w, utils.NewValidationError("page size must be at most %d, got %d", maxSize, w.Size)
	}
	return w, nil
}

// Limit is the number of rows a store should fetch for this window.
func (w Window) Limit() int {
	return w.Size + 1
}

// HasCursor reports whether the window starts after a reference item.
func (w Window) HasCursor() bool {
	return w.After != ""
}

// Trim cuts rows fetched with Limit down to the window and derives the next-page flag.
func Trim[T any](rows []T, w Window, cursorOf func(T) string) Page[T] {
	page := Page[T]{Items: rows}
	if len(rows) > w.Size {
		page.Items = rows[:w.Size]
		page.HasNextPage = true
	}
	if page.Items == nil {
		page.Items = make([]T, 0)
	}
	if n := len(page.Items); n > 0 {
		page.EndCursor = cursorOf(page.Items[n-1])
	}
	return page
}

// ErrUnknownCursor is returned when After does not name an item of the listing.
func ErrUnknownCursor(after string) error {
	return utils.NewValidationError("cursor %q does not reference a listed item", after)
}
