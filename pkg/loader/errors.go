package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCategory is returned by New for a blank category.
	ErrEmptyCategory = errors.New("category must not be empty")

	// ErrNilFetcher is returned by New without a fetcher.
	ErrNilFetcher = errors.New("fetcher must not be nil")
)

// FetchError records a failed page fetch. It is recoverable: the page cursor
// did not move and the next LoadNextPage requests the same page.
type FetchError struct {
	Category string
	Page     int
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q page %d: %v", e.Category, e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// panicError wraps a value recovered from a panicking fetcher.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("fetcher panicked: %v", e.value)
}
