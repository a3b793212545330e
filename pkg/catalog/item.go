// Package catalog provides the category fetch service: book items grouped by
// category, fetched one page at a time from a remote catalogue.
package catalog

import (
	"context"
	"fmt"
	"strconv"
)

// Item is a single catalogue entry.
type Item struct {
	// ID identifies the item within its catalogue
	ID int64 `json:"id"`

	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Languages []string `json:"languages"`
	Subjects  []string `json:"subjects"`

	// CoverImageURL is empty when the catalogue has no cover for the item
	CoverImageURL string `json:"cover_image_url,omitempty"`
}

// Key returns the identity key of the item.
func (i Item) Key() string {
	return strconv.FormatInt(i.ID, 10)
}

// Page is one batch of items returned for a (category, page) pair.
type Page struct {
	// Items in the order the catalogue returned them
	Items []Item `json:"items"`

	// HasMore reports whether another page exists after this one
	HasMore bool `json:"has_more"`

	// TotalCount is the total number of items in the category, 0 if unknown
	TotalCount int `json:"total_count,omitempty"`
}

// Source fetches pages of a category. Implementations must be idempotent per
// (category, page) and safe to call again for a page that previously failed.
type Source interface {
	FetchPage(ctx context.Context, category string, page int) (Page, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, category string, page int) (Page, error)

// FetchPage implements Source.
func (f SourceFunc) FetchPage(ctx context.Context, category string, page int) (Page, error) {
	return f(ctx, category, page)
}

func validatePageRequest(category string, page int) error {
	if category == "" {
		return fmt.Errorf("category is required")
	}
	if page < 1 {
		return fmt.Errorf("page must be >= 1 (got %d)", page)
	}
	return nil
}
