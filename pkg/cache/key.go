package cache

import (
	"fmt"
	"strings"
)

// keyPrefix namespaces every entry written by this package.
const keyPrefix = "catalog"

// Key identifies one cached page of a category.
type Key struct {
	// Source names the catalogue backend (e.g. "gutendex", "opds")
	Source string

	// Category as requested; matched case-insensitively
	Category string

	// Page number, starting at 1
	Page int
}

// String renders the Redis key.
// Format: catalog:<source>:<category>:page=<n>
//
// Example:
//
//	catalog:gutendex:science_fiction:page=2
func (k Key) String() string {
	source := strings.ToLower(strings.TrimSpace(k.Source))
	if source == "" {
		source = "default"
	}
	return fmt.Sprintf("%s:%s:%s:page=%d", keyPrefix, source, normalizeCategory(k.Category), k.Page)
}

// normalizeCategory lowercases and joins words with underscores so that
// "Science Fiction" and "science  fiction" share entries.
func normalizeCategory(category string) string {
	fields := strings.Fields(strings.ToLower(category))
	return strings.Join(fields, "_")
}
