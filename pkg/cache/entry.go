package cache

import (
	"time"
)

// Entry is a cached catalogue page response.
type Entry struct {
	// Body is the raw response body
	Body []byte `json:"body"`

	// ContentType of the body, used to pick a decoder on replay
	ContentType string `json:"content_type,omitempty"`

	// ETag for If-None-Match revalidation
	ETag string `json:"etag,omitempty"`

	// LastModified for If-Modified-Since revalidation
	LastModified time.Time `json:"last_modified"`

	// Expires is when the entry stops being fresh
	Expires time.Time `json:"expires"`

	// StoredAt is when the response was received
	StoredAt time.Time `json:"stored_at"`
}

// IsExpired returns true once the entry is no longer fresh.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the remaining freshness, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether a stale entry can be checked with a
// conditional request instead of a full refetch.
func (e *Entry) CanRevalidate() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}
