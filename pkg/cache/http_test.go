package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Etag":          []string{`"abc123"`},
			"Content-Type":  []string{"application/json"},
			"Last-Modified": []string{time.Now().Add(-1 * time.Hour).UTC().Format(http.TimeFormat)},
			"Cache-Control": []string{"public, max-age=600"},
		},
		Body: io.NopCloser(bytes.NewReader([]byte(`{"count": 1}`))),
	}

	entry, err := ResponseToEntry(resp)
	if err != nil {
		t.Fatalf("ResponseToEntry() error = %v", err)
	}

	if string(entry.Body) != `{"count": 1}` {
		t.Errorf("Body = %s", entry.Body)
	}
	if entry.ETag != `"abc123"` {
		t.Errorf("ETag = %s", entry.ETag)
	}
	if entry.ContentType != "application/json" {
		t.Errorf("ContentType = %s", entry.ContentType)
	}
	if entry.LastModified.IsZero() {
		t.Error("LastModified not parsed")
	}
	if ttl := entry.TTL(); ttl < 9*time.Minute || ttl > 10*time.Minute {
		t.Errorf("TTL() = %v, want ~10m from max-age", ttl)
	}

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("Response body was not restored")
	}
}

func TestResponseToEntry_Nil(t *testing.T) {
	if _, err := ResponseToEntry(nil); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestExpiresFrom(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "max-age wins over expires",
			headers: http.Header{"Cache-Control": {"max-age=60"}, "Expires": {now.Add(time.Hour).Format(http.TimeFormat)}},
			want:    now.Add(60 * time.Second),
		},
		{
			name:    "no-store",
			headers: http.Header{"Cache-Control": {"no-store"}},
			want:    now,
		},
		{
			name:    "expires header",
			headers: http.Header{"Expires": {now.Add(time.Hour).UTC().Format(http.TimeFormat)}},
			want:    now.Add(time.Hour),
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": {now.Add(-time.Hour).UTC().Format(http.TimeFormat)}},
			want:    now,
		},
		{
			name:    "invalid expires",
			headers: http.Header{"Expires": {"not a date"}},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "no headers",
			headers: http.Header{},
			want:    now.Add(DefaultTTL),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expiresFrom(tt.headers, now)
			diff := got.Sub(tt.want)
			if diff < -2*time.Second || diff > 2*time.Second {
				t.Errorf("expiresFrom() = %v, want ~%v (diff %v)", got, tt.want, diff)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	tests := []struct {
		name       string
		entry      *Entry
		wantHeader string
		wantValue  string
	}{
		{
			name:       "etag",
			entry:      &Entry{ETag: `"abc123"`},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name:       "last modified",
			entry:      &Entry{LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)},
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 01 Jan 2023 12:00:00 GMT",
		},
		{
			name: "etag preferred",
			entry: &Entry{
				ETag:         `"abc123"`,
				LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
			},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "https://example.com/books", nil)
			AddConditionalHeaders(req, tt.entry)
			if got := req.Header.Get(tt.wantHeader); got != tt.wantValue {
				t.Errorf("Header %s = %v, want %v", tt.wantHeader, got, tt.wantValue)
			}
		})
	}
}

func TestAddConditionalHeaders_NilInputs(t *testing.T) {
	AddConditionalHeaders(nil, &Entry{ETag: "x"})

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	AddConditionalHeaders(req, nil)
	if req.Header.Get("If-None-Match") != "" {
		t.Error("nil entry must not add headers")
	}
}
