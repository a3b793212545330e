// Package testutil provides testing utilities for the category browser.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for one request.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Book is a catalogue entry served by MockCatalog.
type Book struct {
	ID        int64
	Title     string
	Authors   []string
	Languages []string
	Subjects  []string
	Cover     string
}

type pageKey struct {
	topic string
	page  int
}

// MockCatalog is a configurable mock of the /books endpoint.
type MockCatalog struct {
	server *httptest.Server

	mu       sync.Mutex
	topics   map[string][][]Book
	queued   map[pageKey][]MockResponse
	requests map[pageKey]int
	latency  time.Duration
	maxAge   int

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
}

// NewMockCatalog starts a mock catalogue server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		topics:   make(map[string][][]Book),
		queued:   make(map[pageKey][]MockResponse),
		requests: make(map[pageKey]int),
		maxAge:   300,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.requests = make(map[pageKey]int)
}

// SetTopic serves pages for topic, in order, starting at page 1.
func (m *MockCatalog) SetTopic(topic string, pages ...[]Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[strings.ToLower(topic)] = pages
}

// SetLatency delays every page response by d.
func (m *MockCatalog) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// SetMaxAge sets the Cache-Control max-age of page responses in seconds.
func (m *MockCatalog) SetMaxAge(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxAge = seconds
}

// QueueResponse makes the next request for (topic, page) answer with resp
// instead of the page. Queued responses are consumed in order.
func (m *MockCatalog) QueueResponse(topic string, page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey{strings.ToLower(topic), page}
	m.queued[key] = append(m.queued[key], resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCatalog) GetConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockCatalog) GetLastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequestHeader
}

// PageRequestCount returns how often (topic, page) was requested.
func (m *MockCatalog) PageRequestCount(topic string, page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[pageKey{strings.ToLower(topic), page}]
}

func (m *MockCatalog) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/books" && r.URL.Path != "/books/" {
		http.NotFound(w, r)
		return
	}

	topic := strings.ToLower(r.URL.Query().Get("topic"))
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusNotFound, `{"detail": "Invalid page."}`)
			return
		}
		page = n
	}
	key := pageKey{topic, page}

	m.mu.Lock()
	m.RequestCount++
	m.requests[key]++
	m.LastRequestHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	var queued *MockResponse
	if q := m.queued[key]; len(q) > 0 {
		queued = &q[0]
		m.queued[key] = q[1:]
	}
	pages := m.topics[topic]
	latency, maxAge := m.latency, m.maxAge
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	if queued != nil {
		writeMock(w, *queued)
		return
	}

	w.Header().Set("X-RateLimit-Remaining", "100")
	w.Header().Set("X-RateLimit-Reset", "60")

	if page > len(pages) {
		if len(pages) == 0 && page == 1 {
			writeJSON(w, http.StatusOK, `{"count": 0, "next": null, "previous": null, "results": []}`)
			return
		}
		writeJSON(w, http.StatusNotFound, `{"detail": "Invalid page."}`)
		return
	}

	etag := fmt.Sprintf(`"%s-%d"`, topic, page)
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := renderPage(m.server.URL, topic, page, pages)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, `{"detail": "render failed"}`)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
	writeJSON(w, http.StatusOK, string(body))
}

func renderPage(baseURL, topic string, page int, pages [][]Book) ([]byte, error) {
	type person struct {
		Name string `json:"name"`
	}
	type book struct {
		ID        int64             `json:"id"`
		Title     string            `json:"title"`
		Authors   []person          `json:"authors"`
		Languages []string          `json:"languages"`
		Subjects  []string          `json:"subjects"`
		Formats   map[string]string `json:"formats"`
	}
	type list struct {
		Count    int     `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Results  []book  `json:"results"`
	}

	out := list{Results: []book{}}
	for _, p := range pages {
		out.Count += len(p)
	}
	if page < len(pages) {
		next := fmt.Sprintf("%s/books?page=%d&topic=%s", baseURL, page+1, topic)
		out.Next = &next
	}
	if page > 1 {
		prev := fmt.Sprintf("%s/books?page=%d&topic=%s", baseURL, page-1, topic)
		out.Previous = &prev
	}

	for _, b := range pages[page-1] {
		rendered := book{
			ID:        b.ID,
			Title:     b.Title,
			Authors:   []person{},
			Languages: b.Languages,
			Subjects:  b.Subjects,
			Formats:   map[string]string{},
		}
		for _, a := range b.Authors {
			rendered.Authors = append(rendered.Authors, person{Name: a})
		}
		if b.Cover != "" {
			rendered.Formats["image/jpeg"] = b.Cover
		}
		out.Results = append(out.Results, rendered)
	}

	return json.Marshal(out)
}

func writeMock(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// Books returns n numbered books starting at firstID.
func Books(firstID int64, n int) []Book {
	books := make([]Book, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		books = append(books, Book{
			ID:        id,
			Title:     fmt.Sprintf("Book %d", id),
			Authors:   []string{fmt.Sprintf("Author %d", id)},
			Languages: []string{"en"},
			Subjects:  []string{"Fiction"},
			Cover:     fmt.Sprintf("https://covers.example/%d.jpg", id),
		})
	}
	return books
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	headers := map[string]string{
		"Content-Type":          "application/json",
		"X-RateLimit-Remaining": "0",
		"X-RateLimit-Reset":     "60",
	}
	if retryAfter != "" {
		headers["Retry-After"] = retryAfter
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
		Headers:    headers,
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
