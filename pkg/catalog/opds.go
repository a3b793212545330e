package catalog

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SourceOPDS names OPDS catalogues in metrics.
const SourceOPDS = "opds"

// DefaultOPDSPageSize is the number of entries an OPDS search page holds.
const DefaultOPDSPageSize = 25

const (
	relNext      = "next"
	relImage     = "http://opds-spec.org/image"
	relThumbnail = "http://opds-spec.org/image/thumbnail"
)

// OPDSConfig configures an OPDS catalogue source.
type OPDSConfig struct {
	// SearchURL accepts query and start_index parameters
	SearchURL string

	// PageSize is the number of entries per feed page
	PageSize int

	UserAgent string
	Timeout   time.Duration

	// Retry overrides the per error class retry configuration when set
	Retry *RetryConfig

	HTTPClient *http.Client
}

// OPDSSource fetches category pages from an OPDS search feed. Page n maps to
// start_index=(n-1)*PageSize+1.
type OPDSSource struct {
	searchURL  *url.URL
	pageSize   int
	userAgent  string
	httpClient *http.Client
	policy     retryPolicy
	logger     zerolog.Logger
}

// NewOPDSSource creates an OPDS source.
func NewOPDSSource(cfg OPDSConfig) (*OPDSSource, error) {
	u, err := url.Parse(cfg.SearchURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid OPDS search url %q", cfg.SearchURL)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultOPDSPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var policy retryPolicy = RetryConfigForErrorClass
	if cfg.Retry != nil {
		policy = fixedPolicy(*cfg.Retry)
	}

	return &OPDSSource{
		searchURL:  u,
		pageSize:   cfg.PageSize,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		policy:     policy,
		logger:     log.With().Str("component", "catalog-opds").Logger(),
	}, nil
}

// FetchPage implements Source.
func (s *OPDSSource) FetchPage(ctx context.Context, category string, page int) (Page, error) {
	if err := validatePageRequest(category, page); err != nil {
		return Page{}, err
	}

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(SourceOPDS).Observe(time.Since(startTime).Seconds())
	}()

	logger := s.logger.With().
		Str("category", category).
		Int("page", page).
		Logger()

	target := s.pageURL(category, page)

	var feed *atom.Feed
	err := retryWithBackoff(ctx, logger, s.policy, func() error {
		var attemptErr error
		feed, attemptErr = s.fetchFeed(ctx, target)
		if attemptErr != nil {
			catalogErrorsTotal.WithLabelValues(string(ClassOf(attemptErr))).Inc()
		}
		return attemptErr
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_class", string(ClassOf(err))).Msg("OPDS page fetch failed")
		return Page{}, err
	}

	result := feedToPage(feed, target)
	logger.Debug().
		Int("items", len(result.Items)).
		Bool("has_more", result.HasMore).
		Msg("OPDS page fetched")
	return result, nil
}

func (s *OPDSSource) pageURL(category string, page int) string {
	u := *s.searchURL
	q := u.Query()
	q.Set("query", category)
	q.Set("start_index", strconv.Itoa((page-1)*s.pageSize+1))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *OPDSSource) fetchFeed(ctx context.Context, target string) (*atom.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "application/atom+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		catalogRequestsTotal.WithLabelValues(SourceOPDS, "network_error").Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	catalogRequestsTotal.WithLabelValues(SourceOPDS, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		errClass := classifyStatus(resp.StatusCode)
		if errClass == "" {
			errClass = ErrorClassClient
		}
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: errClass, Message: resp.Status}
	}

	fp := &atom.Parser{}
	feed, err := fp.Parse(resp.Body)
	if err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "parse OPDS feed as Atom",
			Err:        err,
		}
	}
	return feed, nil
}

// feedToPage converts an acquisition feed into a Page.
func feedToPage(feed *atom.Feed, target string) Page {
	baseURL, _ := url.Parse(target)

	items := make([]Item, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		item := Item{
			ID:        entryID(entry.ID),
			Title:     strings.TrimSpace(entry.Title),
			Authors:   []string{},
			Languages: []string{},
			Subjects:  []string{},
		}
		for _, a := range entry.Authors {
			if a != nil && a.Name != "" {
				item.Authors = append(item.Authors, a.Name)
			}
		}
		for _, c := range entry.Categories {
			if c == nil {
				continue
			}
			if c.Label != "" {
				item.Subjects = append(item.Subjects, c.Label)
			} else if c.Term != "" {
				item.Subjects = append(item.Subjects, c.Term)
			}
		}
		for _, prefix := range []string{"dc", "dcterms"} {
			for _, lang := range entry.Extensions[prefix]["language"] {
				if v := strings.TrimSpace(lang.Value); v != "" {
					item.Languages = append(item.Languages, v)
				}
			}
		}

		var thumbnail string
		for _, link := range entry.Links {
			if link.Rel == relImage || (thumbnail == "" && link.Rel == relThumbnail) {
				thumbnail = link.Href
			}
		}
		if thumbnail != "" {
			item.CoverImageURL = resolve(baseURL, thumbnail)
		}

		items = append(items, item)
	}

	result := Page{Items: items}
	for _, link := range feed.Links {
		if link.Rel == relNext && link.Href != "" {
			result.HasMore = true
			break
		}
	}
	for _, total := range feed.Extensions["opensearch"]["totalResults"] {
		if n, err := strconv.Atoi(strings.TrimSpace(total.Value)); err == nil {
			result.TotalCount = n
		}
	}
	return result
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// entryID derives a numeric ID from the trailing digits of an entry ID such
// as "urn:gutenberg:1342" or ".../ebooks/1342.opds", hashing it otherwise.
func entryID(id string) int64 {
	trimmed := strings.TrimSuffix(id, ".opds")
	end := len(trimmed)
	start := end
	for start > 0 && trimmed[start-1] >= '0' && trimmed[start-1] <= '9' {
		start--
	}
	if start < end {
		if n, err := strconv.ParseInt(trimmed[start:end], 10, 64); err == nil {
			return n
		}
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64() >> 1)
}
