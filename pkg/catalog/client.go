package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/category-browser/pkg/cache"
	"github.com/Sternrassler/category-browser/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for catalogue fetches.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalogue requests by source and status",
	}, []string{"source", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalogue page fetch duration in seconds by source",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalogue errors by class",
	}, []string{"class"})

	catalogSharedFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_shared_fetches_total",
		Help: "Total page fetches answered by an identical in-flight fetch",
	})
)

// SourceGutendex names the Gutendex catalogue in cache keys and metrics.
const SourceGutendex = "gutendex"

// DefaultBaseURL is the public Gutendex instance.
const DefaultBaseURL = "https://gutendex.com"

// Client fetches category pages from a Gutendex catalogue.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	policy      retryPolicy
	inflight    singleflight.Group
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalogue, without the /books path
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// Redis client for the response cache and shared rate limit state.
	// nil disables caching and keeps rate limit state in memory.
	Redis *redis.Client

	// Timeout per HTTP request
	Timeout time.Duration

	// Retry overrides the per error class retry configuration when set
	Retry *RetryConfig

	// HTTPClient replaces the default HTTP client (Timeout is ignored then)
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for the public catalogue.
func DefaultConfig(redisClient *redis.Client, userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Redis:     redisClient,
		Timeout:   30 * time.Second,
	}
}

// New creates a new catalogue client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var policy retryPolicy = RetryConfigForErrorClass
	if cfg.Retry != nil {
		policy = fixedPolicy(*cfg.Retry)
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		policy:      policy,
		logger:      logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// FetchPage returns one page of the category. Concurrent calls for the same
// (category, page) share a single upstream fetch.
func (c *Client) FetchPage(ctx context.Context, category string, page int) (Page, error) {
	if err := validatePageRequest(category, page); err != nil {
		return Page{}, err
	}

	key := category + "\x00" + strconv.Itoa(page)
	v, err, shared := c.inflight.Do(key, func() (any, error) {
		return c.fetchPage(ctx, category, page)
	})
	if shared {
		catalogSharedFetchesTotal.Inc()
	}
	if err != nil {
		return Page{}, err
	}
	return v.(Page), nil
}

func (c *Client) fetchPage(ctx context.Context, category string, page int) (Page, error) {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(SourceGutendex).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().
		Str("category", category).
		Int("page", page).
		Logger()

	cacheKey := cache.Key{Source: SourceGutendex, Category: category, Page: page}
	cached := c.lookup(ctx, cacheKey, logger)
	if cached != nil && !cached.IsExpired() {
		result, err := decodeBooks(cached.Body)
		if err == nil {
			logger.Debug().
				Bool("cache_hit", true).
				Int("items", len(result.Items)).
				Msg("Serving page from cache")
			catalogRequestsTotal.WithLabelValues(SourceGutendex, "cache_hit").Inc()
			return result, nil
		}
		logger.Warn().Err(err).Msg("Discarding undecodable cache entry")
		cached = nil
	}

	var result Page
	err := retryWithBackoff(ctx, logger, c.policy, func() error {
		var attemptErr error
		result, attemptErr = c.do(ctx, cacheKey, cached, logger)
		if attemptErr != nil && !errors.Is(attemptErr, ErrRateLimited) {
			catalogErrorsTotal.WithLabelValues(string(ClassOf(attemptErr))).Inc()
		}
		return attemptErr
	})
	if err != nil {
		logger.Warn().
			Err(err).
			Str("error_class", string(ClassOf(err))).
			Msg("Page fetch failed")
		return Page{}, err
	}

	logger.Debug().
		Int("items", len(result.Items)).
		Bool("has_more", result.HasMore).
		Dur("duration", time.Since(startTime)).
		Msg("Page fetched")
	return result, nil
}

func (c *Client) lookup(ctx context.Context, key cache.Key, logger zerolog.Logger) *cache.Entry {
	if c.cache == nil {
		return nil
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil
	}
	return entry
}

// do performs a single request attempt.
func (c *Client) do(ctx context.Context, key cache.Key, cached *cache.Entry, logger zerolog.Logger) (Page, error) {
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		catalogRequestsTotal.WithLabelValues(SourceGutendex, "rate_limited").Inc()
		return Page{}, ErrRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(key.Category, key.Page), nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if cached != nil {
		cache.AddConditionalHeaders(req, cached)
		logger.Debug().Str("etag", cached.ETag).Msg("Making conditional request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		catalogRequestsTotal.WithLabelValues(SourceGutendex, "network_error").Inc()
		return Page{}, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	catalogRequestsTotal.WithLabelValues(SourceGutendex, strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.rateLimiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
		logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		return c.revalidated(ctx, key, cached, resp, logger)

	case resp.StatusCode >= 400:
		errClass := classifyStatus(resp.StatusCode)
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Catalogue request error")
		return Page{}, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}

	case resp.StatusCode != http.StatusOK:
		return Page{}, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassClient,
			Message:    "unexpected status " + resp.Status,
		}
	}

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return Page{}, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	result, err := decodeBooks(entry.Body)
	if err != nil {
		return Page{}, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response body",
			Err:        err,
		}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			logger.Debug().Dur("ttl", entry.TTL()).Msg("Cached response")
		}
	}

	return result, nil
}

// revalidated serves the cached body after a 304 and extends its freshness.
func (c *Client) revalidated(ctx context.Context, key cache.Key, cached *cache.Entry, resp *http.Response, logger zerolog.Logger) (Page, error) {
	logger.Debug().Msg("304 Not Modified - using cache")

	result, err := decodeBooks(cached.Body)
	if err != nil {
		return Page{}, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode cached body",
			Err:        err,
		}
	}

	fresh, err := cache.ResponseToEntry(resp)
	if err == nil {
		if err := c.cache.Refresh(ctx, key, cached, fresh.Expires); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
	}

	return result, nil
}

func (c *Client) pageURL(category string, page int) string {
	q := url.Values{}
	q.Set("topic", category)
	q.Set("page", strconv.Itoa(page))
	return c.baseURL + "/books?" + q.Encode()
}

// Invalidate drops the cached response of one page.
func (c *Client) Invalidate(ctx context.Context, category string, page int) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, cache.Key{Source: SourceGutendex, Category: category, Page: page})
}

// RateLimiter returns the tracker gating this client.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
