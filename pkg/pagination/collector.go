package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds collector configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages stops collection of runaway categories
	MaxPages int
}

// DefaultConfig returns a configuration polite to public catalogues
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
		MaxPages:       500,
	}
}

// Result is a fully collected category
type Result struct {
	Category   string         `json:"category"`
	Pages      int            `json:"pages"`
	TotalCount int            `json:"total_count"`
	Items      []catalog.Item `json:"items"`
}

// Collector fetches all pages of a category
type Collector struct {
	source catalog.Source
	config Config
	logger zerolog.Logger
}

// NewCollector creates a new collector
func NewCollector(source catalog.Source, config Config) *Collector {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	return &Collector{
		source: source,
		config: config,
		logger: log.With().Str("component", "collector").Logger(),
	}
}

// Collect fetches every page of category. Any page failure aborts the
// collection.
func (c *Collector) Collect(ctx context.Context, category string) (*Result, error) {
	start := time.Now()
	logger := c.logger.With().Str("category", category).Logger()

	first, err := c.fetch(ctx, category, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	pages := [][]catalog.Item{first.Items}
	last := first

	if first.HasMore {
		estimated := estimatePages(first)
		if estimated > c.config.MaxPages {
			estimated = c.config.MaxPages
		}

		if estimated > 1 {
			logger.Info().
				Int("total_count", first.TotalCount).
				Int("estimated_pages", estimated).
				Msg("Starting parallel page fetch")

			parallel, tail, err := c.fetchRange(ctx, category, 2, estimated)
			if err != nil {
				return nil, err
			}
			pages = append(pages, parallel...)
			last = tail
		}

		// follow any pages beyond the estimate one by one
		for page := len(pages) + 1; last.HasMore; page++ {
			if page > c.config.MaxPages {
				logger.Warn().Int("max_pages", c.config.MaxPages).Msg("Page limit reached, result truncated")
				break
			}
			next, err := c.fetch(ctx, category, page)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
			}
			pages = append(pages, next.Items)
			last = next
		}
	}

	result := &Result{
		Category:   category,
		Pages:      len(pages),
		TotalCount: first.TotalCount,
	}
	for _, items := range pages {
		result.Items = append(result.Items, items...)
	}
	if result.Items == nil {
		result.Items = []catalog.Item{}
	}

	logger.Info().
		Int("pages", result.Pages).
		Int("items", len(result.Items)).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return result, nil
}

// fetchRange fetches pages from..to in parallel and returns their items in
// page order together with the last page.
func (c *Collector) fetchRange(ctx context.Context, category string, from, to int) ([][]catalog.Item, catalog.Page, error) {
	results := make([]catalog.Page, to-from+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.MaxConcurrency)

	for page := from; page <= to; page++ {
		g.Go(func() error {
			p, err := c.fetch(gctx, category, page)
			if err != nil {
				return fmt.Errorf("failed to fetch page %d: %w", page, err)
			}
			results[page-from] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, catalog.Page{}, err
	}

	items := make([][]catalog.Item, 0, len(results))
	for _, p := range results {
		items = append(items, p.Items)
	}
	return items, results[len(results)-1], nil
}

func (c *Collector) fetch(ctx context.Context, category string, page int) (catalog.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.source.FetchPage(pageCtx, category, page)
}

// estimatePages derives the page count from the first page, 0 when unknown.
func estimatePages(first catalog.Page) int {
	size := len(first.Items)
	if first.TotalCount <= 0 || size == 0 {
		return 0
	}
	return (first.TotalCount + size - 1) / size
}
