// Package browse is the presentation boundary of a category screen. It gates
// screen creation on network availability, turns "item rendered" events into
// page requests and formats items for display.
package browse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/Sternrassler/category-browser/pkg/loader"
	"github.com/Sternrassler/category-browser/pkg/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	browseScreensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browse_screens_opened_total",
		Help: "Total category screens requested by result (opened, offline)",
	}, []string{"result"})

	browseTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browse_screens_load_triggers_total",
		Help: "Total near-end events that requested the next page",
	})
)

// ErrOffline is returned by Open when the network stays unavailable for the
// whole grace delay. Callers show their offline view.
var ErrOffline = errors.New("network unavailable")

// DefaultGraceDelay is how long Open waits for the network to come back
// before reporting ErrOffline.
const DefaultGraceDelay = 250 * time.Millisecond

// OpenerConfig configures an Opener.
type OpenerConfig struct {
	// GraceDelay before reporting ErrOffline; 0 uses DefaultGraceDelay
	GraceDelay time.Duration

	// LoaderOptions are passed to every loader
	LoaderOptions []loader.Option
}

// Opener creates category screens.
type Opener struct {
	checker    network.Checker
	fetcher    loader.Fetcher
	graceDelay time.Duration
	loaderOpts []loader.Option
	logger     zerolog.Logger
}

// NewOpener creates an Opener. A nil checker treats the network as available.
func NewOpener(checker network.Checker, fetcher loader.Fetcher, cfg OpenerConfig) *Opener {
	if checker == nil {
		checker = network.Static(network.Available)
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	return &Opener{
		checker:    checker,
		fetcher:    fetcher,
		graceDelay: cfg.GraceDelay,
		loaderOpts: cfg.LoaderOptions,
		logger:     log.With().Str("component", "browse").Logger(),
	}
}

// Open samples the network and, when available, creates a screen whose
// loader starts fetching page 1. When the network is unavailable Open waits
// the grace delay, samples again, and returns ErrOffline if it is still down.
func (o *Opener) Open(ctx context.Context, category string) (*Screen, error) {
	if o.checker.Check(ctx) != network.Available {
		o.logger.Debug().
			Str("category", category).
			Dur("grace_delay", o.graceDelay).
			Msg("Network unavailable, waiting before showing offline view")

		timer := time.NewTimer(o.graceDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if o.checker.Check(ctx) != network.Available {
			browseScreensTotal.WithLabelValues("offline").Inc()
			o.logger.Info().Str("category", category).Msg("Network unavailable")
			return nil, ErrOffline
		}
	}

	l, err := loader.New(category, o.fetcher, o.loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", category, err)
	}
	browseScreensTotal.WithLabelValues("opened").Inc()
	return &Screen{loader: l}, nil
}

// Screen is one open category screen.
type Screen struct {
	loader *loader.Loader
}

// Category returns the screen's category.
func (s *Screen) Category() string {
	return s.loader.Category()
}

// State returns a snapshot of the loader state.
func (s *Screen) State() loader.State {
	return s.loader.State()
}

// ShouldLoadMore reports whether rendering the item at index should request
// the next page: it is the last loaded item, more pages exist, and nothing is
// loading.
func ShouldLoadMore(state loader.State, index int) bool {
	return index >= len(state.Items)-1 && !state.EndReached && !state.IsLoading
}

// OnItemRendered is called by the view for every item it renders. It
// requests the next page when the last loaded item becomes visible and
// reports whether it did.
func (s *Screen) OnItemRendered(index int) bool {
	if !ShouldLoadMore(s.loader.State(), index) {
		return false
	}
	browseTriggersTotal.Inc()
	s.loader.LoadNextPage()
	return true
}

// LoadNextPage requests the next page directly, e.g. from a retry button.
func (s *Screen) LoadNextPage() {
	s.loader.LoadNextPage()
}

// Subscribe forwards to the loader's Subscribe.
func (s *Screen) Subscribe(buffer int) (<-chan loader.State, func()) {
	return s.loader.Subscribe(buffer)
}

// Wait blocks until the pending fetch completes.
func (s *Screen) Wait(ctx context.Context) error {
	return s.loader.Wait(ctx)
}

// Close disposes the screen's loader.
func (s *Screen) Close() {
	s.loader.Close()
}

// Cards formats every loaded item.
func (s *Screen) Cards() []Card {
	items := s.loader.State().Items
	cards := make([]Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, CardFor(item))
	}
	return cards
}

// Card is an item formatted for a list row.
type Card struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	Languages     string `json:"languages"`
	Subjects      string `json:"subjects"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
}

// CardFor formats one item.
func CardFor(item catalog.Item) Card {
	return Card{
		ID:            item.ID,
		Title:         item.Title,
		Authors:       AuthorsString(item.Authors),
		Languages:     LanguagesString(item.Languages),
		Subjects:      SubjectsString(item.Subjects, DefaultSubjectLimit),
		CoverImageURL: item.CoverImageURL,
	}
}
