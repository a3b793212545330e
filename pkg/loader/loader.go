package loader

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher returns one page of a category. Implementations must be idempotent
// per (category, page) and safe to call again for a page that failed.
type Fetcher interface {
	FetchPage(ctx context.Context, category string, page int) (catalog.Page, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, category string, page int) (catalog.Page, error)

// FetchPage implements Fetcher.
func (f FetcherFunc) FetchPage(ctx context.Context, category string, page int) (catalog.Page, error) {
	return f(ctx, category, page)
}

// Loader incrementally loads the pages of one category.
type Loader struct {
	category     string
	fetcher      Fetcher
	fetchTimeout time.Duration
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	closed    bool
	settled   chan struct{} // closed when the pending fetch completes
	subs      map[int]chan State
	nextSubID int

	// inflight tracks fetch goroutines
	inflight sync.WaitGroup
}

// New creates a loader for category and immediately dispatches the fetch of
// page 1. A new category needs a new Loader.
func New(category string, fetcher Fetcher, opts ...Option) (*Loader, error) {
	if strings.TrimSpace(category) == "" {
		return nil, ErrEmptyCategory
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.With().Str("component", "category-loader").Logger()
	if o.logger != nil {
		logger = *o.logger
	}
	logger = logger.With().Str("category", category).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		category:     category,
		fetcher:      fetcher,
		fetchTimeout: o.fetchTimeout,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		state: State{
			Category: category,
			Items:    []catalog.Item{},
			Page:     1,
		},
		subs: make(map[int]chan State),
	}
	loaderActive.Inc()

	logger.Debug().Msg("Loader created")
	l.LoadNextPage()
	return l, nil
}

// Category returns the category this loader was created for.
func (l *Loader) Category() string {
	return l.category
}

// State returns a snapshot of the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Loader) snapshotLocked() State {
	s := l.state
	s.Items = slices.Clip(l.state.Items)
	return s
}

// LoadNextPage requests the next page. It does nothing while a fetch is
// pending, after the last page arrived, or after Close. The loading flag is
// set before this method returns.
func (l *Loader) LoadNextPage() {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		loaderGuardSkipsTotal.WithLabelValues("closed").Inc()
		return
	case l.state.IsLoading:
		loaderGuardSkipsTotal.WithLabelValues("loading").Inc()
		return
	case l.state.EndReached:
		loaderGuardSkipsTotal.WithLabelValues("end_reached").Inc()
		return
	}

	l.state.IsLoading = true
	l.settled = make(chan struct{})
	page := l.state.Page
	l.broadcastLocked()

	l.logger.Debug().Int("page", page).Msg("Loading page")

	l.inflight.Add(1)
	go l.fetch(page)
}

func (l *Loader) fetch(page int) {
	defer l.inflight.Done()

	ctx := l.ctx
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := l.safeFetch(ctx, page)
	duration := time.Since(start)
	loaderFetchDuration.Observe(duration.Seconds())

	l.complete(page, result, err, duration)
}

// safeFetch converts a panicking fetcher into an error.
func (l *Loader) safeFetch(ctx context.Context, page int) (result catalog.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Int("page", page).
				Interface("panic", r).
				Msg("Fetcher panicked")
			err = &panicError{value: r}
		}
	}()
	return l.fetcher.FetchPage(ctx, l.category, page)
}

func (l *Loader) complete(page int, result catalog.Page, err error, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		loaderDiscardedTotal.Inc()
		l.logger.Debug().Int("page", page).Msg("Discarding completion of closed loader")
		return
	}

	l.state.IsLoading = false
	if err != nil {
		loaderFetchesTotal.WithLabelValues("failure").Inc()
		l.state.Err = &FetchError{Category: l.category, Page: page, Err: err}
		l.logger.Warn().
			Err(err).
			Int("page", page).
			Dur("duration", duration).
			Msg("Page fetch failed")
	} else {
		loaderFetchesTotal.WithLabelValues("success").Inc()
		loaderItemsTotal.Add(float64(len(result.Items)))
		l.state.Items = append(l.state.Items, result.Items...)
		l.state.EndReached = !result.HasMore
		l.state.Page = page + 1
		l.state.Err = nil
		l.logger.Debug().
			Int("page", page).
			Int("items", len(result.Items)).
			Int("total_items", len(l.state.Items)).
			Bool("end_reached", l.state.EndReached).
			Dur("duration", duration).
			Msg("Page loaded")
	}

	l.settleLocked()
	l.broadcastLocked()
}

func (l *Loader) settleLocked() {
	if l.settled != nil {
		close(l.settled)
		l.settled = nil
	}
}

// Wait blocks until no fetch is pending, the loader is closed, or ctx is done.
func (l *Loader) Wait(ctx context.Context) error {
	l.mu.Lock()
	settled := l.settled
	l.mu.Unlock()

	if settled == nil {
		return nil
	}
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %q: %w", l.category, ctx.Err())
	}
}

// Subscribe returns a channel receiving a snapshot after every state change,
// starting with the current state. Delivery never blocks the loader: when the
// buffer is full the oldest pending snapshot is dropped. The channel is
// closed by the returned func or by Close.
func (l *Loader) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		close(ch)
		return ch, func() {}
	}

	id := l.nextSubID
	l.nextSubID++
	l.subs[id] = ch
	ch <- l.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if sub, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(sub)
			}
		})
	}
}

func (l *Loader) broadcastLocked() {
	if len(l.subs) == 0 {
		return
	}
	s := l.snapshotLocked()
	for _, ch := range l.subs {
		select {
		case ch <- s:
		default:
			// subscriber lags: keep the newest snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Close disposes the loader. The pending fetch, if any, is cancelled and its
// completion discarded. Close is idempotent.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.cancel()
	l.settleLocked()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	loaderActive.Dec()

	l.logger.Debug().
		Int("items", len(l.state.Items)).
		Int("page", l.state.Page).
		Msg("Loader closed")
}
