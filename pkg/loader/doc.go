// Package loader implements the paginated category loader: the controller
// behind a category list view that fetches pages of items from a Fetcher,
// appends them to a growing result set and stops once the source reports
// that no more pages exist.
//
// A Loader dispatches page 1 as soon as it is created. Further pages are
// requested with LoadNextPage, which is a no-op while a fetch is pending,
// after the last page arrived, or once the loader is closed. At most one
// fetch is in flight per loader.
//
// Failures never advance the page cursor; calling LoadNextPage again retries
// the same page. Completions that arrive after Close are discarded.
//
// State is observed either by polling State or by subscribing:
//
//	l, err := loader.New("Fiction", client)
//	if err != nil {
//		return err
//	}
//	defer l.Close()
//
//	updates, unsubscribe := l.Subscribe(1)
//	defer unsubscribe()
//	for s := range updates {
//		render(s)
//	}
package loader
