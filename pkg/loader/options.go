package loader

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Loader.
type Option func(*options)

type options struct {
	fetchTimeout time.Duration
	logger       *zerolog.Logger
}

// WithFetchTimeout bounds every page fetch. 0 (the default) means no timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}
