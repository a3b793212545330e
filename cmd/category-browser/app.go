package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/category-browser/internal/config"
	"github.com/Sternrassler/category-browser/pkg/browse"
	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/Sternrassler/category-browser/pkg/loader"
	"github.com/Sternrassler/category-browser/pkg/network"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app holds the services built from configuration.
type app struct {
	cfg     *config.Config
	redis   *redis.Client
	source  catalog.Source
	checker network.Checker
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	source, err := newSource(cfg.Catalog, a.redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.source = source

	a.checker = network.Static(network.Available)
	if cfg.Network.ProbeURL != "" {
		probe, err := network.NewProbe(cfg.Network.ProbeURL, cfg.Network.ProbeTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.checker = probe
	}
	return a, nil
}

// newSource builds the configured catalogue backend. Redis is only used by
// the gutendex client.
func newSource(cfg config.CatalogConfig, rdb *redis.Client) (catalog.Source, error) {
	switch cfg.Source {
	case config.SourceOPDS:
		return catalog.NewOPDSSource(catalog.OPDSConfig{
			SearchURL: cfg.OPDSSearchURL,
			PageSize:  cfg.OPDSPageSize,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			Retry:     cfg.RetryConfig(),
		})
	case config.SourceGutendex, "":
		return catalog.New(catalog.Config{
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.UserAgent,
			Redis:     rdb,
			Timeout:   cfg.Timeout,
			Retry:     cfg.RetryConfig(),
		})
	default:
		return nil, fmt.Errorf("unknown catalogue source %q", cfg.Source)
	}
}

func (a *app) opener() *browse.Opener {
	return browse.NewOpener(a.checker, a.source, browse.OpenerConfig{
		GraceDelay:    a.cfg.Network.GraceDelay,
		LoaderOptions: []loader.Option{loader.WithFetchTimeout(a.cfg.Loader.FetchTimeout)},
	})
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}
