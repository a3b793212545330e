// Package network provides the network availability signal consulted when a
// category screen is opened.
package network

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	networkChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "network_checks_total",
		Help: "Total network availability checks by result",
	}, []string{"status"})

	networkCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "network_check_duration_seconds",
		Help:    "Duration of network availability probes",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Status is the availability reported by a Checker.
type Status int

const (
	// Unavailable means the catalogue cannot be reached.
	Unavailable Status = iota
	// Available means requests can be attempted.
	Available
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == Available {
		return "available"
	}
	return "unavailable"
}

// Checker reports current network availability.
type Checker interface {
	Check(ctx context.Context) Status
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context) Status

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context) Status {
	return f(ctx)
}

// Static always reports the same status.
type Static Status

// Check implements Checker.
func (s Static) Check(context.Context) Status {
	return Status(s)
}

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 3 * time.Second

// Probe reports Available when a HEAD request to URL gets any HTTP answer.
type Probe struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewProbe creates a probe against url. A timeout <= 0 uses DefaultProbeTimeout.
func NewProbe(url string, timeout time.Duration) (*Probe, error) {
	if url == "" {
		return nil, fmt.Errorf("probe url is required")
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Probe{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With().Str("component", "network-probe").Logger(),
	}, nil
}

// Check implements Checker.
func (p *Probe) Check(ctx context.Context) Status {
	start := time.Now()
	status := p.check(ctx)
	networkCheckDuration.Observe(time.Since(start).Seconds())
	networkChecksTotal.WithLabelValues(status.String()).Inc()
	return status
}

func (p *Probe) check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", p.url).Msg("Invalid probe request")
		return Unavailable
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", p.url).Msg("Network probe failed")
		return Unavailable
	}
	resp.Body.Close()

	// any answer proves connectivity, even an error status
	return Available
}
