// Package server exposes category screens over HTTP. Each session owns one
// browse.Screen; idle sessions are closed by a reaper.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/category-browser/pkg/browse"
	"github.com/Sternrassler/category-browser/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "browse_sessions_active",
		Help: "Number of open browse sessions",
	})

	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browse_sessions_created_total",
		Help: "Total browse sessions created",
	})

	sessionsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browse_sessions_reaped_total",
		Help: "Total browse sessions closed for being idle",
	})
)

const (
	// DefaultIdleTTL closes sessions untouched for this long.
	DefaultIdleTTL = 15 * time.Minute

	// DefaultReapInterval is how often idle sessions are looked for.
	DefaultReapInterval = time.Minute
)

// Config configures a Server.
type Config struct {
	IdleTTL      time.Duration
	ReapInterval time.Duration
}

type session struct {
	id       string
	screen   *browse.Screen
	lastSeen time.Time
}

// Server holds open sessions.
type Server struct {
	opener       *browse.Opener
	idleTTL      time.Duration
	reapInterval time.Duration
	now          func() time.Time
	logger       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a Server opening screens with opener.
func New(opener *browse.Opener, cfg Config) *Server {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	return &Server{
		opener:       opener,
		idleTTL:      cfg.IdleTTL,
		reapInterval: cfg.ReapInterval,
		now:          time.Now,
		logger:       logging.NewLogger("server"),
		sessions:     make(map[string]*session),
	}
}

// open creates a session for category.
func (s *Server) open(ctx context.Context, category string) (*session, error) {
	screen, err := s.opener.Open(ctx, category)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:       uuid.NewString(),
		screen:   screen,
		lastSeen: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sessionsCreatedTotal.Inc()
	sessionsActive.Inc()
	s.logger.Info().
		Str("session", sess.id).
		Str("category", screen.Category()).
		Msg("Session opened")
	return sess, nil
}

// get returns the session and marks it used.
func (s *Server) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// remove closes and forgets the session.
func (s *Server) remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	sess.screen.Close()
	sessionsActive.Dec()
	s.logger.Info().Str("session", id).Msg("Session closed")
	return true
}

// Len returns the number of open sessions.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Reap closes sessions idle since before now minus the idle TTL and returns
// how many it closed.
func (s *Server) Reap(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	var idle []*session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.screen.Close()
		sessionsActive.Dec()
		sessionsReapedTotal.Inc()
		s.logger.Debug().
			Str("session", sess.id).
			Time("last_seen", sess.lastSeen).
			Msg("Idle session reaped")
	}
	return len(idle)
}

// Run reaps idle sessions until ctx is done, then closes every session.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			if n := s.Reap(s.now()); n > 0 {
				s.logger.Info().Int("reaped", n).Int("open", s.Len()).Msg("Reaped idle sessions")
			}
		}
	}
}

// Close closes every open session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.screen.Close()
		sessionsActive.Dec()
	}
}
