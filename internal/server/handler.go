package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/category-browser/pkg/browse"
	"github.com/Sternrassler/category-browser/pkg/loader"
	"github.com/Sternrassler/category-browser/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// sessionView is the JSON form of a session.
type sessionView struct {
	ID         string        `json:"id"`
	Category   string        `json:"category"`
	Phase      string        `json:"phase"`
	NextPage   int           `json:"next_page"`
	IsLoading  bool          `json:"is_loading"`
	EndReached bool          `json:"end_reached"`
	Error      string        `json:"error,omitempty"`
	Count      int           `json:"count"`
	Items      []browse.Card `json:"items"`
}

func viewOf(sess *session) sessionView {
	state := sess.screen.State()
	v := sessionView{
		ID:         sess.id,
		Category:   state.Category,
		Phase:      state.Phase().String(),
		NextPage:   state.Page,
		IsLoading:  state.IsLoading,
		EndReached: state.EndReached,
		Count:      len(state.Items),
		Items:      make([]browse.Card, 0, len(state.Items)),
	}
	if state.Err != nil {
		v.Error = state.Err.Error()
	}
	for _, item := range state.Items {
		v.Items = append(v.Items, browse.CardFor(item))
	}
	return v
}

// Router returns an engine serving the session API, /health and /metrics.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.Len()})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.RegisterRoutes(router.Group("/sessions"))
	return router
}

// RegisterRoutes mounts the session endpoints on rg.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", s.create)
	rg.GET("/:id", s.show)
	rg.POST("/:id/next", s.next)
	rg.POST("/:id/rendered/:index", s.rendered)
	rg.DELETE("/:id", s.destroy)
}

type createReq struct {
	Category string `json:"category"`
}

func (s *Server) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sess, err := s.open(c.Request.Context(), req.Category)
	switch {
	case errors.Is(err, loader.ErrEmptyCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": "category required"})
		return
	case errors.Is(err, browse.ErrOffline):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "network unavailable"})
		return
	case err != nil:
		s.logger.Error().Err(err).Str("category", req.Category).Msg("Failed to open session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open failed"})
		return
	}

	if !s.waitIfAsked(c, sess) {
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) show(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	if !s.waitIfAsked(c, sess) {
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) next(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	sess.screen.LoadNextPage()
	if !s.waitIfAsked(c, sess) {
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) rendered(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return
	}

	triggered := sess.screen.OnItemRendered(index)
	if !s.waitIfAsked(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggered": triggered, "session": viewOf(sess)})
}

func (s *Server) destroy(c *gin.Context) {
	if !s.remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) lookup(c *gin.Context) (*session, bool) {
	sess, ok := s.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	}
	return sess, ok
}

// waitIfAsked blocks until the pending fetch settles when ?wait=true is set.
// It writes a 504 and returns false if the request gives up first.
func (s *Server) waitIfAsked(c *gin.Context, sess *session) bool {
	if wait, _ := strconv.ParseBool(c.Query("wait")); !wait {
		return true
	}
	if err := sess.screen.Wait(c.Request.Context()); err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "page still loading"})
		return false
	}
	return true
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev := s.logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", strings.TrimSuffix(path, "/")).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
