// Package introspect serves a read-mostly HTTP view of a supervision tree.
package introspect

import (
	"context"
	"errors"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/airsstack/overseer"
	"github.com/airsstack/overseer/monitor"
)

const shutdownGrace = 5 * time.Second

// Tree is the part of a supervisor the server needs.
type Tree interface {
	Snapshot() overseer.TreeSnapshot
	Health() overseer.ChildHealth
	RestartChild(ctx context.Context, id overseer.ChildID) error
}

// Server exposes health, the child tree, recent events and metrics.
type Server struct {
	tree     Tree
	history  *monitor.InMemory
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   *gin.Engine
}

// New builds the routes. history and gatherer may be nil, which disables
// /events and /metrics.
func New(tree Tree, history *monitor.InMemory, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tree:     tree,
		history:  history,
		gatherer: gatherer,
		logger:   logger.Named("introspect"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))

	router.GET("/healthz", s.health)
	router.GET("/children", s.children)
	router.GET("/children/:id", s.child)
	router.POST("/children/:id/restart", s.restart)
	if history != nil {
		router.GET("/events", s.events)
	}
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("introspection server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	h := s.tree.Health()
	code := http.StatusOK
	if h.Status == overseer.Unhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, h)
}

func (s *Server) children(c *gin.Context) {
	c.JSON(http.StatusOK, s.tree.Snapshot())
}

func (s *Server) child(c *gin.Context) {
	id := overseer.ChildID(c.Param("id"))
	for _, info := range s.tree.Snapshot().Children {
		if info.ID == id {
			c.JSON(http.StatusOK, info)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": overseer.ErrChildNotFound.Error()})
}

func (s *Server) restart(c *gin.Context) {
	id := overseer.ChildID(c.Param("id"))
	err := s.tree.RestartChild(c.Request.Context(), id)
	switch {
	case err == nil:
		c.Status(http.StatusAccepted)
	case errors.Is(err, overseer.ErrChildNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, overseer.ErrRestartLimitExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, overseer.ErrSupervisorStopped):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Warn("manual restart failed", zap.String("child", string(id)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) events(c *gin.Context) {
	events := s.history.Events()
	if child := c.Query("child"); child != "" {
		events = s.history.EventsFor(overseer.ChildID(child))
	}
	entries := make([]monitor.Entry, 0, len(events))
	for _, e := range events {
		entries = append(entries, monitor.NewEntry(e))
	}
	c.JSON(http.StatusOK, entries)
}
