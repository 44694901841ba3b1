// Package admin exposes the narrow operational HTTP surface cmd/scout
// serves alongside its run loops: health, Prometheus metrics, and
// read-only listings of active sources and stories. This is not the
// excluded GraphQL query API (spec.md Non-goals) — just the same kind
// of thin admin surface the teacher exposes from cmd/tarsy/main.go.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
)

// Store is the narrow read surface the admin endpoints need.
type Store interface {
	ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error)
	ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error)
}

// Server serves the admin HTTP surface.
type Server struct {
	Store    Store
	Registry *config.Registry
	router   *gin.Engine
}

// NewServer builds a Server with routes registered, mirroring
// cmd/tarsy/main.go's gin.Default() + router.GET health-check shape.
func NewServer(store Store, registry *config.Registry) *Server {
	s := &Server{Store: store, Registry: registry, router: gin.Default()}
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/sources", s.sourcesHandler)
	s.router.GET("/stories", s.storiesHandler)
	return s
}

// ListenAndServe blocks serving addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"cities": len(s.Registry.List()),
	})
}

func (s *Server) sourcesHandler(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city query param is required"})
		return
	}
	sources, err := s.Store.ListActiveSources(c.Request.Context(), city)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"city": city, "sources": sources})
}

func (s *Server) storiesHandler(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city query param is required"})
		return
	}
	stories, err := s.Store.ListActiveStories(c.Request.Context(), city)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"city": city, "stories": stories})
}
