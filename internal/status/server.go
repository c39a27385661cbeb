package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/grailctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Server exposes a Board and the process metrics over HTTP.
type Server struct {
	ID     string
	Addr   string
	board  *Board
	router *gin.Engine
}

func NewServer(id, addr string, corsOrigins []string, board *Board) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestObserver(log.Logger, id, "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{ID: id, Addr: addr, board: board, router: r}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"uptime":      s.board.Uptime().String(),
			"service":     s.ID,
			"version":     version,
			"connections": s.board.States(),
		})
	})

	s.router.GET("/rules", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rules": s.board.Rules()})
	})

	s.router.GET("/samples", func(c *gin.Context) {
		recent, counts := s.board.Samples()
		byPhy := make(map[string]uint64, len(counts))
		for phy, n := range counts {
			byPhy[strconv.Itoa(int(phy))] = n
		}
		c.JSON(http.StatusOK, gin.H{"recent": recent, "by_phy": byPhy})
	})

	s.router.GET("/aliases", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"aliases": s.board.Aliases()})
	})

	s.router.GET("/transients", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"transients": s.board.Transients()})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Serve listens on Addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("status server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
