// Package metrics exposes the relay's counters over HTTP for scraping and
// ad-hoc inspection, using the same gin HTTP stack the teacher wires up for
// its own control-plane surfaces, plus the standard promhttp handler for
// Prometheus scraping.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/shredrelay/axdp/internal/stats"
)

// Server is an HTTP endpoint for /metrics (Prometheus text format) and
// /stats (JSON snapshot, for quick manual checks without a scraper).
type Server struct {
	httpServer *http.Server
	log        *logrus.Entry
}

// New builds the gin router and registers the stats collector against a
// dedicated registry, avoiding interference with any other Prometheus
// registrations in the process.
func New(addr string, counters *stats.Counters, log *logrus.Entry) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(stats.NewCollector(counters))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"received":    counters.Received.Load(),
			"decoded":     counters.Decoded.Load(),
			"errors":      counters.Errors.Load(),
			"data_shreds": counters.DataShreds.Load(),
			"code_shreds": counters.CodeShreds.Load(),
			"code_drops":  counters.CodeDrops.Load(),
			"duplicates":  counters.Duplicates.Load(),
			"evictions":   counters.Evictions.Load(),
			"redirected":  counters.Redirected.Load(),
		})
	})
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		log:        log,
	}
}

// Serve blocks until the server stops or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.log != nil {
			s.log.Info("shutting down metrics server")
		}
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
