package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/flaviogranato/tasktaskrevolution/internal/telemetry"
)

// Options configures the report server.
type Options struct {
	Host       string
	Port       int
	Dir        string // directory of generated reports
	LiveReload bool
}

// Server hosts the generated reports.
type Server struct {
	opts Options
	hub  *Hub
	log  *slog.Logger
}

// NewServer builds a server over a report directory.
func NewServer(opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{opts: opts, hub: NewHub(), log: log}
}

// Hub exposes the reload hub, mainly for tests and for callers that
// rebuild reports out-of-band and want to push a reload themselves.
func (s *Server) Hub() *Hub { return s.hub }

// Router assembles the gin handler tree.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.countRequests())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.ClientCount()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.opts.LiveReload {
		r.GET("/events", gin.WrapH(s.hub))
	}
	r.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.opts.Dir))))
	return r
}

func (s *Server) countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		class := fmt.Sprintf("%dxx", c.Writer.Status()/100)
		telemetry.ServeRequests.WithLabelValues(class).Inc()
	}
}

// Run serves until ctx is cancelled, then drains connections. The watcher
// runs alongside the listener when live reload is on.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		s.log.Info("serving reports", "addr", addr, "dir", s.opts.Dir, "live_reload", s.opts.LiveReload)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.opts.LiveReload {
		grp.Go(func() error {
			err := NewWatcher(s.opts.Dir, s.hub, s.log).Run(grpCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	grp.Go(func() error {
		<-grpCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return grp.Wait()
}
