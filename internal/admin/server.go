// Package admin serves a read-only HTTP view of a host runtime: loaded
// plugins, their filter classes, live instances and metrics.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/weedcore/internal/auth"
	"github.com/danmuck/weedcore/internal/host"
	"github.com/danmuck/weedcore/internal/logging"
	"github.com/danmuck/weedcore/internal/observability"
	"github.com/danmuck/weedcore/internal/weed"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	ID       string
	Addr     string
	Started  time.Time
	Version  string
	runtime  *host.Runtime
	auth     auth.Validator
	router   *gin.Engine
	logger   zerolog.Logger
	listener net.Listener
}

func New(id, addr string, corsOrigins []string, rt *host.Runtime) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	logger := logging.Component("admin")
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:      id,
		Addr:    addr,
		Started: time.Now(),
		Version: rt.Config().Version,
		runtime: rt,
		auth:    auth.FromConfig(rt.Config().AdminToken),
		router:  r,
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	var r gin.IRouter = s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"host":    s.ID,
			"version": s.Version,
		})
	})

	r = r.Group("/", s.requireToken)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/plugins", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plugins": s.runtime.Plugins()})
	})
	r.GET("/plugins/:name", func(c *gin.Context) {
		p, err := s.runtime.Plugin(c.Param("name"))
		if err != nil {
			s.fail(c, err)
			return
		}
		body := gin.H{"plugin": p}
		if p.State == host.StateLoaded {
			tree, err := s.runtime.DescribePlugin(p.Name)
			if err != nil {
				s.fail(c, err)
				return
			}
			body["tree"] = tree
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/filters", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"filters": s.runtime.Filters()})
	})
	r.GET("/filters/:name", func(c *gin.Context) {
		f, err := s.runtime.Filter(c.Param("name"))
		if err != nil {
			s.fail(c, err)
			return
		}
		tree, err := s.runtime.Describe(f.Key)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"filter": f, "tree": tree})
	})
	r.GET("/filters/:name/wire", func(c *gin.Context) {
		buf, err := s.runtime.Export(c.Param("name"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", buf)
	})

	r.GET("/instances", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"instances": s.runtime.Instances()})
	})
}

// requireToken rejects requests without a valid bearer token. With no
// admin token configured every request passes.
func (s *Server) requireToken(c *gin.Context) {
	if _, open := s.auth.(auth.Open); open {
		c.Next()
		return
	}
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err == nil {
		err = s.auth.Validate(token)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, host.ErrUnknownPlugin), errors.Is(err, host.ErrUnknownFilter):
		status = http.StatusNotFound
	case errors.Is(err, host.ErrAmbiguousFilter), errors.Is(err, weed.ErrNotReady):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Listen binds the admin address. Serve must follow.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.Addr = ln.Addr().String()
	return nil
}

// Serve runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr).Msg("admin listening")
		errCh <- srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("admin stopped")
	return nil
}
