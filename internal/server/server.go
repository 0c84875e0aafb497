// Package server exposes the prober over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PentesterFlow/PanelProbe/internal/logger"
	"github.com/PentesterFlow/PanelProbe/internal/trace"
	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr              string
	AllowOrigins      []string
	MaxRequestBytes   int64
	ReadHeaderTimeout time.Duration
	// Upper bound for one probe, covering every strategy it runs
	ProbeTimeout time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		AllowOrigins:      []string{"*"},
		MaxRequestBytes:   1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ProbeTimeout:      3 * time.Minute,
	}
}

// Server serves the validation API.
type Server struct {
	config Config
	prober *prober.Prober
	traces *trace.Store
	logger *logger.Logger
	engine *gin.Engine
	http   *http.Server
}

// New builds the server. traces may be nil to disable trace recording.
func New(cfg Config, p *prober.Prober, traces *trace.Store, log *logger.Logger) *Server {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = DefaultConfig().MaxRequestBytes
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	if log == nil {
		log = logger.Global()
	}

	s := &Server{
		config: cfg,
		prober: p,
		traces: traces,
		logger: log.WithComponent("server"),
	}
	s.engine = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	api := r.Group("/api")
	api.POST("/validate", s.handleValidate)
	api.GET("/providers", s.handleProviders)
	api.GET("/metrics", s.handleMetrics)
	api.GET("/traces", s.handleTraces)
	api.GET("/traces/:id", s.handleTrace)

	r.GET("/ws/validate", s.handleStream)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Listening on %s", s.config.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// record stores a finished probe when a trace store is configured.
func (s *Server) record(req prober.Request, res *prober.Result) {
	if s.traces == nil {
		return
	}
	if err := s.traces.Save(trace.NewRecord(req, res)); err != nil {
		s.logger.WithError(err).Warn("Failed to store trace")
	}
}
