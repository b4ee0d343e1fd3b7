package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/config"
	"github.com/adminsuite/backoffice/pkg/metrics"
	"github.com/adminsuite/backoffice/pkg/ratelimit"
	"github.com/adminsuite/backoffice/pkg/version"
)

// APIController is one routable unit of the back-office API.
type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin     *gin.Engine
	config  config.Config
	log     *zap.Logger
	srv     *http.Server
	limiter *ratelimit.IPRateLimiter
}

func NewServer(log *zap.Logger, cfg config.Config) *Server {
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		requestMetrics(),
	)

	if len(cfg.Server.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.Server.TrustedProxies)
	}

	if cfg.Server.Debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    log.Named("api"),
	}

	if cfg.Server.RateLimitPerSecond > 0 {
		limitCfg := ratelimit.DefaultAPIConfig()
		limitCfg.Rate = cfg.Server.RateLimitPerSecond
		if cfg.Server.RateLimitBurst > 0 {
			limitCfg.Burst = cfg.Server.RateLimitBurst
		}
		s.limiter = ratelimit.New(limitCfg)
		engine.Use(s.limiter.Middleware())
	}

	engine.GET("/healthz", s.getHealth)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	return s
}

// RegisterAll mounts all controllers below /api.
func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.gin
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	s.srv = &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening", zap.String("address", s.config.Server.ListenAddress))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"build":  version.GetBuildInfo(),
	})
}

// requestMetrics counts requests per method, route template and status.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}
