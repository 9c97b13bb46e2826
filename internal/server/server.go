package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"genico/internal/config"
	"genico/internal/handler"
	"genico/internal/repository"
	"genico/internal/service"
	"genico/internal/templates"
)

type Server struct {
	httpServer *http.Server
	renderer   *templates.Renderer
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	staging, err := repository.NewStagingRepository(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging repository: %w", err)
	}

	sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	removed, err := staging.Sweep(sweepCtx, time.Now().Add(-cfg.Staging.SweepAge))
	cancel()
	if err != nil {
		log.Warn("Failed to sweep staged uploads", zap.Error(err))
	} else if removed > 0 {
		log.Info("Removed stale staged uploads", zap.Int("count", removed))
	}

	renderer := templates.NewRenderer(cfg.App.TemplateDir, log)
	if cfg.App.WatchTemplates {
		if err := renderer.Watch(); err != nil {
			log.Warn("Template reloading disabled", zap.Error(err))
		}
	}

	iconService := service.NewIconService(staging, log)
	h := handler.NewHandler(iconService, renderer, cfg, log)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Addr(),
			Handler:        NewRouter(h, cfg, log),
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		renderer: renderer,
		cfg:      cfg,
		log:      log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("staging", cfg.Staging.Backend))

	return server, nil
}

// NewRouter wires the upload form, the static files under the template
// directory and the conversion endpoint. Uploads are accepted on any path, so
// gin's own 405 handling is left off: it would claim every unknown GET path.
func NewRouter(h *handler.Handler, cfg *config.Config, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(log), gin.Recovery())

	router.GET("/", h.GetUI)
	router.GET("/health", h.HealthCheck)
	router.GET("/favicon.ico", h.GetFavicon)
	router.GET(strings.TrimSuffix(cfg.App.StaticPrefix, "/")+"/*filepath", h.GetStatic)

	router.POST("/*path", h.ConvertIcon)

	router.NoRoute(h.NotFound)

	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr),
		zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port)))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	if err := s.renderer.Close(); err != nil {
		s.log.Warn("Failed to stop template watcher", zap.Error(err))
	}
	return s.httpServer.Shutdown(ctx)
}
