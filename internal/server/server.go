package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeffasante/skincare-analysis-api/internal/config"
	"github.com/jeffasante/skincare-analysis-api/internal/handler"
	"github.com/jeffasante/skincare-analysis-api/internal/metrics"
	"github.com/jeffasante/skincare-analysis-api/internal/repository"
	"github.com/jeffasante/skincare-analysis-api/internal/service"
	"github.com/jeffasante/skincare-analysis-api/internal/validator"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

// Deps are the collaborators behind the router.
type Deps struct {
	Images   service.ImageService
	Analysis service.AnalysisService
	Gatherer prometheus.Gatherer
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	store, err := NewStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewPrometheusObserver("skincare", registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	v := validator.New(cfg.App.MaxUploadSize, cfg.App.AllowedExtensions, cfg.App.AllowedMimeTypes)
	images := service.NewImageService(store, v, log, service.WithObserver(observer))
	analysis := service.NewAnalysisService(log, cfg.App.AnalysisCacheSize, observer)

	router := NewRouter(cfg, Deps{Images: images, Analysis: analysis, Gatherer: registry}, log)

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.App.StorageBackend))

	return server, nil
}

// NewStore opens the object store selected by STORAGE_BACKEND.
func NewStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.ObjectStore, error) {
	switch cfg.App.StorageBackend {
	case config.BackendS3:
		store, err := repository.NewS3Repository(ctx, &cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 repository: %w", err)
		}
		return store, nil
	default:
		store, err := repository.NewLocalRepository(cfg.App.UploadDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create local repository: %w", err)
		}
		log.Info("Upload directory configured and ready", zap.String("upload_dir", store.Root()))
		return store, nil
	}
}

func NewRouter(cfg *config.Config, deps Deps, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestLogger(log))
	router.Use(cors.New(corsConfig(cfg.Server.CORSAllowedOrigins)))
	router.Use(handler.APIKey(cfg.Server.APIKey, log, "/health", "/metrics"))

	h := handler.NewHandler(deps.Images, deps.Analysis, log)

	router.GET("/health", h.HealthCheck)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	router.POST("/upload", h.UploadImage)
	router.POST("/analyze", h.AnalyzeImage)

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", handler.APIKeyHeader}
	return c
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
