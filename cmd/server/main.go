package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skedlab/extractor-api/internal/config"
	"github.com/skedlab/extractor-api/internal/handler"
	"github.com/skedlab/extractor-api/internal/handler/middleware"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/secrets"
	"github.com/skedlab/extractor-api/internal/service"
	"github.com/skedlab/extractor-api/internal/storage/memstorage"
	"github.com/skedlab/extractor-api/internal/storage/postgres"
	"github.com/skedlab/extractor-api/internal/storage/redis"
	"github.com/skedlab/extractor-api/internal/worker"
	"github.com/skedlab/extractor-api/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()
	sugarLogger.Info("Starting extractor key-pool API...")

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	cipher, err := secrets.FromConfig(cfg.Secrets.Cipher, cfg.Secrets.AESKey)
	if err != nil {
		sugarLogger.Fatalf("Failed to build secrets cipher: %v", err)
	}
	if cfg.Secrets.Cipher == "" || cfg.Secrets.Cipher == "plaintext" {
		appLogger.Warn("Key secrets are stored unencrypted; configure secrets.cipher=aesgcm for production")
	}

	apiKeyRepo := postgres.NewAPIKeyRepository(dbPool, appLogger)
	usageLogRepo := postgres.NewUsageLogRepository(dbPool, appLogger)
	analyticsRepo := postgres.NewTokenAnalyticsRepository(dbPool, appLogger)
	userRepoMock := memstorage.NewUserRepositoryMock()

	keyService := service.NewKeyService(apiKeyRepo, usageLogRepo, cipher, cfg.Provider, appLogger)
	selectorService := service.NewSelectorService(apiKeyRepo, appLogger)
	usageService := service.NewUsageService(apiKeyRepo, usageLogRepo, appLogger)
	analyticsService := service.NewAnalyticsService(usageLogRepo, analyticsRepo, cfg.Provider.FreeTierTokenLimit, appLogger)
	authService := service.NewAuthService(userRepoMock, &cfg.JWT, appLogger)

	healthHandler := handler.NewHealthHandler(dbPool, redisClient, appLogger)
	apiKeyHandler := handler.NewAPIKeyHandler(keyService, selectorService, appLogger)
	usageHandler := handler.NewUsageHandler(usageService, analyticsService, appLogger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, appLogger)
	authHandler := handler.NewAuthHandler(authService, appLogger)

	authMiddleware := middleware.AuthMiddleware(authService, appLogger)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	corsConfig := cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(errorMiddleware)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/api/v1/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(authMiddleware)
	{
		keyRoutes := apiV1.Group("/keys")
		{
			keyRoutes.POST("", apiKeyHandler.Register)
			keyRoutes.GET("", apiKeyHandler.List)
			keyRoutes.GET("/stats", apiKeyHandler.StatsView)
			keyRoutes.GET("/available", apiKeyHandler.Available)
			keyRoutes.GET("/:id/stats", apiKeyHandler.Stats)
			keyRoutes.PATCH("/:id", apiKeyHandler.Update)
			keyRoutes.DELETE("/:id", apiKeyHandler.Delete)
		}

		usageRoutes := apiV1.Group("/usage")
		{
			usageRoutes.POST("", usageHandler.Record)
			usageRoutes.GET("/report", usageHandler.Report)
		}

		analyticsRoutes := apiV1.Group("/analytics")
		{
			analyticsRoutes.GET("/tokens", analyticsHandler.TokenReport)
			analyticsRoutes.POST("/tokens", analyticsHandler.IngestExtraction)
		}
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := worker.RunWorkers(groupCtx, cfg, usageLogRepo, appLogger); err != nil {
			return fmt.Errorf("asynq worker error: %w", err)
		}
		return nil
	})

	sugarLogger.Info("Application started. Waiting for interrupt signal or component error...")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sugarLogger.Errorf("Application shutdown finished with error: %v", err)
	} else {
		sugarLogger.Info("Application shutdown complete.")
	}
}
