package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-coverage/internal/api/handlers"
	"github.com/stitts-dev/dfs-coverage/internal/export"
	"github.com/stitts-dev/dfs-coverage/internal/websocket"
	"github.com/stitts-dev/dfs-coverage/pkg/cache"
	"github.com/stitts-dev/dfs-coverage/pkg/config"
	"github.com/stitts-dev/dfs-coverage/pkg/logger"
)

const service = "lineup-coverage-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	logger.WithService(service).WithFields(logrus.Fields{
		"environment":    cfg.Env,
		"port":           cfg.Port,
		"search_workers": cfg.SearchWorkers,
		"cache_enabled":  cfg.EnableCache,
	}).Info("Starting lineup coverage service")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redis is optional; without it every request is computed fresh
	var (
		store  handlers.PortfolioStore
		pinger handlers.Pinger
	)
	if cfg.EnableCache {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithService(service).Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opt)
		defer redisClient.Close()

		portfolioCache := cache.NewPortfolioCache(redisClient, cfg.CacheTTL, structuredLogger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := portfolioCache.Ping(pingCtx); err != nil {
			logger.WithService(service).WithError(err).Warn("Redis unavailable at startup, cache will be retried per request")
		}
		cancel()
		store, pinger = portfolioCache, portfolioCache
	}

	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run()
	defer wsHub.Stop()

	exporter := export.NewUploadExporter(cfg.UploadBatchSize, structuredLogger)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	lineupHandler := handlers.NewLineupHandler(store, wsHub, exporter, cfg, structuredLogger)
	healthHandler := handlers.NewHealthHandler(pinger, wsHub, structuredLogger)

	apiV1 := router.Group("/api/v1")
	{
		lineups := apiV1.Group("/lineups")
		lineups.POST("/generate", lineupHandler.GenerateLineups)
		lineups.POST("/validate", lineupHandler.ValidateLineup)
		lineups.POST("/export", lineupHandler.ExportLineups)
	}

	router.GET("/ws/lineup-progress/:run_id", wsHub.HandleWebSocket)

	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.WithService(service).WithField("port", cfg.Port).Info("Lineup coverage service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService(service).Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService(service).Info("Shutting down lineup coverage service...")

	// In-flight searches get 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithService(service).Fatalf("Server forced to shutdown: %v", err)
	}

	logger.WithService(service).Info("Lineup coverage service exited")
}
