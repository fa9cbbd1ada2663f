package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/api/handlers"
	"github.com/steadfast-labs/coverdocs/internal/config"
	"github.com/steadfast-labs/coverdocs/internal/database"
	"github.com/steadfast-labs/coverdocs/internal/elastic"
	"github.com/steadfast-labs/coverdocs/internal/health"
	"github.com/steadfast-labs/coverdocs/internal/llm"
	"github.com/steadfast-labs/coverdocs/internal/middleware"
	"github.com/steadfast-labs/coverdocs/internal/models"
	"github.com/steadfast-labs/coverdocs/internal/query"
	"github.com/steadfast-labs/coverdocs/internal/services"
	"github.com/steadfast-labs/coverdocs/internal/telemetry"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	logger.Info("Starting coverdocs backend...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateSearch(); err != nil {
		logger.WithError(err).Fatal("Search backend configuration validation failed")
	}
	if err := cfg.ValidateInference(); err != nil {
		logger.WithError(err).Fatal("Inference backend configuration validation failed")
	}

	template, err := query.Load(cfg.Search.TemplatePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load query template")
	}

	searchClient := elastic.NewClient(cfg.Search.URL, cfg.Search.APIKey, logger)
	llmClient := llm.NewClient(cfg.Inference.URL, cfg.Inference.APIKey, cfg.Inference.Model, logger)
	recorder := telemetry.NewRecorder(searchClient, cfg.Search.UsageIndex, logger)

	// The cache is optional: without Redis everything still works, just
	// slower. The interface stays nil unless a connection came up.
	var cache services.ResponseCache
	var dbManager *database.Manager
	if cfg.Redis.URL != "" {
		dbManager, err = database.NewManager(cfg.Redis.URL, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without cache")
		} else {
			defer dbManager.Close()
			cache = database.NewCache(dbManager.Redis, logger)
		}
	}

	searchService := services.NewSearchService(searchClient, template, recorder, cache, cfg.Search.Index, logger)
	completionService := llm.NewCompletionService(llmClient, logger)
	checker := health.NewChecker(searchClient, dbManager, logger)

	go warmUpModels(searchService, llmClient, logger)

	router := setupRouter(searchService, completionService, recorder, checker, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	// Let in-flight telemetry writes finish before the process exits.
	recorder.Drain()

	logger.Info("Shutdown complete")
}

func setupRouter(
	searchService *services.SearchService,
	completionService *llm.CompletionService,
	recorder *telemetry.Recorder,
	checker *health.Checker,
	logger *logrus.Logger,
) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(corsOrigin()))

	rateLimiter := middleware.NewRateLimiter(120)

	searchHandler := handlers.NewSearchHandler(searchService, logger)
	chatHandler := handlers.NewChatHandler(completionService, logger)
	telemetryHandler := handlers.NewTelemetryHandler(recorder, logger)
	healthHandler := handlers.NewHealthHandler(checker)

	api := router.Group("/api")
	api.Use(rateLimiter.RateLimit())
	{
		api.POST("/search", searchHandler.HandleSearch)
		api.GET("/facets", searchHandler.HandleFacets)
		api.POST("/chat-completion", chatHandler.HandleChatCompletion)
		api.POST("/telemetry/access", telemetryHandler.HandleAccess)
		api.POST("/telemetry/click", telemetryHandler.HandleClick)
		api.GET("/health", healthHandler.HandleHealth)
	}

	return router
}

func corsOrigin() string {
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		return origin
	}
	return "*"
}

// warmUpModels pre-loads the semantic ranking and generation models so
// the first real user request skips the cold start.
func warmUpModels(searchService *services.SearchService, llmClient *llm.Client, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := searchService.WarmUp(ctx); err != nil {
		logger.WithError(err).Warn("Search model warm-up failed")
	} else {
		logger.Info("Search model warmed up")
	}

	_, err := llmClient.Complete(ctx, []models.ChatMessage{
		{Role: "user", Content: "ping"},
	})
	if err != nil {
		logger.WithError(err).Warn("Inference model warm-up failed")
	} else {
		logger.Info("Inference model warmed up")
	}
}
