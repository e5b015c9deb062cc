package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/analyzer"
	"github.com/costquest/backend/internal/api/handlers"
	"github.com/costquest/backend/internal/boq"
	"github.com/costquest/backend/internal/cache/redis"
	"github.com/costquest/backend/internal/ledger"
	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/metrics"
	"github.com/costquest/backend/internal/pipeline"
	"github.com/costquest/backend/internal/pricing"
	"github.com/costquest/backend/internal/scoring"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/internal/suggest"
	"github.com/costquest/backend/pkg/config"
	appLogger "github.com/costquest/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting CostQuest API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var listingCache pricing.ListingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		listingCache = redisClient
	}

	var fallbackMarket pricing.MarketSource
	if cfg.Pricing.VendorSearchURL != "" {
		fallbackMarket = pricing.NewWebMarket(
			cfg.Pricing.VendorSearchURL,
			cfg.Pricing.WebSearchSec,
			cfg.Pricing.MaxListings,
		)
	}

	aggregator := pricing.NewAggregator(
		pricing.NewLLMMarket(llmClient, cfg.Pricing.MaxListings),
		fallbackMarket,
		pricing.NewSQLiteHistory(sqliteClient),
		listingCache,
		pricing.Config{
			ExcludedTerms:    cfg.Pricing.ExcludedTerms,
			ExcludedPrefixes: cfg.Pricing.ExcludedPrefixes,
			DefaultLocation:  cfg.Pricing.SiteLocation,
		},
	)

	estimationPipeline := pipeline.New(
		sqliteClient,
		analyzer.NewAnalyzer(llmClient),
		boq.NewGenerator(llmClient),
		aggregator,
		pipeline.Config{
			LaborRatio:       cfg.Estimate.LaborRatio,
			ContingencyRatio: cfg.Estimate.ContingencyRatio,
		},
	)

	estimateLedger := ledger.New(sqliteClient)
	scorer := scoring.NewScorer(sqliteClient, llmClient)
	suggester := suggest.NewSuggester(sqliteClient, llmClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	estimationHandler := handlers.NewEstimationHandler(estimationPipeline, sqliteClient)
	estimateHandler := handlers.NewEstimateHandler(estimateLedger, suggester, cfg.Estimate.DefaultContingencyPct)
	accuracyHandler := handlers.NewAccuracyHandler(scorer, sqliteClient)
	challengeHandler := handlers.NewChallengeHandler(sqliteClient)
	materialsHandler := handlers.NewMaterialsHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/challenges", challengeHandler.CreateChallenge)
	api.Get("/challenges/:challengeId", challengeHandler.GetChallenge)

	api.Post("/estimation/run", estimationHandler.RunEstimation)
	api.Get("/estimation/:challengeId", estimationHandler.GetAIEstimate)
	api.Get("/estimation/:challengeId/summary", estimationHandler.GetSummary)
	api.Put("/estimation/:challengeId/curated", estimationHandler.SaveCurated)

	api.Post("/estimates", estimateHandler.SaveEstimation)
	api.Get("/estimates/:studentId/:challengeId", estimateHandler.GetEstimation)
	api.Post("/ai-suggestions", estimateHandler.GetSuggestions)

	api.Post("/accuracy", accuracyHandler.ComputeAccuracy)
	api.Get("/accuracy/:studentId/:challengeId", accuracyHandler.GetAccuracy)

	api.Post("/materials", materialsHandler.CreateMaterial)
	api.Get("/materials", materialsHandler.ListMaterials)
	api.Put("/materials/:materialId", materialsHandler.UpdateMaterial)
	api.Delete("/materials/:materialId", materialsHandler.DeleteMaterial)

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
