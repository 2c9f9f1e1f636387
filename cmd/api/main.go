package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/api/handlers"
	redisCache "github.com/policy-navigator/backend/internal/cache/redis"
	"github.com/policy-navigator/backend/internal/caselaw"
	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/corpus/memory"
	"github.com/policy-navigator/backend/internal/corpus/milvus"
	"github.com/policy-navigator/backend/internal/embedding"
	"github.com/policy-navigator/backend/internal/ingestion"
	"github.com/policy-navigator/backend/internal/metrics"
	"github.com/policy-navigator/backend/internal/middleware/ratelimit"
	"github.com/policy-navigator/backend/internal/middleware/security"
	"github.com/policy-navigator/backend/internal/middleware/validation"
	"github.com/policy-navigator/backend/internal/notify"
	"github.com/policy-navigator/backend/internal/query"
	"github.com/policy-navigator/backend/internal/registry"
	"github.com/policy-navigator/backend/internal/router"
	"github.com/policy-navigator/backend/internal/storage/sqlite"
	"github.com/policy-navigator/backend/pkg/config"
	appLogger "github.com/policy-navigator/backend/pkg/logger"
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

	appLogger.Info("Starting Policy Navigator API Server")

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

	embedder := embedding.NewClient(
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		time.Duration(cfg.Embedding.TimeoutSec)*time.Second,
	)

	var store corpus.Store
	if cfg.Milvus.Enabled {
		milvusStore, err := milvus.NewStore(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
			embedder,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus store", zap.Error(err))
		}
		defer milvusStore.Close()

		err = milvusStore.EnsureCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to ensure Milvus collection", zap.Error(err))
		}
		store = milvusStore
	} else {
		store = memory.NewIndex(embedder)
	}

	var cacheClient *redisCache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
	}

	registryClient := registry.NewClient(
		cfg.Registry.BaseURL,
		time.Duration(cfg.Registry.TimeoutSec)*time.Second,
	)
	caseLawClient := caselaw.NewClient(
		cfg.CaseLaw.BaseURL,
		cfg.CaseLaw.APIToken,
		time.Duration(cfg.CaseLaw.TimeoutSec)*time.Second,
	)

	hub := notify.NewHub()

	var ingestCache ingestion.QueryCache
	if cacheClient != nil {
		ingestCache = cacheClient
	}
	processor := ingestion.NewProcessor(sqliteClient, store, ingestCache, hub, embedder)

	restored, err := processor.Restore(context.Background())
	if err != nil {
		appLogger.Warn("Failed to restore corpus", zap.Error(err))
	} else if restored > 0 {
		appLogger.Info("Corpus ready", zap.Int("documents", restored))
	}

	engineOpts := []query.Option{
		query.WithDB(sqliteClient),
		query.WithTopK(cfg.Query.TopK),
		query.WithToolTimeout(time.Duration(cfg.Query.ToolTimeoutSec) * time.Second),
	}
	if cacheClient != nil {
		engineOpts = append(engineOpts,
			query.WithCache(cacheClient, time.Duration(cfg.Redis.TTLSec)*time.Second),
		)
	}
	engine := query.NewEngine(router.New(), store, registryClient, caseLawClient, engineOpts...)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go watchRegistry(monitorCtx, registryClient, hub)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(engine, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(processor, store)
	registryHandler := handlers.NewRegistryHandler(registryClient)
	wsHandler := handlers.NewWebSocketHandler(hub)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Post("/feedback", queryHandler.SubmitFeedback)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents/count", documentHandler.CountDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)

	api.Get("/registry/recent", registryHandler.RecentRules)

	api.Use("/notifications", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/notifications", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		count, err := store.Count(c.Context())
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status":    "ready",
			"documents": count,
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

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
	stopMonitor()
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// watchRegistry polls for newly published rules and announces them to
// notification subscribers. Fallback results are not announced.
func watchRegistry(ctx context.Context, client *registry.Client, hub *notify.Hub) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result := client.RecentRules(ctx, 7)
		if !result.Available() {
			continue
		}

		for _, rule := range result.Value {
			if seen[rule.Identifier] {
				continue
			}
			seen[rule.Identifier] = true
			hub.Publish(notify.Update{
				PolicyTitle: rule.Identifier,
				UpdateType:  notify.UpdateNewRule,
				Details:     rule.Summary,
			})
		}
	}
}
