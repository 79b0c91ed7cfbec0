package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/middleware"
	"rag-knowledge-platform/routes"
	"rag-knowledge-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.OTELEnabled {
		shutdown, err := telemetry.InitTracer("rag-knowledge-platform", cfg.OTELEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracer:", err)
		}
		defer shutdown()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// MongoDB backs both the vector index and the document registry; the
	// memory backend needs neither.
	var mongoClient *mongo.Client
	if cfg.VectorBackend == "mongo" {
		mongoClient, err = config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
	}

	var rdb *redis.Client
	if cfg.CacheBackend == "redis" || cfg.AsyncIngestEnabled || cfg.RateLimitReqs > 0 {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			if cfg.CacheBackend == "redis" || cfg.AsyncIngestEnabled {
				log.Fatal("Failed to connect to Redis:", err)
			}
			// Rate limiting fails open without Redis.
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	aiClient, err := ai.NewClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize AI client:", err)
	}
	defer aiClient.Close()

	var vectorIndex index.VectorIndex
	var registry services.DocumentRegistry
	switch cfg.VectorBackend {
	case "mongo":
		vectorIndex = index.NewMongoIndex(mongoClient, cfg)
		registry = services.NewMongoDocumentRegistry(mongoClient, cfg.DBName)
	default:
		vectorIndex = index.NewMemoryIndex(cfg.VectorDimensions)
		registry = services.NewMemoryDocumentRegistry()
	}

	var cache services.QueryCache
	if cfg.CacheEnabled {
		if cfg.CacheBackend == "redis" {
			cache = services.NewRedisCache(rdb)
		} else {
			memCache := services.NewMemoryCache(cfg.CacheCapacity)
			cache = memCache

			janitor, err := services.NewCacheJanitor(memCache, 5*time.Minute)
			if err != nil {
				log.Fatal("Failed to schedule cache sweep:", err)
			}
			janitor.Start()
			defer janitor.Stop()
		}
	}

	ingestion, err := services.NewIngestionService(cfg, aiClient, vectorIndex, registry)
	if err != nil {
		log.Fatal("Failed to initialize ingestion service:", err)
	}
	querySvc := services.NewQueryService(cfg, aiClient, aiClient, vectorIndex, cache)

	var queueClient *asynq.Client
	if cfg.AsyncIngestEnabled {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.OTELEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"timestamp":      time.Now(),
			"vector_backend": cfg.VectorBackend,
			"cache":          querySvc.CacheStats(),
		})
	})

	router.POST("/query", routes.HandleQuery(querySvc, metrics))
	router.GET("/cache/stats", routes.HandleCacheStats(querySvc))
	router.POST("/ingest", routes.HandleIngest(cfg, ingestion, metrics))
	if queueClient != nil {
		router.POST("/ingest/async", routes.HandleIngestAsync(cfg, queueClient))
	}
	router.GET("/documents/:id", routes.HandleGetDocument(registry))
	router.DELETE("/documents/:id", routes.HandleDeleteDocument(ingestion))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "vector_backend", cfg.VectorBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
