package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/queue"
	"rag-knowledge-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// The worker shares the ingestion pipeline with the HTTP server; only
	// the entry point differs. The memory backend is per-process, so async
	// ingestion requires the mongo backend.
	if cfg.VectorBackend != "mongo" {
		log.Fatal("Async ingestion requires VECTOR_BACKEND=mongo")
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	aiClient, err := ai.NewClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize AI client:", err)
	}
	defer aiClient.Close()

	vectorIndex := index.NewMongoIndex(mongoClient, cfg)
	registry := services.NewMongoDocumentRegistry(mongoClient, cfg.DBName)

	ingestion, err := services.NewIngestionService(cfg, aiClient, vectorIndex, registry)
	if err != nil {
		log.Fatal("Failed to initialize ingestion service:", err)
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"ingest":  8,
				"default": 2,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "task", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngest)

	logger.Info("Starting ingest worker",
		"concurrency", cfg.WorkerConcurrency,
		"redis", cfg.RedisURL)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
