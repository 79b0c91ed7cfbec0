package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

const TaskIngestDocument = "document:ingest"

// IngestPayload carries one document through Redis to the worker. Content
// is raw bytes; encoding/json transports it base64-encoded.
type IngestPayload struct {
	Content  []byte            `json:"content"`
	Filename string            `json:"filename"`
	Format   string            `json:"format"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewIngestTask(content []byte, filename, format string, metadata map[string]string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		Content:  content,
		Filename: filename,
		Format:   format,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// Ingestor is the ingestion entry point the worker invokes per task.
type Ingestor interface {
	Ingest(ctx context.Context, content []byte, filename, declaredFormat string, metadata map[string]string) (*models.IngestResponse, error)
}

type TaskProcessor struct {
	ingestion Ingestor
}

func NewTaskProcessor(ingestion Ingestor) *TaskProcessor {
	return &TaskProcessor{ingestion: ingestion}
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	resp, err := p.ingestion.Ingest(ctx, payload.Content, payload.Filename, payload.Format, payload.Metadata)
	if err != nil {
		// Malformed input will not become valid on retry; dependency
		// failures might.
		switch utils.KindOf(err) {
		case utils.KindValidation, utils.KindUnsupportedFormat, utils.KindExtraction:
			logger.Error("Ingest task rejected", "filename", payload.Filename, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		default:
			return err
		}
	}

	logger.Info("Ingest task completed",
		"document_id", resp.DocumentID,
		"filename", resp.Filename,
		"chunks", resp.ChunksCount)
	return nil
}
