package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

type stubIngestor struct {
	calls int
	last  IngestPayload
	fail  error
}

func (s *stubIngestor) Ingest(ctx context.Context, content []byte, filename, declaredFormat string, metadata map[string]string) (*models.IngestResponse, error) {
	s.calls++
	s.last = IngestPayload{Content: content, Filename: filename, Format: declaredFormat, Metadata: metadata}
	if s.fail != nil {
		return nil, s.fail
	}
	return &models.IngestResponse{DocumentID: "doc-1", Filename: filename, ChunksCount: 3}, nil
}

func TestIngestTaskRoundTrip(t *testing.T) {
	task, err := NewIngestTask([]byte("raw bytes"), "a.txt", "txt", map[string]string{"team": "infra"})
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskIngestDocument {
		t.Fatalf("task type = %s", task.Type())
	}

	var payload IngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if string(payload.Content) != "raw bytes" || payload.Filename != "a.txt" {
		t.Fatalf("payload mangled: %+v", payload)
	}

	ingestor := &stubIngestor{}
	processor := NewTaskProcessor(ingestor)
	if err := processor.ProcessIngest(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if ingestor.calls != 1 || ingestor.last.Metadata["team"] != "infra" {
		t.Fatalf("ingestor state: %+v", ingestor)
	}
}

func TestProcessIngestSkipsRetryOnBadInput(t *testing.T) {
	task, err := NewIngestTask([]byte("x"), "a.png", "png", nil)
	if err != nil {
		t.Fatal(err)
	}

	ingestor := &stubIngestor{fail: utils.E(utils.KindUnsupportedFormat, "png", nil)}
	processor := NewTaskProcessor(ingestor)

	err = processor.ProcessIngest(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad input must skip retries, got %v", err)
	}
}

func TestProcessIngestRetriesDependencyFailures(t *testing.T) {
	task, err := NewIngestTask([]byte("x"), "a.txt", "txt", nil)
	if err != nil {
		t.Fatal(err)
	}

	ingestor := &stubIngestor{fail: utils.E(utils.KindEmbeddingService, "down", nil)}
	processor := NewTaskProcessor(ingestor)

	err = processor.ProcessIngest(context.Background(), task)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("dependency failures must stay retryable")
	}
}
