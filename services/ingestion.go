package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// Embedder is the slice of the AI client the pipeline needs for turning
// text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestionService coordinates extraction, chunking, embedding and indexing
// for one document. Extraction and chunking are local; embedding and
// indexing cross the external boundary and are the only retried steps.
type IngestionService struct {
	cfg       *config.Config
	extractor *Extractor
	chunker   *Chunker
	embedder  Embedder
	index     index.VectorIndex
	registry  DocumentRegistry
	retry     utils.RetryPolicy
}

func NewIngestionService(cfg *config.Config, embedder Embedder, vectorIndex index.VectorIndex, registry DocumentRegistry) (*IngestionService, error) {
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &IngestionService{
		cfg:       cfg,
		extractor: NewExtractor(),
		chunker:   chunker,
		embedder:  embedder,
		index:     vectorIndex,
		registry:  registry,
		retry:     utils.NewRetryPolicy(cfg.MaxRetries, time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond),
	}, nil
}

// Ingest processes one document end to end and returns its generated ID and
// chunk count. A zero-chunk document (empty input) is confirmed with
// chunk_count = 0, not failed. If indexing fails after embedding, the
// failure is surfaced and the document is left in the failed state; already
// written vectors are not rolled back.
func (s *IngestionService) Ingest(ctx context.Context, content []byte, filename, declaredFormat string, userMetadata map[string]string) (*models.IngestResponse, error) {
	format, err := models.ParseFormat(declaredFormat, filename)
	if err != nil {
		return nil, utils.E(utils.KindUnsupportedFormat, err.Error(), nil)
	}
	if s.cfg.MaxDocumentSize > 0 && int64(len(content)) > s.cfg.MaxDocumentSize {
		return nil, utils.E(utils.KindValidation,
			fmt.Sprintf("document exceeds maximum size of %d bytes", s.cfg.MaxDocumentSize), nil)
	}

	documentID := uuid.NewString()
	doc := &models.Document{
		ID:        documentID,
		Filename:  filename,
		Format:    format,
		Metadata:  userMetadata,
		Status:    models.StatusReceived,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.registry.Insert(ctx, doc); err != nil {
		return nil, err
	}

	logger.Info("Ingesting document", "document_id", documentID, "filename", filename, "format", format)

	text, err := s.extractor.Extract(content, format)
	if err != nil {
		s.markFailed(ctx, documentID)
		return nil, err
	}
	s.transition(ctx, documentID, models.StatusExtracted)

	metadata := FileMetadata(filename, len(content), format, content)
	for key, value := range userMetadata {
		metadata[key] = value
	}

	chunks := s.chunker.Chunk(CleanText(text))
	s.transition(ctx, documentID, models.StatusChunked)

	if len(chunks) == 0 {
		if err := s.registry.UpdateStatus(ctx, documentID, models.StatusConfirmed, 0); err != nil {
			return nil, err
		}
		logger.Info("Document confirmed with no content", "document_id", documentID)
		return &models.IngestResponse{DocumentID: documentID, Filename: filename, ChunksCount: 0}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err = s.retry.Do(ctx, func() error {
		var embedErr error
		vectors, embedErr = s.embedder.EmbedBatch(ctx, texts)
		return embedErr
	})
	if err != nil {
		s.markFailed(ctx, documentID)
		return nil, err
	}
	s.transition(ctx, documentID, models.StatusEmbedded)

	for i := range chunks {
		chunks[i].ChunkID = fmt.Sprintf("%s_%d", documentID, chunks[i].Index)
		chunks[i].DocumentID = documentID
		chunks[i].Embedding = vectors[i]
		chunks[i].Metadata = metadata
	}

	err = s.retry.Do(ctx, func() error {
		return s.index.UpsertBatch(ctx, chunks)
	})
	if err != nil {
		// Some vectors may already be written; surfacing the failure (and
		// not confirming the document) leaves the retry-or-cleanup decision
		// to the caller.
		s.markFailed(ctx, documentID)
		return nil, err
	}
	s.transition(ctx, documentID, models.StatusIndexed)

	if err := s.registry.UpdateStatus(ctx, documentID, models.StatusConfirmed, len(chunks)); err != nil {
		return nil, err
	}

	logger.Info("Document ingested", "document_id", documentID, "chunks", len(chunks))
	return &models.IngestResponse{DocumentID: documentID, Filename: filename, ChunksCount: len(chunks)}, nil
}

// DeleteDocument removes a document's chunks from the index and its
// registry record.
func (s *IngestionService) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	deleted, err := s.index.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := s.registry.Delete(ctx, documentID); err != nil {
		return deleted, err
	}
	logger.Info("Document deleted", "document_id", documentID, "chunks_deleted", deleted)
	return deleted, nil
}

func (s *IngestionService) transition(ctx context.Context, documentID, status string) {
	// Status tracking is informational; losing an intermediate transition
	// must not fail the pipeline.
	if err := s.registry.UpdateStatus(ctx, documentID, status, 0); err != nil {
		logger.Warn("Failed to record document status", "document_id", documentID, "status", status, "error", err)
	}
}

func (s *IngestionService) markFailed(ctx context.Context, documentID string) {
	s.transition(ctx, documentID, models.StatusFailed)
}
