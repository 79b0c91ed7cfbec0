package services

import (
	"context"
	"strings"
	"time"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// Generator is the slice of the AI client the query pipeline needs for
// answer generation.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int32) (string, error)
}

// QueryService answers questions against the indexed corpus: embed the
// query, retrieve similar chunks, score confidence, build the prompt and
// generate. Results for repeatable queries are served from the cache.
type QueryService struct {
	cfg       *config.Config
	embedder  Embedder
	generator Generator
	index     index.VectorIndex
	cache     QueryCache
	policy    CachePolicy
	retry     utils.RetryPolicy
}

func NewQueryService(cfg *config.Config, embedder Embedder, generator Generator, vectorIndex index.VectorIndex, cache QueryCache) *QueryService {
	return &QueryService{
		cfg:       cfg,
		embedder:  embedder,
		generator: generator,
		index:     vectorIndex,
		cache:     cache,
		policy: CachePolicy{
			Enabled:  cfg.CacheEnabled,
			TTL:      time.Duration(cfg.CacheTTLSeconds) * time.Second,
			Denylist: cfg.CacheDenylist,
		},
		retry: utils.NewRetryPolicy(cfg.MaxRetries, time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond),
	}
}

// Query runs the full retrieval-augmented pipeline for one request. The
// request's zero values for top_k / min_similarity resolve to the configured
// defaults. Zero retrieved chunks is not an error: the model is still asked
// to answer, with an empty context block and a "none" confidence.
func (s *QueryService) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	started := time.Now()

	query, err := SanitizeQuery(req.Query, s.cfg.MaxQueryLength)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	minSimilarity := s.cfg.MinSimilarity
	if req.MinSimilarity != nil {
		minSimilarity = *req.MinSimilarity
	}

	cacheable := s.cache != nil && s.policy.Cacheable(req)
	cacheKey := ""
	if cacheable {
		cacheKey = CacheKey(query, topK, minSimilarity, req.Filters)
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			hit := *cached
			hit.FromCache = true
			hit.ResponseTime = time.Since(started).Seconds()
			logger.Debug("Query served from cache", "key", cacheKey)
			return &hit, nil
		}
	}

	var vector []float32
	err = s.retry.Do(ctx, func() error {
		var embedErr error
		vector, embedErr = s.embedder.Embed(ctx, query)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	var retrieved []index.RetrievedChunk
	err = s.retry.Do(ctx, func() error {
		var searchErr error
		retrieved, searchErr = s.index.Search(ctx, vector, topK, minSimilarity, req.Filters)
		return searchErr
	})
	if err != nil {
		return nil, err
	}

	confidence := ScoreConfidence(retrieved)

	systemPrompt, userPrompt := BuildPrompt(query, retrieved, req.ConversationHistory, req.Conversational)

	var answer string
	err = s.retry.Do(ctx, func() error {
		var genErr error
		answer, genErr = s.generator.Generate(ctx, systemPrompt, userPrompt,
			float32(s.cfg.Temperature), int32(s.cfg.MaxOutputTokens))
		return genErr
	})
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{
		Query:           query,
		Answer:          answer,
		Sources:         BuildSources(retrieved),
		TotalChunksUsed: len(retrieved),
		Confidence:      confidence,
		ResponseTime:    time.Since(started).Seconds(),
		FromCache:       false,
	}
	if req.IncludeSources != nil && !*req.IncludeSources {
		result.Sources = nil
	}

	if cacheable {
		s.cache.Put(ctx, cacheKey, result, s.policy.TTL)
	}

	logger.Info("Query answered",
		"chunks", len(retrieved),
		"confidence", confidence.Level,
		"response_time", result.ResponseTime)
	return result, nil
}

// CacheStats exposes hit/miss counters for the health endpoint.
func (s *QueryService) CacheStats() CacheStats {
	if s.cache == nil {
		return CacheStats{}
	}
	return s.cache.Stats()
}

// SanitizeQuery collapses whitespace runs and enforces the length limit.
// An empty result after trimming is a validation error.
func SanitizeQuery(query string, maxLength int) (string, error) {
	sanitized := strings.Join(strings.Fields(query), " ")
	if sanitized == "" {
		return "", utils.E(utils.KindValidation, "query must not be empty", nil)
	}
	if maxLength > 0 && len(sanitized) > maxLength {
		sanitized = strings.TrimSpace(sanitized[:maxLength])
	}
	return sanitized, nil
}

// BuildSources groups retrieved chunks per document, preserving rank order:
// a document appears at the position of its best-ranked chunk, and its score
// is that chunk's score.
func BuildSources(retrieved []index.RetrievedChunk) []models.Source {
	sources := make([]models.Source, 0, len(retrieved))
	position := make(map[string]int)

	for _, chunk := range retrieved {
		idx, seen := position[chunk.DocumentID]
		if !seen {
			idx = len(sources)
			position[chunk.DocumentID] = idx
			sources = append(sources, models.Source{
				DocumentID: chunk.DocumentID,
				Filename:   chunk.Metadata["filename"],
				Title:      chunk.Metadata["title"],
				Score:      chunk.Score,
			})
		}
		sources[idx].ChunksUsed = append(sources[idx].ChunksUsed, models.ChunkRef{
			ChunkIndex: chunk.ChunkIndex,
			Score:      chunk.Score,
		})
	}
	return sources
}
