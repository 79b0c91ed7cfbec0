// Package index abstracts the similarity-search backend: dense vector
// storage with k-nearest-neighbor retrieval and metadata pre-filtering.
package index

import (
	"context"
	"sort"

	"rag-knowledge-platform/models"
)

// RetrievedChunk is a stored chunk plus its similarity score for one query.
// Scores are cosine similarity mapped to [0,1].
type RetrievedChunk struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Score      float64           `json:"score"`
}

// VectorIndex is the contract every backend adapter satisfies.
//
// Search returns chunks ordered by descending score; entries strictly below
// minSimilarity are excluded before the topK truncation, so the result
// length is min(topK, matches at or above the threshold). Filters are
// exact-match metadata constraints applied at the backend (pre-filter).
type VectorIndex interface {
	Upsert(ctx context.Context, chunk models.Chunk) error
	UpsertBatch(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, vector []float32, topK int, minSimilarity float64, filters map[string]string) ([]RetrievedChunk, error)
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
}

// sortRetrieved orders results descending by score; ties break by ascending
// chunk index then ascending document ID so identical inputs always produce
// identical output.
func sortRetrieved(results []RetrievedChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].DocumentID < results[j].DocumentID
	})
}

// thresholdAndTrim drops entries strictly below minSimilarity, then
// truncates the (already sorted) remainder to topK.
func thresholdAndTrim(results []RetrievedChunk, topK int, minSimilarity float64) []RetrievedChunk {
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minSimilarity {
			filtered = append(filtered, r)
		}
	}
	if topK > 0 && len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered
}
