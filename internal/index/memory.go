package index

import (
	"context"
	"math"
	"sync"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// MemoryIndex is a brute-force cosine-similarity index held in process
// memory. It backs single-node deployments and tests; upserts are
// idempotent per (document_id, chunk_index).
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[memoryKey]memoryEntry
}

type memoryKey struct {
	documentID string
	chunkIndex int
}

type memoryEntry struct {
	chunk  models.Chunk
	vector []float64 // L2-normalized at upsert
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[memoryKey]memoryEntry),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunk models.Chunk) error {
	return m.UpsertBatch(ctx, []models.Chunk{chunk})
}

func (m *MemoryIndex) UpsertBatch(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chunk := range chunks {
		if m.dimension > 0 && len(chunk.Embedding) != m.dimension {
			return utils.E(utils.KindIndexWrite, "vector dimension mismatch", nil)
		}
		vector, ok := normalize(chunk.Embedding)
		if !ok {
			return utils.E(utils.KindIndexWrite, "cannot index zero-magnitude vector", nil)
		}
		key := memoryKey{documentID: chunk.DocumentID, chunkIndex: chunk.Index}
		m.entries[key] = memoryEntry{chunk: chunk, vector: vector}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, minSimilarity float64, filters map[string]string) ([]RetrievedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query, ok := normalize(vector)
	if !ok {
		return nil, utils.E(utils.KindIndexSearch, "cannot search with zero-magnitude vector", nil)
	}

	results := make([]RetrievedChunk, 0, len(m.entries))
	for _, entry := range m.entries {
		if !matchesFilters(entry.chunk.Metadata, filters) {
			continue
		}
		cos := dot(entry.vector, query)
		results = append(results, RetrievedChunk{
			ChunkID:    entry.chunk.ChunkID,
			DocumentID: entry.chunk.DocumentID,
			ChunkIndex: entry.chunk.Index,
			Text:       entry.chunk.Text,
			Metadata:   entry.chunk.Metadata,
			Score:      cosineToScore(cos),
		})
	}

	sortRetrieved(results)
	return thresholdAndTrim(results, topK, minSimilarity), nil
}

func (m *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.entries {
		if key.documentID == documentID {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of stored chunks.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func matchesFilters(metadata, filters map[string]string) bool {
	for key, want := range filters {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// cosineToScore maps cosine similarity from [-1,1] into [0,1].
func cosineToScore(cos float64) float64 {
	score := (cos + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func normalize(vector []float32) ([]float64, bool) {
	out := make([]float64, len(vector))
	var sum float64
	for i, v := range vector {
		out[i] = float64(v)
		sum += out[i] * out[i]
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)
	for i := range out {
		out[i] /= norm
	}
	return out, true
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
