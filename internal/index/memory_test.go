package index

import (
	"context"
	"math"
	"testing"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

func seedIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex(3)
	chunks := []models.Chunk{
		{ChunkID: "a_0", DocumentID: "a", Index: 0, Text: "exact match", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"team": "infra"}},
		{ChunkID: "a_1", DocumentID: "a", Index: 1, Text: "orthogonal", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"team": "infra"}},
		{ChunkID: "b_0", DocumentID: "b", Index: 0, Text: "opposite", Embedding: []float32{-1, 0, 0}, Metadata: map[string]string{"team": "sales"}},
	}
	if err := idx.UpsertBatch(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestMemoryIndexSearchScores(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// cosine 1 -> 1.0, cosine 0 -> 0.5, cosine -1 -> 0.0
	wantScores := []float64{1.0, 0.5, 0.0}
	for i, want := range wantScores {
		if math.Abs(results[i].Score-want) > 1e-9 {
			t.Fatalf("result %d score = %v, want %v", i, results[i].Score, want)
		}
	}
	if results[0].ChunkID != "a_0" {
		t.Fatalf("best match = %s, want a_0", results[0].ChunkID)
	}
}

func TestMemoryIndexScoreIgnoresMagnitude(t *testing.T) {
	idx := NewMemoryIndex(3)
	err := idx.Upsert(context.Background(), models.Chunk{
		DocumentID: "a", Index: 0, Embedding: []float32{10, 0, 0},
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(context.Background(), []float32{0.25, 0, 0}, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(results[0].Score-1.0) > 1e-9 {
		t.Fatalf("same-direction vectors must score 1.0, got %v", results[0].Score)
	}
}

// The threshold is applied before the top-k cut, so low-scoring entries do
// not occupy result slots.
func TestMemoryIndexThresholdBeforeTopK(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2, 0.4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Score < 0.4 {
			t.Fatalf("result %s below threshold: %v", r.ChunkID, r.Score)
		}
	}

	// threshold exactly at a score keeps that entry
	results, err = idx.Search(context.Background(), []float32{1, 0, 0}, 10, 0.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("score == threshold must be kept: got %d results", len(results))
	}
}

func TestMemoryIndexFilters(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10, 0, map[string]string{"team": "infra"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Metadata["team"] != "infra" {
			t.Fatalf("filter leaked document %s", r.DocumentID)
		}
	}

	results, err = idx.Search(context.Background(), []float32{1, 0, 0}, 10, 0, map[string]string{"team": "nobody"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("unmatched filter must return nothing, got %d", len(results))
	}
}

func TestMemoryIndexDeterministicTieBreak(t *testing.T) {
	idx := NewMemoryIndex(2)
	chunks := []models.Chunk{
		{DocumentID: "b", Index: 1, Embedding: []float32{1, 0}},
		{DocumentID: "a", Index: 1, Embedding: []float32{1, 0}},
		{DocumentID: "a", Index: 0, Embedding: []float32{1, 0}},
	}
	if err := idx.UpsertBatch(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}

	for run := 0; run < 5; run++ {
		results, err := idx.Search(context.Background(), []float32{1, 0}, 10, 0, nil)
		if err != nil {
			t.Fatal(err)
		}
		got := make([]string, len(results))
		for i, r := range results {
			got[i] = r.DocumentID
		}
		if results[0].DocumentID != "a" || results[0].ChunkIndex != 0 ||
			results[1].DocumentID != "a" || results[1].ChunkIndex != 1 ||
			results[2].DocumentID != "b" {
			t.Fatalf("run %d: tie order %v unexpected", run, got)
		}
	}
}

func TestMemoryIndexUpsertIsIdempotent(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	chunk := models.Chunk{DocumentID: "a", Index: 0, Text: "v1", Embedding: []float32{1, 0}}
	if err := idx.Upsert(ctx, chunk); err != nil {
		t.Fatal(err)
	}
	chunk.Text = "v2"
	if err := idx.Upsert(ctx, chunk); err != nil {
		t.Fatal(err)
	}

	if idx.Len() != 1 {
		t.Fatalf("re-upsert must replace, not duplicate: len = %d", idx.Len())
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Text != "v2" {
		t.Fatalf("got text %q, want the replacement", results[0].Text)
	}
}

func TestMemoryIndexDeleteDocument(t *testing.T) {
	idx := seedIndex(t)

	deleted, err := idx.DeleteDocument(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("deleted %d chunks, want 2", deleted)
	}
	if idx.Len() != 1 {
		t.Fatalf("index holds %d chunks, want 1", idx.Len())
	}

	deleted, err = idx.DeleteDocument(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Fatalf("deleting an unknown document removed %d chunks", deleted)
	}
}

func TestMemoryIndexRejectsBadVectors(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	err := idx.Upsert(ctx, models.Chunk{DocumentID: "a", Index: 0, Embedding: []float32{1, 0}})
	if !utils.IsKind(err, utils.KindIndexWrite) {
		t.Fatalf("dimension mismatch: got %v", err)
	}

	err = idx.Upsert(ctx, models.Chunk{DocumentID: "a", Index: 0, Embedding: []float32{0, 0, 0}})
	if !utils.IsKind(err, utils.KindIndexWrite) {
		t.Fatalf("zero vector: got %v", err)
	}

	_, err = idx.Search(ctx, []float32{0, 0, 0}, 5, 0, nil)
	if !utils.IsKind(err, utils.KindIndexSearch) {
		t.Fatalf("zero query vector: got %v", err)
	}
}
