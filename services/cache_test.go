package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rag-knowledge-platform/models"
)

func testPolicy() CachePolicy {
	return CachePolicy{
		Enabled:  true,
		TTL:      30 * time.Minute,
		Denylist: []string{"today", "now", "current", "latest", "recent"},
	}
}

func TestCacheableRules(t *testing.T) {
	policy := testPolicy()

	cases := []struct {
		name string
		req  models.QueryRequest
		want bool
	}{
		{"plain query", models.QueryRequest{Query: "what is the refund policy"}, true},
		{"too short", models.QueryRequest{Query: "refunds?"}, false},
		{"denylist term", models.QueryRequest{Query: "what changed in the latest release"}, false},
		{"denylist is case-insensitive", models.QueryRequest{Query: "what is happening TODAY exactly"}, false},
		{
			"conversational with history",
			models.QueryRequest{
				Query:               "and what about enterprise plans",
				Conversational:      true,
				ConversationHistory: []models.Turn{{Role: "user", Content: "tell me about plans"}},
			},
			false,
		},
		{"conversational without history", models.QueryRequest{Query: "what plans are available", Conversational: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Cacheable(&tc.req); got != tc.want {
				t.Fatalf("Cacheable(%q) = %v, want %v", tc.req.Query, got, tc.want)
			}
		})
	}

	disabled := testPolicy()
	disabled.Enabled = false
	if disabled.Cacheable(&models.QueryRequest{Query: "what is the refund policy"}) {
		t.Fatal("disabled policy must never cache")
	}
}

func TestCacheKeyStability(t *testing.T) {
	a := CacheKey("What is RAG?", 5, 0.4, map[string]string{"team": "infra", "lang": "en"})
	b := CacheKey("  what is rag?  ", 5, 0.4, map[string]string{"lang": "en", "team": "infra"})
	if a != b {
		t.Fatal("key must be insensitive to case, padding and filter order")
	}

	if a == CacheKey("What is RAG?", 6, 0.4, nil) {
		t.Fatal("top_k must affect the key")
	}
	if a == CacheKey("What is RAG?", 5, 0.5, map[string]string{"team": "infra", "lang": "en"}) {
		t.Fatal("min_similarity must affect the key")
	}
	if a == CacheKey("What is RAG?", 5, 0.4, map[string]string{"team": "infra"}) {
		t.Fatal("filters must affect the key")
	}
}

func TestMemoryCachePutGet(t *testing.T) {
	cache := NewMemoryCache(10)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := &models.QueryResult{Query: "q", Answer: "a"}
	cache.Put(ctx, "k", want, time.Minute)

	got, ok := cache.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Answer != "a" {
		t.Fatalf("got answer %q", got.Answer)
	}

	// returned value is a copy; mutating it must not poison the cache
	got.Answer = "mutated"
	again, _ := cache.Get(ctx, "k")
	if again.Answer != "a" {
		t.Fatal("cache entry was mutated through a returned pointer")
	}

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Size != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	cache := NewMemoryCache(10)
	current := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return current }
	ctx := context.Background()

	cache.Put(ctx, "k", &models.QueryResult{Answer: "a"}, 30*time.Minute)

	current = current.Add(29 * time.Minute)
	if _, ok := cache.Get(ctx, "k"); !ok {
		t.Fatal("entry expired early")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
	if cache.Stats().Size != 0 {
		t.Fatal("expired entry should be dropped on access")
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	cache := NewMemoryCache(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cache.Put(ctx, fmt.Sprintf("k%d", i), &models.QueryResult{Answer: fmt.Sprintf("a%d", i)}, time.Minute)
	}

	// touch k0 so k1 becomes least recently used
	if _, ok := cache.Get(ctx, "k0"); !ok {
		t.Fatal("expected hit on k0")
	}

	cache.Put(ctx, "k3", &models.QueryResult{Answer: "a3"}, time.Minute)

	if _, ok := cache.Get(ctx, "k1"); ok {
		t.Fatal("k1 should have been evicted")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := cache.Get(ctx, key); !ok {
			t.Fatalf("%s should have survived eviction", key)
		}
	}
	if cache.Stats().Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", cache.Stats().Evictions)
	}
}

func TestMemoryCacheSweep(t *testing.T) {
	cache := NewMemoryCache(10)
	current := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return current }
	ctx := context.Background()

	cache.Put(ctx, "short", &models.QueryResult{}, time.Minute)
	cache.Put(ctx, "long", &models.QueryResult{}, time.Hour)

	current = current.Add(10 * time.Minute)
	if removed := cache.Sweep(); removed != 1 {
		t.Fatalf("swept %d entries, want 1", removed)
	}
	if _, ok := cache.Get(ctx, "long"); !ok {
		t.Fatal("unexpired entry was swept")
	}
}
