package services

import (
	"testing"

	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/models"
)

func retrievedWithScores(scores ...float64) []index.RetrievedChunk {
	out := make([]index.RetrievedChunk, len(scores))
	for i, s := range scores {
		out[i] = index.RetrievedChunk{ChunkIndex: i, Score: s}
	}
	return out
}

func TestScoreConfidenceLevels(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   models.ConfidenceLevel
	}{
		{"empty", nil, models.ConfidenceNone},
		{"high", []float64{0.9, 0.8, 0.76}, models.ConfidenceHigh},
		{"medium", []float64{0.72, 0.65, 0.62}, models.ConfidenceMedium},
		{"low", []float64{0.4, 0.3}, models.ConfidenceLow},
		// thresholds are strict: meeting one exactly does not qualify
		{"avg exactly 0.60", []float64{0.60}, models.ConfidenceLow},
		{"max exactly 0.70", []float64{0.70, 0.65, 0.61}, models.ConfidenceLow},
		{"max exactly 0.85 degrades high to medium", []float64{0.85, 0.80, 0.76}, models.ConfidenceMedium},
		{"single strong chunk", []float64{0.95}, models.ConfidenceHigh},
		{"strong max but weak average", []float64{0.9, 0.2, 0.1}, models.ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreConfidence(retrievedWithScores(tc.scores...))
			if got.Level != tc.want {
				t.Fatalf("scores %v: got %q, want %q (avg=%v max=%v)",
					tc.scores, got.Level, tc.want, got.AvgSimilarity, got.MaxSimilarity)
			}
			if got.ChunksRetrieved != len(tc.scores) {
				t.Fatalf("chunks_retrieved = %d, want %d", got.ChunksRetrieved, len(tc.scores))
			}
		})
	}
}

func TestScoreConfidenceStats(t *testing.T) {
	got := ScoreConfidence(retrievedWithScores(0.9, 0.7, 0.5))
	if got.AvgSimilarity != 0.7 {
		t.Fatalf("avg = %v, want 0.7", got.AvgSimilarity)
	}
	if got.MaxSimilarity != 0.9 {
		t.Fatalf("max = %v, want 0.9", got.MaxSimilarity)
	}
}

func TestScoreConfidenceIsPure(t *testing.T) {
	input := retrievedWithScores(0.8, 0.77)
	first := ScoreConfidence(input)
	second := ScoreConfidence(input)
	if first != second {
		t.Fatalf("identical input produced different results: %+v vs %+v", first, second)
	}
}
