package services

import (
	"math"

	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/models"
)

// ScoreConfidence derives a qualitative confidence label from the
// similarity scores of the retrieved chunks. Pure function of its input:
// no external calls, no randomness.
//
// Labels:
//
//	none   - nothing retrieved
//	high   - avg > 0.75 and max > 0.85
//	medium - avg > 0.60 and max > 0.70 (and not high)
//	low    - anything else non-empty
func ScoreConfidence(retrieved []index.RetrievedChunk) models.Confidence {
	if len(retrieved) == 0 {
		return models.Confidence{Level: models.ConfidenceNone}
	}

	var sum, max float64
	for _, chunk := range retrieved {
		sum += chunk.Score
		if chunk.Score > max {
			max = chunk.Score
		}
	}
	avg := sum / float64(len(retrieved))

	level := models.ConfidenceLow
	switch {
	case avg > 0.75 && max > 0.85:
		level = models.ConfidenceHigh
	case avg > 0.60 && max > 0.70:
		level = models.ConfidenceMedium
	}

	return models.Confidence{
		Level:           level,
		AvgSimilarity:   round3(avg),
		MaxSimilarity:   round3(max),
		ChunksRetrieved: len(retrieved),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
