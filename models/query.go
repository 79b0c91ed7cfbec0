package models

// Turn is one prior exchange in a conversation.
type Turn struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

// QueryRequest is the inbound shape for one user question. Zero values for
// TopK/MinSimilarity mean "use the configured defaults"; they are resolved
// at the boundary before the request reaches the orchestrator.
type QueryRequest struct {
	Query               string            `json:"query" binding:"required"`
	TopK                int               `json:"top_k" binding:"omitempty,min=1,max=50"`
	MinSimilarity       *float64          `json:"min_similarity" binding:"omitempty,min=0,max=1"`
	Filters             map[string]string `json:"filters"`
	Conversational      bool              `json:"conversational"`
	ConversationHistory []Turn            `json:"conversation_history" binding:"omitempty,dive"`
	IncludeSources      *bool             `json:"include_sources"`
}

// ChunkRef identifies one chunk used to answer a query.
type ChunkRef struct {
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// Source summarizes one source document contributing to an answer.
type Source struct {
	DocumentID string     `json:"document_id"`
	Filename   string     `json:"filename"`
	Title      string     `json:"title,omitempty"`
	Score      float64    `json:"score"`
	ChunksUsed []ChunkRef `json:"chunks_used"`
}

// ConfidenceLevel is a coarse label of retrieval quality.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceNone   ConfidenceLevel = "none"
)

// Confidence carries the label plus the similarity statistics it was
// derived from.
type Confidence struct {
	Level           ConfidenceLevel `json:"confidence"`
	AvgSimilarity   float64         `json:"avg_similarity"`
	MaxSimilarity   float64         `json:"max_similarity"`
	ChunksRetrieved int             `json:"chunks_retrieved"`
}

// QueryResult is the outbound answer shape.
type QueryResult struct {
	Query           string     `json:"query"`
	Answer          string     `json:"answer"`
	Sources         []Source   `json:"sources"`
	TotalChunksUsed int        `json:"total_chunks_used"`
	Confidence      Confidence `json:"confidence"`
	ResponseTime    float64    `json:"response_time"`
	FromCache       bool       `json:"from_cache"`
}
