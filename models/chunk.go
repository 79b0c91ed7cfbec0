package models

// Chunk is a contiguous fragment of a document's text, the unit of
// embedding and retrieval. Index ordering within a document is significant.
type Chunk struct {
	ChunkID    string            `json:"chunk_id" bson:"chunk_id"`
	DocumentID string            `json:"document_id" bson:"document_id"`
	Index      int               `json:"chunk_index" bson:"chunk_index"`
	Text       string            `json:"text" bson:"text"`
	Embedding  []float32         `json:"embedding,omitempty" bson:"embedding,omitempty"`
	StartChar  int               `json:"start_char" bson:"start_char"`
	EndChar    int               `json:"end_char" bson:"end_char"`
	CharCount  int               `json:"char_count" bson:"char_count"`
	WordCount  int               `json:"word_count" bson:"word_count"`
	Metadata   map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}
