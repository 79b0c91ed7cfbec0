package index

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// MongoIndex adapts MongoDB Atlas Vector Search as the similarity backend.
// Chunks live in a dedicated collection with a $vectorSearch index on the
// embedding field (cosine metric; Atlas reports scores already mapped to
// [0,1] as (1+cos)/2, matching the score contract of this package).
type MongoIndex struct {
	collection     *mongo.Collection
	indexName      string
	dimension      int
	compressChunks bool
}

// chunkRecord is the stored shape. Text above the compression threshold is
// kept gzip-compressed to bound collection size.
type chunkRecord struct {
	ChunkID     string                     `bson:"chunk_id"`
	DocumentID  string                     `bson:"document_id"`
	ChunkIndex  int                        `bson:"chunk_index"`
	Text        string                     `bson:"text,omitempty"`
	TextData    []byte                     `bson:"text_data,omitempty"`
	Compression utils.CompressionAlgorithm `bson:"compression,omitempty"`
	Embedding   []float32                  `bson:"embedding"`
	CharCount   int                        `bson:"char_count"`
	WordCount   int                        `bson:"word_count"`
	Metadata    map[string]string          `bson:"metadata,omitempty"`
}

func NewMongoIndex(client *mongo.Client, cfg *config.Config) *MongoIndex {
	return &MongoIndex{
		collection:     client.Database(cfg.DBName).Collection("chunks"),
		indexName:      cfg.VectorIndexName,
		dimension:      cfg.VectorDimensions,
		compressChunks: cfg.CompressChunks,
	}
}

func (m *MongoIndex) Upsert(ctx context.Context, chunk models.Chunk) error {
	return m.UpsertBatch(ctx, []models.Chunk{chunk})
}

func (m *MongoIndex) UpsertBatch(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(chunks))
	for _, chunk := range chunks {
		if m.dimension > 0 && len(chunk.Embedding) != m.dimension {
			return utils.E(utils.KindIndexWrite, "vector dimension mismatch", nil)
		}

		record := chunkRecord{
			ChunkID:    chunk.ChunkID,
			DocumentID: chunk.DocumentID,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			Embedding:  chunk.Embedding,
			CharCount:  chunk.CharCount,
			WordCount:  chunk.WordCount,
			Metadata:   chunk.Metadata,
		}
		if m.compressChunks {
			data, algorithm, err := utils.CompressChunkText(chunk.Text)
			if err != nil {
				return utils.E(utils.KindIndexWrite, "failed to compress chunk text", err)
			}
			if algorithm != utils.CompressionNone {
				record.Text = ""
				record.TextData = data
				record.Compression = algorithm
			}
		}

		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"document_id": chunk.DocumentID, "chunk_index": chunk.Index}).
			SetReplacement(record).
			SetUpsert(true))
	}

	if _, err := m.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return utils.E(utils.KindIndexWrite, "bulk upsert rejected by backend", err)
	}
	return nil
}

func (m *MongoIndex) Search(ctx context.Context, vector []float32, topK int, minSimilarity float64, filters map[string]string) ([]RetrievedChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	// Over-fetch so the similarity threshold filters the candidate set
	// before truncation to topK, not after.
	limit := topK * 4
	if limit < 20 {
		limit = 20
	}

	searchStage := bson.D{
		{Key: "index", Value: m.indexName},
		{Key: "path", Value: "embedding"},
		{Key: "queryVector", Value: vector},
		{Key: "numCandidates", Value: limit * 10},
		{Key: "limit", Value: limit},
	}
	if len(filters) > 0 {
		filterDoc := bson.D{}
		for key, value := range filters {
			filterDoc = append(filterDoc, bson.E{Key: "metadata." + key, Value: value})
		}
		searchStage = append(searchStage, bson.E{Key: "filter", Value: filterDoc})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: searchStage}},
		{{Key: "$project", Value: bson.D{
			{Key: "chunk_id", Value: 1},
			{Key: "document_id", Value: 1},
			{Key: "chunk_index", Value: 1},
			{Key: "text", Value: 1},
			{Key: "text_data", Value: 1},
			{Key: "compression", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, utils.E(utils.KindIndexSearch, "vector search failed", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		chunkRecord `bson:",inline"`
		Score       float64 `bson:"score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, utils.E(utils.KindIndexSearch, "failed to decode search results", err)
	}

	results := make([]RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		text := row.Text
		if len(row.TextData) > 0 {
			text, err = utils.DecompressChunkText(row.TextData, row.Compression)
			if err != nil {
				return nil, utils.E(utils.KindIndexSearch, "failed to decompress chunk text", err)
			}
		}
		results = append(results, RetrievedChunk{
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			ChunkIndex: row.ChunkIndex,
			Text:       text,
			Metadata:   row.Metadata,
			Score:      row.Score,
		})
	}

	sortRetrieved(results)
	return thresholdAndTrim(results, topK, minSimilarity), nil
}

func (m *MongoIndex) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	result, err := m.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, utils.E(utils.KindIndexWrite, "failed to delete document chunks", err)
	}
	return result.DeletedCount, nil
}
