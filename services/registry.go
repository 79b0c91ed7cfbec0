package services

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// DocumentRegistry records ingested documents and their lifecycle status.
type DocumentRegistry interface {
	Insert(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, documentID, status string, chunkCount int) error
	Get(ctx context.Context, documentID string) (*models.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// MongoDocumentRegistry persists the registry in the documents collection.
type MongoDocumentRegistry struct {
	collection *mongo.Collection
}

func NewMongoDocumentRegistry(client *mongo.Client, dbName string) *MongoDocumentRegistry {
	return &MongoDocumentRegistry{collection: client.Database(dbName).Collection("documents")}
}

func (r *MongoDocumentRegistry) Insert(ctx context.Context, doc *models.Document) error {
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return utils.E(utils.KindIndexWrite, "failed to record document", err)
	}
	return nil
}

func (r *MongoDocumentRegistry) UpdateStatus(ctx context.Context, documentID, status string, chunkCount int) error {
	fields := bson.M{"status": status}
	if chunkCount > 0 {
		fields["chunk_count"] = chunkCount
	}
	update := bson.M{"$set": fields}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"document_id": documentID}, update); err != nil {
		return utils.E(utils.KindIndexWrite, "failed to update document status", err)
	}
	return nil
}

func (r *MongoDocumentRegistry) Get(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := r.collection.FindOne(ctx, bson.M{"document_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, utils.E(utils.KindIndexSearch, "failed to load document", err)
	}
	return &doc, nil
}

func (r *MongoDocumentRegistry) Delete(ctx context.Context, documentID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"document_id": documentID}); err != nil {
		return utils.E(utils.KindIndexWrite, "failed to delete document record", err)
	}
	return nil
}

// MemoryDocumentRegistry keeps the registry in process memory; used with
// the memory vector backend and in tests.
type MemoryDocumentRegistry struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

func NewMemoryDocumentRegistry() *MemoryDocumentRegistry {
	return &MemoryDocumentRegistry{docs: make(map[string]models.Document)}
}

func (r *MemoryDocumentRegistry) Insert(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *MemoryDocumentRegistry) UpdateStatus(ctx context.Context, documentID, status string, chunkCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return nil
	}
	doc.Status = status
	if chunkCount > 0 {
		doc.ChunkCount = chunkCount
	}
	r.docs[documentID] = doc
	return nil
}

func (r *MemoryDocumentRegistry) Get(ctx context.Context, documentID string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (r *MemoryDocumentRegistry) Delete(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, documentID)
	return nil
}
