package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DocumentFormat enumerates the supported source document formats.
type DocumentFormat string

const (
	FormatPDF      DocumentFormat = "pdf"
	FormatDocx     DocumentFormat = "docx"
	FormatText     DocumentFormat = "txt"
	FormatHTML     DocumentFormat = "html"
	FormatMarkdown DocumentFormat = "markdown"
)

// Document lifecycle states. A document moves forward through these during
// ingestion and never changes after "confirmed"; re-ingestion creates a new
// document with a new ID.
const (
	StatusReceived  = "received"
	StatusExtracted = "extracted"
	StatusChunked   = "chunked"
	StatusEmbedded  = "embedded"
	StatusIndexed   = "indexed"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Document is the registry record for one ingested unit of content.
type Document struct {
	ID         string            `json:"document_id" bson:"document_id"`
	Filename   string            `json:"filename" bson:"filename"`
	Format     DocumentFormat    `json:"format" bson:"format"`
	Metadata   map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	ChunkCount int               `json:"chunk_count" bson:"chunk_count"`
	Status     string            `json:"status" bson:"status"`
	CreatedAt  time.Time         `json:"created_at" bson:"created_at"`
}

// ParseFormat resolves a declared format, falling back to the filename
// extension when the declaration is empty.
func ParseFormat(declared, filename string) (DocumentFormat, error) {
	name := strings.ToLower(strings.TrimSpace(declared))
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	}

	switch name {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDocx, nil
	case "txt", "text":
		return FormatText, nil
	case "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported document format: %q", name)
	}
}

// IngestRequest is the inbound shape for direct document uploads.
type IngestRequest struct {
	Content  string            `json:"content" binding:"required"`
	IsBase64 bool              `json:"is_base64"`
	Filename string            `json:"filename" binding:"required"`
	Format   string            `json:"format"`
	Metadata map[string]string `json:"metadata"`
}

// IngestResponse reports the outcome of a completed ingestion.
type IngestResponse struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
}
