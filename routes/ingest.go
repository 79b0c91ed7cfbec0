package routes

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/queue"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"
)

// HandleIngest processes a document synchronously: the response carries the
// final chunk count and the document is queryable as soon as it returns.
func HandleIngest(cfg *config.Config, ingestion *services.IngestionService, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}

		content, ok := decodeContent(c, &req)
		if !ok {
			return
		}

		started := time.Now()
		resp, err := ingestion.Ingest(c.Request.Context(), content, req.Filename, req.Format, req.Metadata)
		if err != nil {
			if metrics != nil {
				metrics.RecordIngest(req.Format, models.StatusFailed, 0, time.Since(started).Seconds())
			}
			utils.RespondWithAppError(c, err)
			return
		}

		if metrics != nil {
			metrics.RecordIngest(req.Format, models.StatusConfirmed, resp.ChunksCount, time.Since(started).Seconds())
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// HandleIngestAsync accepts a document and enqueues it for background
// processing. Returns 202 with the task ID; the document gets its ID when
// the worker picks it up.
func HandleIngestAsync(cfg *config.Config, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}

		content, ok := decodeContent(c, &req)
		if !ok {
			return
		}

		// Reject obviously bad input before it costs a queue round-trip.
		if _, err := models.ParseFormat(req.Format, req.Filename); err != nil {
			utils.RespondWithError(c, http.StatusUnsupportedMediaType,
				string(utils.KindUnsupportedFormat), err.Error(), nil)
			return
		}

		task, err := queue.NewIngestTask(content, req.Filename, req.Format, req.Metadata)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create ingest task", nil)
			return
		}

		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue ingest task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":  "Document accepted for processing",
			"task_id":  info.ID,
			"queue":    info.Queue,
			"filename": req.Filename,
		})
	}
}

// HandleGetDocument returns the registry record for one document, including
// its ingestion status and chunk count.
func HandleGetDocument(registry services.DocumentRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		doc, err := registry.Get(c.Request.Context(), documentID)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		if doc == nil {
			utils.RespondWithError(c, http.StatusNotFound, "document_not_found", "Document not found", nil)
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

// HandleDeleteDocument removes a document's chunks from the index and its
// registry record.
func HandleDeleteDocument(ingestion *services.IngestionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		deleted, err := ingestion.DeleteDocument(c.Request.Context(), documentID)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id":    documentID,
			"chunks_deleted": deleted,
		})
	}
}

func decodeContent(c *gin.Context, req *models.IngestRequest) ([]byte, bool) {
	if !req.IsBase64 {
		return []byte(req.Content), true
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		utils.RespondWithBadRequest(c, "Content is not valid base64", nil)
		return nil, false
	}
	return content, true
}
